package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/cachedemo"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpReady  Op = "ready"
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpAdd    Op = "add"
	OpDelete Op = "delete"
	OpFlush  Op = "flush"
	OpClose  Op = "close"
)

// Call is one recorded store invocation.
type Call struct {
	Op    Op
	Key   string
	Value string
	TTL   time.Duration
}

// Fake is a deterministic in-memory store that records every call in order.
// It wraps the memory store so no external services are needed.
type Fake struct {
	inner cachedemo.Store

	mu        sync.Mutex
	calls     []Call
	failures  map[Op]error
	closeWait time.Duration
}

// New creates a Fake backed by an in-memory store.
func New() *Fake {
	return &Fake{
		inner:    cachedemo.NewMemoryStore(context.Background()),
		failures: make(map[Op]error),
	}
}

// Fail makes every subsequent op return err. A nil err clears the failure.
func (f *Fake) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// SlowClose makes Close block for d, or until its context is done.
func (f *Fake) SlowClose(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeWait = d
}

// Reset clears recorded calls and failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.failures = make(map[Op]error)
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns recorded calls for op, in order.
func (f *Fake) CallsOf(op Op) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	n := 0
	for _, c := range f.CallsOf(op) {
		if c.Key == key {
			n++
		}
	}
	return n
}

// Total returns total calls for op across keys.
func (f *Fake) Total(op Op) int { return len(f.CallsOf(op)) }

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures op was never issued.
func (f *Fake) AssertNotCalled(t *testing.T, op Op) {
	t.Helper()
	if got := f.Total(op); got != 0 {
		t.Fatalf("expected %s not called, got %d", op, got)
	}
}

// AssertTotal ensures the total call count for op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.failures[c.Op]
}

func (f *Fake) Driver() cachedemo.Driver { return f.inner.Driver() }

func (f *Fake) Ready(ctx context.Context) error {
	if err := f.record(Call{Op: OpReady}); err != nil {
		return err
	}
	return f.inner.Ready(ctx)
}

func (f *Fake) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.record(Call{Op: OpGet, Key: key}); err != nil {
		return nil, false, err
	}
	return f.inner.Get(ctx, key)
}

func (f *Fake) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.record(Call{Op: OpSet, Key: key, Value: string(value), TTL: ttl}); err != nil {
		return err
	}
	return f.inner.Set(ctx, key, value, ttl)
}

func (f *Fake) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := f.record(Call{Op: OpAdd, Key: key, Value: string(value), TTL: ttl}); err != nil {
		return false, err
	}
	return f.inner.Add(ctx, key, value, ttl)
}

func (f *Fake) Delete(ctx context.Context, key string) (bool, error) {
	if err := f.record(Call{Op: OpDelete, Key: key}); err != nil {
		return false, err
	}
	return f.inner.Delete(ctx, key)
}

func (f *Fake) Flush(ctx context.Context) error {
	if err := f.record(Call{Op: OpFlush}); err != nil {
		return err
	}
	return f.inner.Flush(ctx)
}

func (f *Fake) Close(ctx context.Context) error {
	if err := f.record(Call{Op: OpClose}); err != nil {
		return err
	}
	f.mu.Lock()
	wait := f.closeWait
	f.mu.Unlock()
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.inner.Close(ctx)
}

var _ cachedemo.Store = (*Fake)(nil)
