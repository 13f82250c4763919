package cachedemo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"
)

// Entry is a key/value pair the runner just wrote or read.
type Entry struct {
	Key   string
	Value string
}

type runnerState int

const (
	stateUninitialized runnerState = iota
	stateReady
	stateClosed
)

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for the demo output.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClientLogger sets the logger that receives store and client
// diagnostics. It is ignored when the settings suppress client logging.
func WithClientLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.clientLogger = logger }
}

// WithRand sets the source used to pick random demo keys.
func WithRand(rng *rand.Rand) RunnerOption {
	return func(r *Runner) { r.rng = rng }
}

// WithStoreOptions applies extra options to the store built by New.
func WithStoreOptions(opts ...StoreOption) RunnerOption {
	return func(r *Runner) { r.storeOpts = append(r.storeOpts, opts...) }
}

// Runner drives the demo sequence against a single store.
// The zero value is uninitialized; every cache operation on it returns
// ErrNotReady.
type Runner struct {
	store        Store
	settings     Settings
	logger       *slog.Logger
	clientLogger *slog.Logger
	rng          *rand.Rand
	storeOpts    []StoreOption
	state        runnerState
}

// New builds the store described by settings and checks it is reachable.
func New(ctx context.Context, settings Settings, opts ...RunnerOption) (*Runner, error) {
	r := newRunner(settings, opts)

	cfg := settings.StoreConfig()
	if !settings.SuppressClientLogs && r.clientLogger != nil {
		cfg.Observer = LogObserver(r.clientLogger)
		cfg.ClientLogger = r.clientLogger
	}
	for _, opt := range r.storeOpts {
		cfg = opt(cfg)
	}

	store := NewStore(ctx, cfg)
	if err := store.Ready(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("%w: %s at %s: %w", ErrConnection, store.Driver(), settings.Endpoint(), err)
	}
	r.store = store
	r.state = stateReady
	return r, nil
}

// NewRunner wraps an existing store in a ready runner.
func NewRunner(store Store, settings Settings, opts ...RunnerOption) *Runner {
	r := newRunner(settings, opts)
	r.store = store
	r.state = stateReady
	return r
}

func newRunner(settings Settings, opts []RunnerOption) *Runner {
	r := &Runner{settings: settings, logger: DiscardLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Runner) Store() Store { return r.store }

// Settings returns the settings the runner was built with.
func (r *Runner) Settings() Settings { return r.settings }

func (r *Runner) check() error {
	switch r.state {
	case stateReady:
		return nil
	case stateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// UpsertMany writes count generated entries keyPrefix1..keyPrefixN and
// returns how many were acknowledged. A failed write never stops the loop.
func (r *Runner) UpsertMany(ctx context.Context, keyPrefix, valuePrefix string, count int) int {
	written := 0
	for i := 1; i <= count; i++ {
		n := strconv.Itoa(i)
		if err := r.UpsertOne(ctx, keyPrefix+n, valuePrefix+n, false); err == nil {
			written++
		}
	}
	return written
}

// UpsertOne writes a single entry with the configured expiry. With
// checkExists the key is read first so the log can tell inserts from
// updates; the read and the write are separate calls.
func (r *Runner) UpsertOne(ctx context.Context, key, value string, checkExists bool) error {
	if err := r.check(); err != nil {
		return err
	}
	msg := "Upserted"
	if checkExists {
		if _, found, err := r.store.Get(ctx, key); err == nil {
			msg = "Inserted"
			if found {
				msg = "Updated"
			}
		}
	}
	if err := r.store.Set(ctx, key, []byte(value), r.settings.Expiry); err != nil {
		r.logger.ErrorContext(ctx, "Could not upsert key", "key", key, "value", value, "err", err)
		return fmt.Errorf("%w: set %q: %w", ErrCacheOperation, key, err)
	}
	r.logger.InfoContext(ctx, msg, "key", key, "value", value)
	return nil
}

// Insert writes key only when it is absent, using the store's atomic add.
func (r *Runner) Insert(ctx context.Context, key, value string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	added, err := r.store.Add(ctx, key, []byte(value), r.settings.Expiry)
	if err != nil {
		r.logger.ErrorContext(ctx, "Could not insert key", "key", key, "err", err)
		return false, fmt.Errorf("%w: add %q: %w", ErrCacheOperation, key, err)
	}
	if !added {
		r.logger.InfoContext(ctx, "Key already present", "key", key)
		return false, nil
	}
	r.logger.InfoContext(ctx, "Inserted", "key", key, "value", value)
	return true, nil
}

// Read fetches key. A miss returns found=false and a nil error.
func (r *Runner) Read(ctx context.Context, key string) (Entry, bool, error) {
	if err := r.check(); err != nil {
		return Entry{Key: key}, false, err
	}
	start := time.Now()
	value, found, err := r.store.Get(ctx, key)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.ErrorContext(ctx, "Could not read key", "key", key, "err", err)
		return Entry{Key: key}, false, fmt.Errorf("%w: get %q: %w", ErrCacheOperation, key, err)
	}
	if !found {
		r.logger.InfoContext(ctx, "Key not found", "key", key)
		return Entry{Key: key}, false, nil
	}
	entry := Entry{Key: key, Value: string(value)}
	r.logger.InfoContext(ctx, "Retrieved", "key", key, "value", entry.Value, "elapsed_ms", elapsed.Milliseconds())
	return entry, true, nil
}

// ReadRandom reads one generated entry chosen by RandomIndex.
func (r *Runner) ReadRandom(ctx context.Context, keyPrefix string) (Entry, bool, error) {
	return r.Read(ctx, r.randomKey(keyPrefix))
}

// Delete removes key and reads it back. It reports false without an error
// when the cache held no such key.
func (r *Runner) Delete(ctx context.Context, key string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	removed, err := r.store.Delete(ctx, key)
	if err != nil {
		r.logger.ErrorContext(ctx, "Could not delete key", "key", key, "err", err)
		return false, fmt.Errorf("%w: delete %q: %w", ErrCacheOperation, key, err)
	}
	if !removed {
		r.logger.WarnContext(ctx, "Could not delete key", "key", key)
		return false, nil
	}
	r.logger.InfoContext(ctx, "Deleted key", "key", key)
	r.logger.InfoContext(ctx, "Testing delete", "key", key)
	_, _, _ = r.Read(ctx, key)
	return true, nil
}

// DeleteRandom deletes one generated entry chosen by RandomIndex.
func (r *Runner) DeleteRandom(ctx context.Context, keyPrefix string) (bool, error) {
	return r.Delete(ctx, r.randomKey(keyPrefix))
}

// Flush clears every entry the store can reach.
func (r *Runner) Flush(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	start := time.Now()
	if err := r.store.Flush(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Could not flush cache", "err", err)
		return fmt.Errorf("%w: flush: %w", ErrCacheOperation, err)
	}
	r.logger.InfoContext(ctx, "Flushed cache", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Shutdown flushes when configured, then closes the store within the
// configured timeout. It reports whether close finished in time; a timeout
// is logged and is not an error. The runner is closed afterwards either way.
func (r *Runner) Shutdown(ctx context.Context) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	if r.settings.FlushOnShutdown {
		_ = r.Flush(ctx)
	}
	r.state = stateClosed

	timeout := r.settings.ShutdownTimeout
	r.logger.InfoContext(ctx, "Shutting down", "timeout_secs", int64(timeout/time.Second))
	closeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		closeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := r.store.Close(closeCtx)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "Completed shutting down")
		return true, nil
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.WarnContext(ctx, "Shutdown did not complete before timeout", "timeout_secs", int64(timeout/time.Second))
		return false, nil
	default:
		r.logger.ErrorContext(ctx, "Shutdown failed", "err", err)
		return false, fmt.Errorf("%w: close: %w", ErrCacheOperation, err)
	}
}

// Run executes the demo sequence. Individual cache failures are logged and
// skipped; only an unusable runner is returned as an error.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	r.UpsertMany(ctx, "Name", "Value", r.settings.GeneratedEntries)
	_, _, _ = r.ReadRandom(ctx, "Name")
	_, _ = r.DeleteRandom(ctx, "Name")
	_, _ = r.Shutdown(ctx)
	return nil
}

// RandomIndex returns a uniform integer in [minimum, maximum). A degenerate
// range returns minimum.
func (r *Runner) RandomIndex(minimum, maximum int) int {
	if maximum <= minimum {
		return minimum
	}
	if r.rng != nil {
		return minimum + r.rng.IntN(maximum-minimum)
	}
	return minimum + rand.IntN(maximum-minimum)
}

func (r *Runner) randomKey(prefix string) string {
	return prefix + strconv.Itoa(r.RandomIndex(1, r.settings.GeneratedEntries))
}
