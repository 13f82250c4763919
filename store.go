package cachedemo

import (
	"context"
	"time"
)

// Store is the capability set the demo needs from a cache client.
//
// A ttl <= 0 stores the entry without expiry. Delete reports whether an
// entry was actually removed. Close honours the context deadline and
// returns ctx.Err() when it could not finish in time.
type Store interface {
	Driver() Driver
	Ready(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// closeWithin runs fn and waits for it until ctx is done.
func closeWithin(ctx context.Context, fn func() error) error {
	if _, ok := ctx.Deadline(); !ok {
		return fn()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func prefixedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
