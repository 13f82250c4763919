package cachedemo

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives events for store operations.
// It is called after each operation completes.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}

// LogObserver traces every store operation at debug level.
func LogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
		attrs := []slog.Attr{
			slog.String("driver", string(driver)),
			slog.String("op", op),
			slog.Duration("dur", dur),
		}
		if key != "" {
			attrs = append(attrs, slog.String("key", key))
		}
		if op == "get" || op == "delete" || op == "add" {
			attrs = append(attrs, slog.Bool("hit", hit))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("err", err))
			logger.LogAttrs(ctx, slog.LevelWarn, "cache client op failed", attrs...)
			return
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "cache client op", attrs...)
	})
}

// observedStore reports every call on inner to an Observer.
type observedStore struct {
	inner    Store
	observer Observer
}

func newObservedStore(inner Store, o Observer) Store {
	if o == nil {
		return inner
	}
	return &observedStore{inner: inner, observer: o}
}

func (s *observedStore) Driver() Driver { return s.inner.Driver() }

func (s *observedStore) Ready(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ready(ctx)
	s.observe(ctx, "ready", "", false, err, start)
	return err
}

func (s *observedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := s.inner.Get(ctx, key)
	s.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

func (s *observedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.observe(ctx, "set", key, false, err, start)
	return err
}

func (s *observedStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	created, err := s.inner.Add(ctx, key, value, ttl)
	s.observe(ctx, "add", key, created, err, start)
	return created, err
}

func (s *observedStore) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	removed, err := s.inner.Delete(ctx, key)
	s.observe(ctx, "delete", key, removed, err, start)
	return removed, err
}

func (s *observedStore) Flush(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Flush(ctx)
	s.observe(ctx, "flush", "", false, err, start)
	return err
}

func (s *observedStore) Close(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Close(ctx)
	s.observe(ctx, "close", "", false, err, start)
	return err
}

func (s *observedStore) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	s.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), s.inner.Driver())
}
