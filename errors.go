package cachedemo

import "errors"

var (
	// ErrConfiguration marks a missing, unreadable or malformed settings source.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection marks a store that could not be constructed or reached.
	ErrConnection = errors.New("connection error")
	// ErrCacheOperation marks a negative acknowledgment from the cache.
	ErrCacheOperation = errors.New("cache operation error")
	// ErrNotReady is returned by runner operations before initialization.
	ErrNotReady = errors.New("runner not initialized")
	// ErrClosed is returned by runner operations after shutdown.
	ErrClosed = errors.New("runner closed")
)
