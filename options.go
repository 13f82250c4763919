package cachedemo

import (
	"log/slog"
	"time"
)

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithObserver attaches an observer to every store operation.
func WithObserver(o Observer) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Observer = o
		return cfg
	}
}

// WithStoreClientLogger routes third-party client diagnostics to logger.
func WithStoreClientLogger(logger *slog.Logger) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.ClientLogger = logger
		return cfg
	}
}

// WithMemcachedAddresses sets memcached server addresses (host:port).
func WithMemcachedAddresses(addrs ...string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedAddresses = append([]string(nil), addrs...)
		return cfg
	}
}

// WithMemcachedDiscovery toggles cluster auto-discovery on the first address.
func WithMemcachedDiscovery(enabled bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedDiscovery = enabled
		return cfg
	}
}

// WithMemcachedTimeout overrides the per-operation memcached timeout.
func WithMemcachedTimeout(timeout time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedTimeout = timeout
		return cfg
	}
}

// WithRedisClient sets a prebuilt redis client.
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory driver.
func WithMemoryCleanupInterval(interval time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}
