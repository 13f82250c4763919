package cachedemo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached treats exptime values above 30 days as absolute unix timestamps.
const memcachedRelativeExpiryLimit = 30 * 24 * time.Hour

type memcachedStore struct {
	client *memcache.Client
	addrs  []string
	prefix string
	now    func() time.Time
}

func newMemcachedStoreFromConfig(ctx context.Context, cfg StoreConfig) (Store, error) {
	addrs := cfg.MemcachedAddresses
	if cfg.MemcachedDiscovery {
		cluster, err := DiscoverCluster(ctx, addrs[0], cfg.MemcachedTimeout)
		switch {
		case err == nil:
			if cfg.ClientLogger != nil {
				cfg.ClientLogger.DebugContext(ctx, "discovered cluster nodes",
					slog.String("endpoint", addrs[0]),
					slog.Int("version", cluster.Version),
					slog.Any("nodes", cluster.Nodes))
			}
			addrs = cluster.Nodes
		case errors.Is(err, errNotConfigEndpoint):
			if cfg.ClientLogger != nil {
				cfg.ClientLogger.DebugContext(ctx, "endpoint is not a configuration endpoint, using it directly",
					slog.String("endpoint", addrs[0]))
			}
		default:
			return nil, fmt.Errorf("memcached discovery on %s: %w", addrs[0], err)
		}
	}
	return newMemcachedStore(addrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.Prefix)
}

func newMemcachedStore(addrs []string, timeout time.Duration, maxIdle int, prefix string) (Store, error) {
	if len(addrs) == 0 {
		addrs = []string{defaultMemcachedAddress}
	}
	servers := new(memcache.ServerList)
	if err := servers.SetServers(addrs...); err != nil {
		return nil, fmt.Errorf("memcached servers %v: %w", addrs, err)
	}
	client := memcache.NewFromSelector(servers)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdle > 0 {
		client.MaxIdleConns = maxIdle
	}
	return &memcachedStore{
		client: client,
		addrs:  addrs,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Ping(); err != nil {
		return fmt.Errorf("memcached readiness %v: %w", s.addrs, err)
	}
	return nil
}

func (s *memcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := s.client.Get(s.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cloneBytes(item.Value), true, nil
}

func (s *memcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.Set(s.item(key, value, ttl))
}

func (s *memcachedStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.client.Add(s.item(key, value, ttl))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrNotStored):
		return false, nil
	default:
		return false, err
	}
}

func (s *memcachedStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.client.Delete(s.cacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *memcachedStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.FlushAll(); err != nil {
		return fmt.Errorf("memcached flush failed: %w", err)
	}
	return nil
}

func (s *memcachedStore) Close(ctx context.Context) error {
	return closeWithin(ctx, s.client.Close)
}

func (s *memcachedStore) item(key string, value []byte, ttl time.Duration) *memcache.Item {
	return &memcache.Item{
		Key:        s.cacheKey(key),
		Value:      cloneBytes(value),
		Expiration: s.expiration(ttl),
	}
}

func (s *memcachedStore) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > memcachedRelativeExpiryLimit {
		// exptime is a signed 32-bit unix time; later deadlines saturate.
		at := s.now().Add(ttl).Unix()
		if at > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(at)
	}
	seconds := int32(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (s *memcachedStore) cacheKey(key string) string {
	return prefixedKey(s.prefix, key)
}
