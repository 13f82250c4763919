package cachedemo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
	Close() error
}

var errRedisUnavailable = errors.New("redis cache client unavailable")

type redisStore struct {
	client RedisClient
	prefix string
}

func newRedisStoreFromConfig(cfg StoreConfig) (Store, error) {
	client := cfg.RedisClient
	if client == nil {
		if cfg.RedisAddr == "" {
			return nil, errors.New("redis driver requires an address or client")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return newRedisStore(client, cfg.Prefix), nil
}

func newRedisStore(client RedisClient, prefix string) Store {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *redisStore) Driver() Driver {
	return DriverRedis
}

func (s *redisStore) Ready(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisUnavailable
	}
	value, err := s.client.Get(ctx, s.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	return s.client.Set(ctx, s.cacheKey(key), value, redisExpiration(ttl)).Err()
}

func (s *redisStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	created, err := s.client.SetNX(ctx, s.cacheKey(key), value, redisExpiration(ttl)).Result()
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, errRedisUnavailable
	}
	removed, err := s.client.Del(ctx, s.cacheKey(key)).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// Flush clears the selected database, or only the prefixed keys when the
// store is namespaced.
func (s *redisStore) Flush(ctx context.Context) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	if s.prefix == "" {
		return s.client.FlushDB(ctx).Err()
	}
	pattern := s.cacheKey("*")
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *redisStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return closeWithin(ctx, s.client.Close)
}

func (s *redisStore) cacheKey(key string) string {
	return prefixedKey(s.prefix, key)
}

func redisExpiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
