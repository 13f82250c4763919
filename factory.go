package cachedemo

import "context"

// NewStore returns a concrete store for the requested driver.
// Driver construction failures are not returned here; the resulting store
// reports them from Ready and every operation.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := cachedemo.NewStore(ctx, cachedemo.StoreConfig{
//		Driver: cachedemo.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	configureClientLogging(cfg.ClientLogger)

	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case DriverNull:
		store = newNullStore()
	case DriverMemory:
		store = newMemoryStore(cfg.MemoryCleanupInterval)
	case DriverRedis:
		store, err = newRedisStoreFromConfig(cfg)
	case DriverDynamo:
		store, err = newDynamoStore(ctx, cfg)
	case DriverNATS:
		store, err = newNATSStoreFromConfig(cfg)
	case DriverSQL:
		store, err = newSQLStore(ctx, cfg)
	default:
		store, err = newMemcachedStoreFromConfig(ctx, cfg)
	}
	if err != nil {
		store = &errorStore{driver: cfg.Driver, err: err}
	}
	return newObservedStore(store, cfg.Observer)
}

// NewStoreWith builds a store using a driver and a set of functional options.
//
// Example: memcached with discovery
//
//	store := cachedemo.NewStoreWith(ctx, cachedemo.DriverMemcached,
//		cachedemo.WithMemcachedAddresses("demo.cfg.use1.cache.amazonaws.com:11211"),
//		cachedemo.WithMemcachedDiscovery(true),
//	)
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewMemcachedStore is a convenience for a memcached-backed store.
func NewMemcachedStore(ctx context.Context, addrs []string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemcached, append([]StoreOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store around client.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewNullStore is a convenience for a store that drops every write.
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}
