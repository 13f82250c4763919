// Package cachetest provides a reusable contract suite for cachedemo.Store
// implementations.
//
// Example pattern:
//
//	func TestRedisStoreContract(t *testing.T) {
//		store := cachedemo.NewRedisStore(ctx, newTestRedisClient(t), cachedemo.WithPrefix("test"))
//		if err := store.Ready(ctx); err != nil {
//			t.Fatalf("redis not ready: %v", err)
//		}
//
//		// Namespace keys per test and tune TTL waits for backend semantics as needed.
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			CaseName: t.Name(),
//			TTL:      time.Second,
//			TTLWait:  1500 * time.Millisecond,
//		})
//	}
package cachetest
