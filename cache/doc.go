// Package cache provides the point-lookup cache contract used by the
// repository layer.
//
// # Overview
//
// Only point lookups by document id are cached. Query result sets are
// deliberately not: any write to a collection can invalidate an arbitrary
// number of cached query results, whereas a point entry's invalidation scope
// is exactly the writes to that one id. The repository exploits this by
// invalidating or replacing a single key per write.
//
// The package exports:
//
//   - Store: Get/Set/Delete over string keys, with TTL expiry and bounded
//     capacity handled by the backend
//   - Config: per-repository cache sizing and TTL, with validated defaults
//   - Key: the key scheme, "collection::id"
//
// The default backend is built on viccon/sturdyc, which shards entries,
// evicts on capacity by recency, and never returns an entry past its TTL.
//
// # Usage
//
//	store, err := cache.NewStore(cache.Config{Capacity: 1000, NumShards: 16, TTL: time.Minute, EvictionPercentage: 10})
//	if err != nil {
//		return err
//	}
//	store.Set(ctx, cache.Key("products", "p-1"), product)
//	if v, ok := store.Get(ctx, cache.Key("products", "p-1")); ok {
//		product = v.(*Product)
//	}
//
// Values are stored as supplied; callers that hand out cached values across
// goroutines are responsible for copying them first. The repository layer
// does this through its entity converter.
package cache
