// Package cache provides a sharded, in-memory, bounded LRU cache for
// concurrent workloads. It maps keys K to values V with an approximate
// capacity bound, evicting the least-recently-used entry on insertion
// when the bound is exceeded.
//
// Design
//
//   - Sharding: the cache is split into S independent shards, each with
//     its own lock, index, and intrusive MRU↔LRU doubly linked list.
//     A key's shard is hash(k) mod S, fixed for the cache's lifetime.
//     The default shard count is a heuristic (ReasonableShardCount),
//     rounded up to a power of two.
//
//   - Critical sections: each shard primitive — lookup-and-promote,
//     upsert, contains — acquires the shard lock exactly once. Eviction
//     is coupled to insertion: a single upsert call that overflows
//     capacity removes the LRU tail in the same lock acquisition that
//     admitted the new entry.
//
//   - Policies: eviction policy is pluggable via the policy package.
//     LRU is the default; a 2Q policy is also provided.
//
//   - Delayed recycle queue: New and NewProjected can be configured
//     with a recycle.Handle so that values displaced by overwrite or
//     eviction are pushed into a bounded lock-free queue instead of
//     being dropped immediately. Pushes are best-effort: a full queue
//     silently discards the value.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals
//     after the shard-local decision is made. NoopMetrics is the
//     default; plug the metrics/prom adapter to export via Prometheus.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Insert("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//
// With a recycle queue
//
//	q := recycle.New[cache.RecycledItem[[]byte]](1024)
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    Recycle:  recycle.NewHandle(q),
//	})
//	c.Insert("a", []byte("1"), 42) // expiry tag 42 rides along if displaced
//
// With GetOrLoad (singleflight)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Using an alternative policy (2Q)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 50_000,
//	    Shards:   8,
//	    // per-shard sizes: 25% and 50% of the 6_250 entries per shard
//	    Policy: twoq.New[string, string](1_562, 3_125),
//	})
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "cachex", "demo", nil)
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    Metrics:  m,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Each operation is
// O(1) expected: one map access plus a constant number of pointer
// fixes. Per shard, operations are serialized by the shard lock; across
// shards there is no ordering, so Size observes each shard's count
// independently rather than a single linearized snapshot.
package cache
