package cache

import (
	"context"

	"github.com/sharded-lru/lru/policy"
	"github.com/sharded-lru/lru/recycle"
)

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity — removed because its shard was over its per-shard
	// capacity (the LRU tail, or whatever node the active policy named).
	EvictCapacity EvictReason = iota
)

// Metrics exposes cache-level observability hooks. The shard invokes
// these after its locked decision is made — metrics collection itself
// is an external collaborator, never a dependency of the eviction
// logic. A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// RecycledItem is what a displaced value looks like once it reaches the
// recycle queue: the caller-supplied expiry tag plus the payload. For
// the simple variant P is V; for the projected variant P is whatever
// Project extracts from V.
type RecycledItem[P any] struct {
	Expiry uint32
	Value  P
}

// Options configures a simple-variant cache. Capacity has no default and
// must be set; for the other fields, defaults are applied in New():
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (≈ 2*GOMAXPROCS, rounded to a power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Hash     => Fnv64a
type Options[K comparable, V any] struct {
	// Capacity is the approximate total entry count bound. Must be >= 3
	// times the shard count in use (Shards after rounding, or the
	// automatic count), otherwise New panics; per-shard capacity is
	// ceil(Capacity/shard count).
	Capacity int

	// Shards is the shard count, rounded up to the next power of two. If
	// 0 or less, an automatic value is chosen.
	Shards int

	// Policy is a pluggable eviction policy (LRU/2Q/…); nil => LRU.
	Policy policy.Policy[K, V]

	// Hash overrides the default key hasher. nil => Fnv64a[K].
	Hash func(K) uint64

	// Recycle, if non-nil, receives displaced values (evicted or
	// overwritten) as RecycledItem[V]. A nil Handle, or one whose Load
	// returns nil, disables recycling: displaced values are simply
	// discarded immediately.
	Recycle *recycle.Handle[RecycledItem[V]]

	// Loader fetches a value on a GetOrLoad miss.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called on eviction, under the shard lock; keep callbacks
	// lightweight. Overwriting an existing key does not invoke it.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics
}

// ProjectedOptions configures the projected-recycle variant: only
// Project(v) is carried into the recycle queue, not the whole value.
// Used when V bundles a cheap part the cache doesn't care about and an
// expensive part (e.g. a handle) that genuinely needs asynchronous
// reclamation.
type ProjectedOptions[K comparable, V any, P any] struct {
	Capacity int
	Shards   int
	Policy   policy.Policy[K, V]
	Hash     func(K) uint64

	// Project extracts the piece of V that is worth recycling. Required
	// whenever Recycle is non-nil.
	Project func(V) P
	Recycle *recycle.Handle[RecycledItem[P]]

	Loader  func(ctx context.Context, k K) (V, error)
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics
}
