package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sharded-lru/lru/internal/singleflight"
	"github.com/sharded-lru/lru/internal/util"
	"github.com/sharded-lru/lru/policy/lru"
	"github.com/sharded-lru/lru/recycle"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// cache is a sharded in-memory KV store with a pluggable eviction policy.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	router[K]
	shards []*shard[K, V]
	closed atomic.Bool

	loader func(ctx context.Context, k K) (V, error)
	sf     singleflight.Group[K, V]
}

// New constructs a simple-variant cache with the provided Options.
// Capacity must be at least 3 times the shard count in use, i.e. after
// Shards is rounded up to a power of two (3 per shard, the minimum for the
// recency-ordering guarantees in a 3-entry window); violating this
// panics, matching the precondition-violations-are-programmer-errors
// policy documented for this package.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	shards := resolveShardCount(opt.Shards)
	perShardCap := validatedPerShardCap(opt.Capacity, shards)

	hash := opt.Hash
	if hash == nil {
		hash = util.Fnv64a[K]
	}
	pol := opt.Policy
	if pol == nil {
		pol = lru.New[K, V]()
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	onDisplace := displaceFuncFor(opt.Recycle)

	cs := make([]*shard[K, V], shards)
	for i := range cs {
		cs[i] = newShard[K, V](perShardCap, pol, onDisplace, opt.OnEvict, metrics)
	}

	c := &cache[K, V]{
		router: newRouter[K](hash, shards),
		shards: cs,
		loader: opt.Loader,
	}
	c.Reserve(opt.Capacity)
	return c
}

// NewProjected constructs a projected-recycle-variant cache: only
// opt.Project(v) is carried into the recycle queue, never the full
// value. Project is required whenever opt.Recycle is non-nil.
func NewProjected[K comparable, V any, P any](opt ProjectedOptions[K, V, P]) Cache[K, V] {
	shards := resolveShardCount(opt.Shards)
	perShardCap := validatedPerShardCap(opt.Capacity, shards)

	hash := opt.Hash
	if hash == nil {
		hash = util.Fnv64a[K]
	}
	pol := opt.Policy
	if pol == nil {
		pol = lru.New[K, V]()
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if opt.Recycle != nil && opt.Project == nil {
		panic("cache: ProjectedOptions.Project must be set when Recycle is set")
	}

	onDisplace := projectedDisplaceFunc(opt.Recycle, opt.Project)

	cs := make([]*shard[K, V], shards)
	for i := range cs {
		cs[i] = newShard[K, V](perShardCap, pol, onDisplace, opt.OnEvict, metrics)
	}

	c := &cache[K, V]{
		router: newRouter[K](hash, shards),
		shards: cs,
		loader: opt.Loader,
	}
	c.Reserve(opt.Capacity)
	return c
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) Exists(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(k).contains(k)
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.shardFor(k).lookupAndPromote(k)
}

func (c *cache[K, V]) Insert(k K, v V, expiry ...uint32) {
	if c.closed.Load() {
		return
	}
	var tag uint32
	if len(expiry) > 0 {
		tag = expiry[0]
	}
	c.shardFor(k).upsert(k, v, tag)
}

func (c *cache[K, V]) Clear() {
	for _, s := range c.shards {
		s.clear()
	}
}

func (c *cache[K, V]) Reserve(n int) {
	if n <= 0 {
		return
	}
	perShard := int(float64(n)*1.1) / len(c.shards)
	for _, s := range c.shards {
		s.reserve(perShard)
	}
}

func (c *cache[K, V]) SetCacheSize(n int) {
	perShard := (n + len(c.shards) - 1) / len(c.shards)
	for _, s := range c.shards {
		s.setCapacity(perShard)
	}
}

func (c *cache[K, V]) Size() int {
	total := 0
	for _, s := range c.shards {
		total += s.length()
	}
	return total
}

func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// GetOrLoad returns the value for k; on miss it loads via the
// configured Loader, coalescing concurrent loads for the same key.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.sf.Do(ctx, k, func() (V, error) {
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.loader(ctx, k)
		if err == nil {
			c.Insert(k, v)
		}
		return v, err
	})
}

// ---- helpers ----

func (c *cache[K, V]) shardFor(k K) *shard[K, V] {
	return c.shards[c.indexOf(k)]
}

// resolveShardCount rounds shards up to a power of two, or picks an
// automatic value when shards <= 0.
func resolveShardCount(shards int) int {
	if shards <= 0 {
		return util.ReasonableShardCount()
	}
	return int(util.NextPow2(uint64(shards)))
}

// validatedPerShardCap enforces Capacity >= 3*shards and returns the
// per-shard capacity ceil(Capacity/shards).
func validatedPerShardCap(capacity, shards int) int {
	if capacity < 3*shards {
		panic("cache: Capacity must be >= 3*Shards")
	}
	return (capacity + shards - 1) / shards
}

// displaceFuncFor builds the shard-level displacement closure for the
// simple recycle variant. A nil handle (recycling disabled) yields a
// nil closure, which the shard treats as "discard immediately."
func displaceFuncFor[V any](h *recycle.Handle[RecycledItem[V]]) func(uint32, V) {
	if h == nil {
		return nil
	}
	return func(expiry uint32, v V) {
		q := h.Load()
		if q == nil {
			return
		}
		q.TryPush(RecycledItem[V]{Expiry: expiry, Value: v})
	}
}

// projectedDisplaceFunc builds the shard-level displacement closure for
// the projected recycle variant: only project(v) is boxed and pushed.
func projectedDisplaceFunc[V any, P any](h *recycle.Handle[RecycledItem[P]], project func(V) P) func(uint32, V) {
	if h == nil || project == nil {
		return nil
	}
	return func(expiry uint32, v V) {
		q := h.Load()
		if q == nil {
			return
		}
		q.TryPush(RecycledItem[P]{Expiry: expiry, Value: project(v)})
	}
}
