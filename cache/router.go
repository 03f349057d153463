package cache

import "github.com/sharded-lru/lru/internal/util"

// router maps a key to exactly one shard index via hash(k) mod S. It is
// stable for the lifetime of the cache — a key's shard is determined
// solely by its hash, never restriped by Reserve or SetCacheSize.
type router[K comparable] struct {
	hash   func(K) uint64
	shards int
}

func newRouter[K comparable](hash func(K) uint64, shards int) router[K] {
	return router[K]{hash: hash, shards: shards}
}

// indexOf returns the shard index for k. shards is guaranteed to be a
// power of two by New/NewProjected, so util.ShardIndex takes the fast
// mask path.
func (r router[K]) indexOf(k K) int {
	return util.ShardIndex(r.hash(k), r.shards)
}
