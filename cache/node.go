package cache

// node is an intrusive doubly linked list element owned by a shard.
// Head is MRU, tail is LRU. A node's address is its stable handle: the
// shard's index stores *node[K,V], and that pointer never changes for
// the life of the entry even while other nodes in the same list are
// spliced around it.
type node[K comparable, V any] struct {
	key K
	val V

	prev *node[K, V]
	next *node[K, V]
}

// Key returns the node key (part of policy.Node interface).
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value (part of policy.Node interface).
// NOTE: callers must only read/write through this pointer while holding the
// shard lock; otherwise data races may occur.
func (n *node[K, V]) Value() *V { return &n.val }
