package cache

import (
	"sync"

	"github.com/sharded-lru/lru/internal/util"
	"github.com/sharded-lru/lru/policy"
)

// shard is an independent partition of the cache: its own lock, its own
// index (m), and its own intrusive MRU↔LRU doubly linked list (head=MRU,
// tail=LRU). Every public shard method is a single critical section —
// the lookup and whatever mutation follows it happen under one lock
// acquisition, never two.
type shard[K comparable, V any] struct {
	mu   sync.RWMutex
	m    map[K]*node[K, V]
	head *node[K, V]
	tail *node[K, V]
	len  int
	cap  int

	pol policy.ShardPolicy[K, V]

	// onDisplace receives every value pushed out of this shard — by
	// overwrite or by eviction — tagged with the expiry passed to the
	// triggering Insert call. nil disables recycling entirely.
	onDisplace func(expiry uint32, v V)
	onEvict    func(k K, v V, reason EvictReason)
	metrics    Metrics

	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V any](
	capacity int,
	pol policy.Policy[K, V],
	onDisplace func(expiry uint32, v V),
	onEvict func(k K, v V, reason EvictReason),
	metrics Metrics,
) *shard[K, V] {
	s := &shard[K, V]{
		m:          make(map[K]*node[K, V], capacity),
		cap:        capacity,
		onDisplace: onDisplace,
		onEvict:    onEvict,
		metrics:    metrics,
	}
	s.pol = pol.New(shardHooks[K, V]{s: s})
	return s
}

// lookupAndPromote finds k, splices its node to MRU, and returns a copy
// of its value. The node's address never changes; only the list links
// and the policy's bookkeeping move.
func (s *shard[K, V]) lookupAndPromote(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.metrics.Miss()
		var zero V
		return zero, false
	}
	s.pol.OnGet(n)
	s.hits.Add(1)
	s.metrics.Hit()
	return n.val, true
}

// contains reports whether k is present without promoting it.
func (s *shard[K, V]) contains(k K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[k]
	return ok
}

// upsert inserts or overwrites k→v. If k was already present, the old
// value is displaced (recycled) and the node is promoted to MRU with no
// change in shard size. If k was absent, a new MRU node is created and,
// while the shard is over capacity, the LRU tail is evicted (one entry
// in the usual case; more after SetCacheSize lowered the bound). The key
// of the last entry evicted this way is returned.
func (s *shard[K, V]) upsert(k K, v V, expiry uint32) (evictedKey K, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		old := n.val
		n.val = v
		s.pol.OnUpdate(n)
		s.displaceLocked(expiry, old)
		var zero K
		return zero, false
	}

	n := &node[K, V]{key: k, val: v}
	s.m[k] = n
	if ev := s.pol.OnAdd(n); ev != nil {
		s.evictNode(ev.(*node[K, V]), EvictCapacity, expiry)
	}

	for s.len > s.cap {
		tail := s.back()
		if tail == nil {
			break
		}
		evictedKey = tail.key
		evicted = true
		s.evictNode(tail, EvictCapacity, expiry)
	}
	s.metrics.Size(s.len)
	return evictedKey, evicted
}

// clear empties the shard's index and list under one lock acquisition.
func (s *shard[K, V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[K]*node[K, V], s.cap)
	s.head, s.tail = nil, nil
	s.len = 0
}

// reserve grows the index's bucket count to approximately n, if n
// exceeds what it already holds. Go maps have no explicit reserve, so
// this recreates the map with a size hint and rehashes existing
// entries; it is a no-op when n does not grow the map.
func (s *shard[K, V]) reserve(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= len(s.m) {
		return
	}
	nm := make(map[K]*node[K, V], n)
	for k, v := range s.m {
		nm[k] = v
	}
	s.m = nm
}

// setCapacity rebinds the shard's capacity without evicting; the shard
// drains down to the new bound through subsequent inserts.
func (s *shard[K, V]) setCapacity(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cap = n
}

// length returns the shard's current resident entry count.
func (s *shard[K, V]) length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

// displaceLocked routes a value leaving the shard (via overwrite or
// eviction) to the recycle queue, if one is configured. Must only be
// called while mu is held.
func (s *shard[K, V]) displaceLocked(expiry uint32, v V) {
	if s.onDisplace != nil {
		s.onDisplace(expiry, v)
	}
}

// insertFront inserts n at MRU in O(1).
func (s *shard[K, V]) insertFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront promotes n to MRU in O(1).
func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// removeNode detaches n from the list in O(1).
func (s *shard[K, V]) removeNode(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// back returns the current LRU node, or nil if the shard is empty.
func (s *shard[K, V]) back() *node[K, V] { return s.tail }

// evictNode removes n, displaces its value with expiry, and notifies
// metrics/OnEvict. Must only be called while mu is held.
func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason, expiry uint32) {
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.metrics.Evict(reason)
	s.displaceLocked(expiry, n.val)
	if s.onEvict != nil {
		s.onEvict(n.key, n.val, reason)
	}
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.removeNode(x.(*node[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V]         { return h.s.back() }
func (h shardHooks[K, V]) Len() int                        { return h.s.len }
