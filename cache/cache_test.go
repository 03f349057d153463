package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sharded-lru/lru/recycle"
)

// Scenario 1: insert three keys into a single shard at exactly its
// capacity; every key is present and retrievable.
func TestCache_Scenario1_InsertAtCapacity(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)

	if got := c.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	for k, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		if v, ok := c.Get(k); !ok || v != want {
			t.Fatalf("Get(%q) = (%v,%v), want (%v,true)", k, v, ok, want)
		}
	}
}

// Scenario 2: inserting a fourth key over capacity evicts the oldest
// (LRU tail), leaving the rest intact.
func TestCache_Scenario2_OverflowEvictsOldest(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.Insert("d", 4)

	if got := c.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	if c.Exists("a") {
		t.Fatal("a must be evicted")
	}
	for k, want := range map[string]int{"b": 2, "c": 3, "d": 4} {
		if v, ok := c.Get(k); !ok || v != want {
			t.Fatalf("Get(%q) = (%v,%v), want (%v,true)", k, v, ok, want)
		}
	}
}

// Scenario 3: reading the oldest key promotes it, so the NEXT eviction
// takes the second-oldest, not the one just read.
func TestCache_Scenario3_GetPromotesBeforeEviction(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.Get("a") // promotes a to MRU; b is now the LRU tail
	c.Insert("d", 4)

	if c.Exists("b") {
		t.Fatal("b (second-oldest) must be evicted, not a")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Exists(k) {
			t.Fatalf("%q must remain", k)
		}
	}
}

// Scenario 4: inserting the same key twice overwrites in place and
// does not change the shard's size.
func TestCache_Scenario4_OverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("a", 2)

	if got := c.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = (%v,%v), want (2,true)", v, ok)
	}
}

// Idempotence of Clear: a second Clear on an already-empty cache is a no-op.
func TestCache_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Clear()
	c.Clear()

	if got := c.Size(); got != 0 {
		t.Fatalf("Size() after double Clear = %d, want 0", got)
	}
}

// Scenario 5: with a recycle queue of capacity 2, the first two
// displaced values are recoverable and the third is silently dropped.
func TestCache_Scenario5_RecycleQueueDropsOnOverflow(t *testing.T) {
	t.Parallel()

	q := recycle.New[RecycledItem[int]](2)
	c := New[string, int](Options[string, int]{
		Capacity: 3,
		Shards:   1,
		Recycle:  recycle.NewHandle(q),
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.Insert("d", 4) // evicts a (1) -> pushed
	c.Insert("e", 5) // evicts b (2) -> pushed
	c.Insert("f", 6) // evicts c (3) -> queue full, dropped

	got := map[int]bool{}
	for {
		item, ok := q.TryPop()
		if !ok {
			break
		}
		got[item.Value] = true
	}
	if len(got) != 2 || !got[1] || !got[2] {
		t.Fatalf("recycled values = %v, want {1,2}", got)
	}
}

// NewProjected with a recycle queue pushes only the projected field of
// the displaced value, never the full value.
func TestCacheProjected_RecycleQueueReceivesProjectedField(t *testing.T) {
	t.Parallel()

	type resource struct {
		meta   string
		handle int
	}

	q := recycle.New[RecycledItem[int]](4)
	c := NewProjected[string, resource, int](ProjectedOptions[string, resource, int]{
		Capacity: 3,
		Shards:   1,
		Project:  func(r resource) int { return r.handle },
		Recycle:  recycle.NewHandle(q),
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", resource{meta: "x", handle: 11})
	c.Insert("b", resource{meta: "y", handle: 22})
	c.Insert("c", resource{meta: "z", handle: 33})
	c.Insert("d", resource{meta: "w", handle: 44}) // evicts a -> only handle 11 recycled

	item, ok := q.TryPop()
	if !ok {
		t.Fatal("expected a recycled item")
	}
	if item.Value != 11 {
		t.Fatalf("recycled value = %d, want 11 (projected handle, not the full resource)", item.Value)
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected exactly one recycled item")
	}
}

// Overwriting a key with a recycle queue attached pushes the old value,
// exercising the other half of the recycle-completeness property
// (pushes attempted = evictions + overwrites), not just eviction.
func TestCache_OverwriteTriggersRecycle(t *testing.T) {
	t.Parallel()

	q := recycle.New[RecycledItem[int]](4)
	c := New[string, int](Options[string, int]{
		Capacity: 3,
		Shards:   1,
		Recycle:  recycle.NewHandle(q),
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("a", 2, 7) // overwrite, tagged 7 -> old value 1 recycled

	item, ok := q.TryPop()
	if !ok {
		t.Fatal("expected the overwritten value to be recycled")
	}
	if item.Value != 1 || item.Expiry != 7 {
		t.Fatalf("recycled item = %+v, want {Expiry:7 Value:1}", item)
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected exactly one recycled item")
	}
	if got := c.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1 (overwrite must not change size)", got)
	}
}

// Scenario 6: two threads inserting 100,000 distinct keys each into a
// 16-shard, 1024-capacity cache never exceed the approximate total
// bound, and every key not evicted by the time it is checked is
// retrievable with its last-written value.
func TestCache_Scenario6_ConcurrentInsert(t *testing.T) {
	const (
		shards     = 16
		perShard   = 64
		perThread  = 100_000
		goroutines = 2
	)

	c := New[int, int](Options[int, int]{
		Capacity: shards * perShard,
		Shards:   shards,
	})
	t.Cleanup(func() { _ = c.Close() })

	var g errgroup.Group
	for w := 0; w < goroutines; w++ {
		base := w * perThread
		g.Go(func() error {
			for i := 0; i < perThread; i++ {
				c.Insert(base+i, base+i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got, max := c.Size(), shards*perShard; got > max {
		t.Fatalf("Size() = %d, want <= %d", got, max)
	}
	for i := 0; i < goroutines*perThread; i++ {
		if v, ok := c.Get(i); ok && v != i {
			t.Fatalf("Get(%d) = %d, want %d", i, v, i)
		}
	}
}

// Exists does not promote: reading via Exists must not change eviction
// order versus a cache that never called Exists.
func TestCache_ExistsDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.Exists("a") // must not promote a
	c.Insert("d", 4)

	if c.Exists("a") {
		t.Fatal("a must still be evicted despite Exists; Exists must not promote")
	}
}

// Construction rejects Capacity < 3*Shards.
func TestCache_NewPanicsOnUndersizedCapacity(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for Capacity < 3*Shards")
		}
	}()
	New[string, int](Options[string, int]{Capacity: 2, Shards: 1})
}

// SetCacheSize rebinds capacity without evicting existing entries.
func TestCache_SetCacheSizeDoesNotEvict(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)
	c.SetCacheSize(1)

	if got := c.Size(); got != 3 {
		t.Fatalf("Size() immediately after shrink = %d, want 3 (no eager eviction)", got)
	}
	c.Insert("d", 4)
	if got := c.Size(); got != 1 {
		t.Fatalf("Size() after next insert = %d, want 1 (drained to new bound)", got)
	}
}

// Singleflight test: concurrent GetOrLoad calls for the same key
// trigger the Loader at most once; subsequent calls are cache hits.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Capacity: 64,
		Shards:   4,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}

	if v, err := c.GetOrLoad(context.Background(), "k"); err != nil || v != "v:k" {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}

// GetOrLoad with no Loader configured returns ErrNoLoader.
func TestCache_GetOrLoad_NoLoader(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{Capacity: 8, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.GetOrLoad(context.Background(), "k"); err != ErrNoLoader {
		t.Fatalf("err = %v, want ErrNoLoader", err)
	}
}
