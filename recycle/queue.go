package recycle

import "github.com/sharded-lru/lru/internal/util"

// cell is one ring-buffer slot. sequence acts as the slot's generation
// counter: producers and consumers compare it against their target
// position to decide whether a slot is free, full, or being raced for,
// without ever blocking. The atomic store to sequence after writing
// data publishes that write to any thread that later observes the new
// sequence value via an atomic load — the classic bounded MPMC queue
// construction (Vyukov).
type cell[P any] struct {
	sequence util.PaddedAtomicUint64
	data     P
}

// Queue is a bounded, lock-free, multi-producer multi-consumer ring
// buffer of payloads P. Capacity is fixed at construction (rounded up
// to a power of two) and TryPush/TryPop never block: TryPush fails closed
// when the ring is full, TryPop fails closed when it's empty.
type Queue[P any] struct {
	mask uint64
	buf  []cell[P]

	_          util.CacheLinePad
	enqueuePos util.PaddedAtomicUint64
	_          util.CacheLinePad
	dequeuePos util.PaddedAtomicUint64
}

// New constructs a Queue with room for at least capacity items.
// capacity is rounded up to the next power of two (minimum 2).
func New[P any](capacity int) *Queue[P] {
	if capacity < 2 {
		capacity = 2
	}
	n := int(util.NextPow2(uint64(capacity)))
	q := &Queue[P]{
		mask: uint64(n - 1),
		buf:  make([]cell[P], n),
	}
	for i := range q.buf {
		q.buf[i].sequence.Store(uint64(i))
	}
	return q
}

// Cap returns the queue's fixed capacity (a power of two, >= the
// capacity requested at construction).
func (q *Queue[P]) Cap() int { return len(q.buf) }

// TryPush attempts to enqueue v without blocking. It reports false if
// the queue is full; the caller then owns discarding v (for the
// projected recycle variant, v must be cheap to drop — this is a
// caller contract, not something Queue enforces).
func (q *Queue[P]) TryPush(v P) bool {
	pos := q.enqueuePos.Load()
	for {
		c := &q.buf[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.data = v
				c.sequence.Store(pos + 1)
				return true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// TryPop attempts to dequeue the oldest payload without blocking. It
// reports false if the queue is empty.
func (q *Queue[P]) TryPop() (P, bool) {
	pos := q.dequeuePos.Load()
	for {
		c := &q.buf[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := c.data
				var zero P
				c.data = zero
				c.sequence.Store(pos + q.mask + 1)
				return v, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			var zero P
			return zero, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}
