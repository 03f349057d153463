// Package recycle implements the delayed recycle queue: a bounded,
// lock-free, multi-producer multi-consumer ring buffer that a sharded
// cache uses to carry displaced values out of its shard critical
// sections for asynchronous handling (deferred reclamation, expiry
// bookkeeping, etc.).
//
// Queue is built directly on sync/atomic using the cache-line padding
// idiom from internal/util, since no off-the-shelf lock-free queue
// library is a dependency here. See DESIGN.md for the full rationale.
//
// Queue never blocks: TryPush is best-effort and returns false when the
// ring is full. A full queue is a policy loss only — it never corrupts
// the ring's internal state.
package recycle
