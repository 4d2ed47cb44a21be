package lfqueue

import "sync/atomic"

// Bounded ring holding retired nodes until their grace period elapses.
// Original algorithm by Dmitry Vyukov
// https://www.1024cores.net/home/lock-free-algorithms/queues/bounded-mpmc-queue
//
// Producers are the Dequeue calls that retire a node; the consumer is the
// reclaim pass, which runs single-flight, so the consumer side stays single
// threaded the way the algorithm requires.

const retireRingCapacity = 1024

// retired pairs a node with the global epoch current at its retirement.
type retired[T any] struct {
	n     *node[T]
	epoch uint64
}

type ringSlot[T any] struct {
	seq atomic.Uint64 // sequence number (controls visibility and slot ownership)
	val retired[T]
}

type retireRing[T any] struct {
	// Optional padding to avoid false sharing between frequently accessed fields
	_          [64]byte
	mask       uint64
	capacity   uint64
	slots      []ringSlot[T]
	_          [64]byte
	enqueuePos atomic.Uint64 // logical "tail", updated by multiple producers
	_          [64]byte
	dequeuePos uint64 // logical "head", updated by the single reclaimer
	_          [64]byte
}

// newRetireRing creates a bounded ring. Capacity must be a power of two (1<<k).
func newRetireRing[T any](capacity uint64) *retireRing[T] {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be power of 2 and > 0")
	}

	slots := make([]ringSlot[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		// initial sequence value per slot
		slots[i].seq.Store(i)
	}

	return &retireRing[T]{
		mask:     capacity - 1,
		capacity: capacity,
		slots:    slots,
	}
}

// enqueue publishes a retired node. Returns false if the ring is full.
// May be called concurrently from many goroutines.
func (r *retireRing[T]) enqueue(v retired[T]) bool {
	for {
		pos := r.enqueuePos.Load()
		s := &r.slots[pos&r.mask]

		seq := s.seq.Load()
		diff := int64(seq) - int64(pos)

		if diff == 0 {
			// slot is free for this position, try to reserve it
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				// we won the slot
				s.val = v
				// publish the value: seq = pos+1
				s.seq.Store(pos + 1)
				return true
			}
			// contention, retry
		} else if diff < 0 {
			// slot has not been freed by the reclaimer yet => ring is full
			return false
		}
		// diff > 0 => this slot still belongs to a previous cycle, retry
	}
}

// dequeue takes the oldest retired node. Returns (zero, false) if the ring
// is empty or the oldest slot is still mid-publish.
// IMPORTANT: must only be called by the single-flight reclaim pass.
func (r *retireRing[T]) dequeue() (retired[T], bool) {
	pos := r.dequeuePos
	s := &r.slots[pos&r.mask]

	seq := s.seq.Load()
	diff := int64(seq) - int64(pos+1)

	var zero retired[T]

	if diff == 0 {
		// entry ready
		r.dequeuePos = pos + 1

		v := s.val
		s.val = zero
		// free the slot for the next cycle:
		// next time this physical slot is used at pos+capacity
		s.seq.Store(pos + r.capacity)

		return v, true
	}

	// diff < 0: ring is logically empty.
	// diff > 0: producer reserved the slot but has not published yet.
	return zero, false
}
