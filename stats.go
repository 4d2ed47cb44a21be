package lfqueue

import "sync/atomic"

// Stats is a snapshot of the queue's contention and reclamation counters.
// Like Len, it is best effort and not linearizable with concurrent operations.
type Stats struct {
	EnqueueRetries uint64 // link CAS lost to another producer
	DequeueRetries uint64 // unlink CAS lost to another consumer
	TailFixups     uint64 // attempts to help a lagging tail forward
	Recycled       uint64 // nodes returned to the pool (pooled queues only)
	RetireDropped  uint64 // retired nodes left to the collector on ring overflow
}

// Stats retrieves the current counters of the queue.
func (q *Queue[T]) Stats() Stats {
	s := Stats{
		EnqueueRetries: atomic.LoadUint64(&q.enqueueRetries),
		DequeueRetries: atomic.LoadUint64(&q.dequeueRetries),
		TailFixups:     atomic.LoadUint64(&q.tailFixups),
	}
	q.rec.stats(&s)
	return s
}
