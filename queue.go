package lfqueue

import "sync/atomic"

// Classic unbounded lock-free FIFO by Michael & Scott
// https://www.cs.rochester.edu/~scott/papers/1996_PODC_queues.pdf

// T — specific type to store in the queue.
// Any number of goroutines may enqueue and dequeue through a shared *Queue.
// Operations never park or sleep; progress is by CAS retry only.

// node is a single list cell. val is meaningful only between a successful
// link and the unlink that hands it to a consumer; the sentinel's val is
// always the zero value.
type node[T any] struct {
	val  T
	next atomic.Pointer[node[T]]
}

type Queue[T any] struct {
	// Optional padding to avoid false sharing between frequently accessed fields
	_    [64]byte
	head atomic.Pointer[node[T]] // sentinel: its val has already been consumed
	_    [64]byte
	tail atomic.Pointer[node[T]] // node believed to be last; may lag, never precedes head
	_    [64]byte
	// best-effort occupancy counter: updated outside the structural CAS, so
	// concurrent readers can observe a transiently stale value. Exact only
	// once every in-flight operation has finished.
	length atomic.Int64
	_      [64]byte

	rec reclaimer[T]

	enqueueRetries uint64
	dequeueRetries uint64
	tailFixups     uint64
}

// New creates an empty queue whose unlinked nodes are left to the garbage
// collector.
func New[T any]() *Queue[T] {
	return newQueue[T](collector[T]{})
}

// NewPooled creates an empty queue that recycles unlinked nodes through an
// epoch-reclaimed pool instead of allocating a fresh node per Enqueue.
// Semantics are identical to New; only the allocation behavior differs.
func NewPooled[T any]() *Queue[T] {
	return newQueue[T](newEpochReclaimer[T]())
}

func newQueue[T any](rec reclaimer[T]) *Queue[T] {
	q := &Queue[T]{rec: rec}
	sentinel := rec.alloc()
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue appends v to the queue. It never fails and never blocks; under
// contention it retries until its link CAS wins.
// Safe to call concurrently from many goroutines.
func (q *Queue[T]) Enqueue(v T) {
	pin := q.rec.pin()
	n := q.rec.alloc()
	n.val = v

	var bo backoff
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			// stale snapshot, retry
			continue
		}
		if next != nil {
			// tail lags behind the true last node; help it forward
			q.tail.CompareAndSwap(tail, next)
			atomic.AddUint64(&q.tailFixups, 1)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			// linked and visible; the tail swing is best effort, a helper
			// will fix it if we lose
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			q.rec.unpin(pin)
			return
		}
		// another producer linked first
		atomic.AddUint64(&q.enqueueRetries, 1)
		bo.pause()
	}
}

// Dequeue removes and returns the first element. Returns (zero, false) if
// the queue is empty. It never blocks.
// Safe to call concurrently from many goroutines.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	pin := q.rec.pin()

	var bo backoff
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			// stale snapshot, retry
			continue
		}
		if head == tail {
			if next == nil {
				q.rec.unpin(pin)
				return zero, false
			}
			// tail lags; help it forward and retry
			q.tail.CompareAndSwap(tail, next)
			atomic.AddUint64(&q.tailFixups, 1)
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			// reading val is safe only after winning the unlink CAS: the
			// swing transferred exclusive ownership of next.val to us
			v := next.val
			next.val = zero // the new sentinel must not retain the element
			q.length.Add(-1)
			// the old sentinel may still be referenced by a concurrent
			// snapshot, so it is retired, never freed inline
			q.rec.retire(head)
			q.rec.unpin(pin)
			return v, true
		}
		// another consumer won the unlink
		atomic.AddUint64(&q.dequeueRetries, 1)
		bo.pause()
	}
}

// Len returns the best-effort number of elements in the queue. It is exact
// only when no Enqueue or Dequeue is in flight.
func (q *Queue[T]) Len() int {
	return int(q.length.Load())
}

// IsEmpty reports whether Len() == 0. Same best-effort caveat as Len.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Drain pops and discards elements until the queue is empty and returns how
// many were dropped. Node memory, including the final sentinel, is released
// by the collector together with the queue.
func (q *Queue[T]) Drain() int {
	n := 0
	for {
		if _, ok := q.Dequeue(); !ok {
			return n
		}
		n++
	}
}
