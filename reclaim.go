package lfqueue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// reclaimer decides how unlinked nodes are given back. The queue itself never
// frees or reuses a node inline: every node removed by Dequeue goes through
// retire, and every traversal of the chain happens inside a pin/unpin pair.
type reclaimer[T any] interface {
	alloc() *node[T]
	pin() *readerSlot
	unpin(*readerSlot)
	retire(*node[T])
	stats(*Stats)
}

// collector relies on the Go garbage collector: once a node is unlinked and
// the last in-flight reference to it is dropped, it becomes unreachable and
// is collected. Pinning is unnecessary because the collector never frees a
// node somebody still references.
type collector[T any] struct{}

func (collector[T]) alloc() *node[T]   { return &node[T]{} }
func (collector[T]) pin() *readerSlot  { return nil }
func (collector[T]) unpin(*readerSlot) {}
func (collector[T]) retire(*node[T])   {}
func (collector[T]) stats(*Stats)      {}

// inactive marks a reader slot with no pinned reader.
const inactive = ^uint64(0)

const (
	maxReaders  = 128 // concurrent pinned operations, not goroutines
	retireEvery = 64  // attempt a reclaim pass every N retired nodes
)

// readerSlot records the global epoch at which an operation pinned itself.
type readerSlot struct {
	epoch atomic.Uint64
	_     [56]byte
}

// epochReclaimer recycles nodes through a sync.Pool once no pinned reader
// can still observe them. Retired nodes wait in a bounded ring together with
// the epoch current at retirement; a node leaves the ring only after the
// global epoch has advanced past it for every active reader. That is exactly
// the grace-period guarantee the queue needs: a reader that pinned before
// the node was unlinked is still counted, so the node cannot be handed out
// again under its feet.
type epochReclaimer[T any] struct {
	global  atomic.Uint64
	readers [maxReaders]readerSlot

	ring       *retireRing[T]
	pool       sync.Pool
	reclaiming atomic.Bool // single-flight guard for the reclaim pass
	retires    atomic.Uint64

	recycled uint64
	dropped  uint64
}

func newEpochReclaimer[T any]() *epochReclaimer[T] {
	r := &epochReclaimer[T]{ring: newRetireRing[T](retireRingCapacity)}
	for i := range r.readers {
		r.readers[i].epoch.Store(inactive)
	}
	r.pool.New = func() any { return new(node[T]) }
	return r
}

// alloc returns a node that is provably unobservable: either fresh, or
// recycled after its grace period elapsed.
func (r *epochReclaimer[T]) alloc() *node[T] {
	return r.pool.Get().(*node[T])
}

// pin claims a reader slot and publishes the epoch the caller entered at.
// The epoch is loaded before the claim, so a racing advance can only make
// the published value older than reality, which merely delays reclamation.
func (r *epochReclaimer[T]) pin() *readerSlot {
	for {
		e := r.global.Load()
		for i := range r.readers {
			s := &r.readers[i]
			if s.epoch.Load() != inactive {
				continue
			}
			if s.epoch.CompareAndSwap(inactive, e) {
				return s
			}
		}
		// more than maxReaders operations in flight; wait for a slot
		runtime.Gosched()
	}
}

func (r *epochReclaimer[T]) unpin(s *readerSlot) {
	s.epoch.Store(inactive)
}

// retire parks an unlinked node until it is safe to reuse. If the ring is
// full the node is dropped to the collector, which is always safe: pooling
// is best effort, the grace-period contract is not.
func (r *epochReclaimer[T]) retire(n *node[T]) {
	if !r.ring.enqueue(retired[T]{n: n, epoch: r.global.Load()}) {
		// drop to the collector, then try to drain the backlog: a full ring
		// must keep attempting passes or it could never recover once the
		// readers that blocked reclamation leave
		atomic.AddUint64(&r.dropped, 1)
		r.reclaim()
		return
	}
	if r.retires.Add(1)%retireEvery == 0 {
		r.reclaim()
	}
}

// reclaim advances the global epoch and recycles every retired node whose
// epoch every active reader has moved past. Entries enter the ring in retire
// order, so the pass stops at the first entry that is still unsafe.
func (r *epochReclaimer[T]) reclaim() {
	if !r.reclaiming.CompareAndSwap(false, true) {
		return
	}
	r.global.Add(1)
	min := r.minReaderEpoch()
	for {
		ent, ok := r.ring.dequeue()
		if !ok {
			break
		}
		if min == inactive || ent.epoch < min {
			r.recycle(ent.n)
			continue
		}
		// not safe yet; put it back and give up until the next pass
		if !r.ring.enqueue(ent) {
			atomic.AddUint64(&r.dropped, 1)
		}
		break
	}
	r.reclaiming.Store(false)
}

func (r *epochReclaimer[T]) minReaderEpoch() uint64 {
	min := uint64(inactive)
	for i := range r.readers {
		if e := r.readers[i].epoch.Load(); e < min {
			min = e
		}
	}
	return min
}

func (r *epochReclaimer[T]) recycle(n *node[T]) {
	var zero T
	n.val = zero // release the payload reference before the node is reused
	n.next.Store(nil)
	atomic.AddUint64(&r.recycled, 1)
	r.pool.Put(n)
}

func (r *epochReclaimer[T]) stats(s *Stats) {
	s.Recycled = atomic.LoadUint64(&r.recycled)
	s.RetireDropped = atomic.LoadUint64(&r.dropped)
}
