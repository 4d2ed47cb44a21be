// Command throughput measures queue throughput in operations per second,
// comparing the lock-free queue (plain and pooled) against a mutex-guarded
// slice deque driven by the same producer/consumer mix.
package main

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/aradilov/lfqueue"
)

type options struct {
	rounds    int
	producers int
	consumers int
	ops       int
}

func main() {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "throughput",
		Short: "Measure queue throughput in operations per second",
		Args:  cobra.NoArgs,
		Run:   func(_ *cobra.Command, _ []string) { run(opts) },
	}

	cmd.Flags().IntVar(&opts.rounds, "rounds", 100, "rounds to average over")
	cmd.Flags().IntVar(&opts.producers, "producers", 2, "producer goroutines")
	cmd.Flags().IntVar(&opts.consumers, "consumers", 2, "consumer goroutines")
	cmd.Flags().IntVar(&opts.ops, "ops", 100_000, "elements pushed per round")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// queue is the minimal surface the harness drives; the queue under test is
// purely a callee here.
type queue interface {
	enqueue(int)
	dequeue() (int, bool)
}

type lockFree struct{ q *lfqueue.Queue[int] }

func (l lockFree) enqueue(v int)        { l.q.Enqueue(v) }
func (l lockFree) dequeue() (int, bool) { return l.q.Dequeue() }

// mutexDeque is the baseline: a slice deque behind a mutex.
type mutexDeque struct {
	mu    sync.Mutex
	items []int
}

func (d *mutexDeque) enqueue(v int) {
	d.mu.Lock()
	d.items = append(d.items, v)
	d.mu.Unlock()
}

func (d *mutexDeque) dequeue() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return 0, false
	}
	v := d.items[0]
	d.items = d.items[1:]
	return v, true
}

func run(opts options) {
	fmt.Printf("lock-free: %.3f operation/second\n",
		average(opts, func() queue { return lockFree{lfqueue.New[int]()} }))
	fmt.Printf("pooled:    %.3f operation/second\n",
		average(opts, func() queue { return lockFree{lfqueue.NewPooled[int]()} }))
	fmt.Printf("mutex:     %.3f operation/second\n",
		average(opts, func() queue { return &mutexDeque{} }))
}

func average(opts options, mk func() queue) float64 {
	total := 0.0
	for r := 0; r < opts.rounds; r++ {
		total += round(opts, mk())
	}
	return total / float64(opts.rounds)
}

func round(opts options, q queue) float64 {
	perProducer := opts.ops / opts.producers
	target := int64(perProducer * opts.producers)

	var popped atomic.Int64
	var wg sync.WaitGroup
	wg.Add(opts.producers + opts.consumers)

	start := time.Now()
	for p := 0; p < opts.producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.enqueue(i)
			}
		}()
	}
	for c := 0; c < opts.consumers; c++ {
		go func() {
			defer wg.Done()
			for popped.Load() < target {
				if _, ok := q.dequeue(); ok {
					popped.Add(1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}
	wg.Wait()

	// every element is enqueued once and dequeued once
	return float64(2*target) / time.Since(start).Seconds()
}
