package lfqueue

import (
	"runtime"
	"sync"
	"testing"
)

// Benchmark: single producer, single consumer.
func BenchmarkQueue_1P1C(b *testing.B) {
	benchmark1P1C(b, New[int]())
}

func BenchmarkQueuePooled_1P1C(b *testing.B) {
	benchmark1P1C(b, NewPooled[int]())
}

func benchmark1P1C(b *testing.B, q *Queue[int]) {
	done := make(chan struct{})

	// Consumer
	go func() {
		for i := 0; i < b.N; i++ {
			for {
				if _, ok := q.Dequeue(); ok {
					break
				}
				runtime.Gosched()
			}
		}
		close(done)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(i)
	}
	<-done
	b.StopTimer()
}

// Benchmark: many producers, many consumers.
func BenchmarkQueue_MPMC(b *testing.B) {
	benchmarkMPMC(b, New[int]())
}

func BenchmarkQueuePooled_MPMC(b *testing.B) {
	benchmarkMPMC(b, NewPooled[int]())
}

func benchmarkMPMC(b *testing.B, q *Queue[int]) {
	const (
		producers = 8
		consumers = 8
	)

	perProducer := b.N / producers
	perConsumer := b.N / consumers

	var wg sync.WaitGroup
	wg.Add(producers + consumers)

	// Consumers
	for c := 0; c < consumers; c++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perConsumer; i++ {
				for {
					if _, ok := q.Dequeue(); ok {
						break
					}
					runtime.Gosched()
				}
			}
		}()
	}

	// Producers
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}

	b.ResetTimer()
	wg.Wait()
	b.StopTimer()
}
