package lfqueue

import (
	"runtime"

	"github.com/valyala/fastrand"
)

const (
	goschedEvery = 64     // reduce runtime.Gosched() frequency in hot loops
	maxSpin      = 1 << 6 // upper bound for the randomized spin window
)

// backoff spreads contending CAS loops apart with a short randomized spin,
// yielding the processor every goschedEvery pauses. Purely a throughput
// measure: correctness never depends on it.
type backoff struct {
	spins uint32
}

func (b *backoff) pause() {
	b.spins++
	if b.spins%goschedEvery == 0 {
		runtime.Gosched()
		return
	}
	window := b.spins
	if window > maxSpin {
		window = maxSpin
	}
	// jitter desynchronizes producers that keep losing the same CAS
	for i := fastrand.Uint32n(window) + 1; i > 0; i-- {
		spinWait()
	}
}

//go:noinline
func spinWait() {}
