package player

import (
	"sync"
	"sync/atomic"
)

// workerPool hosts the long-lived goroutines that race the block driver for
// node claims. Workers spin — they never block — so the pool is started
// lazily, on the first graph preparation, rather than at player construction.
type workerPool struct {
	claim func() bool

	exit    atomic.Bool
	wg      sync.WaitGroup
	workers int
}

// numWorkersFor returns the pool size for a host with the given parallelism:
// one goroutine per logical CPU minus one reserved for the real-time caller,
// floored at one so single-core hosts still function.
func numWorkersFor(parallelism int) int {
	return max(1, parallelism-1)
}

// start launches n workers. Must be called at most once.
func (p *workerPool) start(n int) {
	p.workers = n
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
}

// run is a worker's loop: claim and process nodes until the exit flag is set,
// yielding between attempts when no work is available.
func (p *workerPool) run() {
	defer p.wg.Done()
	for {
		if p.exit.Load() {
			return
		}
		if !p.claim() {
			pause()
		}
	}
}

// stop sets the exit flag and waits for every worker to observe it and
// return. Safe to call when the pool was never started. Must not be called
// while a block is in flight.
func (p *workerPool) stop() {
	p.exit.Store(true)
	p.wg.Wait()
	p.workers = 0
}

// size returns the number of running workers, zero before start.
func (p *workerPool) size() int { return p.workers }

// started reports whether start has been called.
func (p *workerPool) started() bool { return p.workers > 0 }
