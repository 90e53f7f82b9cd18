package player

import "runtime"

// spinBudget is the number of raw polls a spin point performs before yielding
// the processor slice.
const spinBudget = 16

// spinUntil busy-waits until cond reports true. It never blocks on an OS
// primitive: after a short burst of polls it yields to the Go scheduler and
// keeps spinning. Go has no portable equivalent of the x86 PAUSE hint, so the
// yield stands in for it.
func spinUntil(cond func() bool) {
	for i := 0; ; i++ {
		if cond() {
			return
		}
		if i%spinBudget == spinBudget-1 {
			runtime.Gosched()
		}
	}
}

// pause is the wait hint used inside claim-retry loops.
func pause() {
	runtime.Gosched()
}
