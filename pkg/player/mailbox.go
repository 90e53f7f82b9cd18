package player

import "sync/atomic"

// mailbox slot states.
const (
	slotEmpty int32 = iota
	slotStaged
)

// mailbox is the single-slot hand-off cell through which a non-real-time
// publisher passes a freshly prepared graph to the real-time block driver.
// Neither side ever blocks on a lock: coordination is a two-field state
// machine of an empty/staged slot flag plus an adoption-in-progress flag.
//
// Contract: exactly one publisher thread (Publish) and exactly one adopter
// thread (Adopt) at a time. A publication that is never adopted is simply
// overwritten — and thereby discarded — by the next one.
type mailbox struct {
	state    atomic.Int32
	adopting atomic.Bool

	// staging is reused across publications, so publishing does not
	// allocate. It is owned by the publisher except while state is staged
	// and the adopter is mid-move.
	staging PreparedGraph
}

// Publish stages g for adoption by the next block. It first spins until any
// in-progress adoption has completed, guaranteeing it never overwrites the
// slot while the driver is copying out of it, then clears the slot before
// writing so a half-written staging value can never be adopted.
func (m *mailbox) Publish(g PreparedGraph) {
	spinUntil(func() bool { return !m.adopting.Load() })

	m.state.Store(slotEmpty)
	m.staging = g
	m.state.Store(slotStaged)
}

// Adopt takes the staged graph if one is pending. Called only by the block
// driver, once at the start of each block.
func (m *mailbox) Adopt() (PreparedGraph, bool) {
	m.adopting.Store(true)
	defer m.adopting.Store(false)

	if m.state.Swap(slotEmpty) != slotStaged {
		return PreparedGraph{}, false
	}
	g := m.staging
	m.staging = PreparedGraph{}
	return g, true
}
