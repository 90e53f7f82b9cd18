// Package mock provides an in-memory, call-recording implementation of the
// [graph.Node] interface (plus its optional [graph.Preparer] and
// [graph.InputProvider] capabilities) for use in unit tests.
//
// The mock is safe for concurrent use — scheduler workers poll IsReady and
// HasFinished from multiple goroutines. Set the exported fields to control
// behaviour before handing the node to the player; inspect the recorded
// calls afterwards.
//
// Typical usage:
//
//	src := &mock.Node{}
//	snk := &mock.Node{InputsResult: []graph.Node{src}}
//	p := player.New()
//	p.SetNodeWithConfig(snk, 48000, 256)
//	_ = p.Process(player.BlockContext{...})
//	if got := snk.ProcessCalls(); got != 1 { ... }
package mock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

// Compile-time interface assertions.
var (
	_ graph.Node          = (*Node)(nil)
	_ graph.Preparer      = (*Node)(nil)
	_ graph.InputProvider = (*Node)(nil)
)

// Node is a mock implementation of [graph.Node].
type Node struct {
	mu sync.Mutex

	// InputsResult is returned by [Node.Inputs] and also drives the default
	// readiness rule: the node is ready once every input reports finished.
	InputsResult []graph.Node

	// IsReadyFn, when non-nil, overrides the default readiness rule.
	IsReadyFn func() bool

	// OutputResult is returned by [Node.Output].
	OutputResult graph.Output

	// ProcessFn, when non-nil, is invoked by [Node.Process] before the
	// finished flag is raised.
	ProcessFn func(r graph.SampleRange)

	// ProcessDelay, when non-zero, makes Process sleep to simulate work.
	ProcessDelay time.Duration

	finished atomic.Bool

	prepareInfos  []graph.PrepareInfo
	blockRanges   []graph.SampleRange
	processRanges []graph.SampleRange
}

// PrepareToPlay records the preparation call.
func (n *Node) PrepareToPlay(info graph.PrepareInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prepareInfos = append(n.prepareInfos, info)
}

// Inputs returns InputsResult.
func (n *Node) Inputs() []graph.Node { return n.InputsResult }

// PrepareForNextBlock records the range and clears the finished flag.
func (n *Node) PrepareForNextBlock(r graph.SampleRange) {
	n.mu.Lock()
	n.blockRanges = append(n.blockRanges, r)
	n.mu.Unlock()
	n.finished.Store(false)
}

// IsReady applies IsReadyFn when set, otherwise reports whether every input
// has finished. A node with no inputs is always ready.
func (n *Node) IsReady() bool {
	if n.IsReadyFn != nil {
		return n.IsReadyFn()
	}
	for _, in := range n.InputsResult {
		if !in.HasFinished() {
			return false
		}
	}
	return true
}

// Process records the call, runs ProcessFn if set, then raises the finished
// flag.
func (n *Node) Process(r graph.SampleRange) {
	n.mu.Lock()
	n.processRanges = append(n.processRanges, r)
	n.mu.Unlock()

	if n.ProcessDelay > 0 {
		time.Sleep(n.ProcessDelay)
	}
	if n.ProcessFn != nil {
		n.ProcessFn(r)
	}
	n.finished.Store(true)
}

// HasFinished reports whether Process has run since the last
// PrepareForNextBlock.
func (n *Node) HasFinished() bool { return n.finished.Load() }

// Output returns OutputResult.
func (n *Node) Output() graph.Output { return n.OutputResult }

// PrepareCalls returns the number of PrepareToPlay invocations.
func (n *Node) PrepareCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.prepareInfos)
}

// PrepareInfos returns a copy of the recorded preparation calls.
func (n *Node) PrepareInfos() []graph.PrepareInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]graph.PrepareInfo, len(n.prepareInfos))
	copy(out, n.prepareInfos)
	return out
}

// BlockCalls returns the number of PrepareForNextBlock invocations.
func (n *Node) BlockCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.blockRanges)
}

// ProcessCalls returns the number of Process invocations.
func (n *Node) ProcessCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.processRanges)
}

// ProcessRanges returns a copy of the ranges Process was called with.
func (n *Node) ProcessRanges() []graph.SampleRange {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]graph.SampleRange, len(n.processRanges))
	copy(out, n.processRanges)
	return out
}
