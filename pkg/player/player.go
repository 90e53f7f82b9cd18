// Package player implements the real-time scheduler of the audiomesh engine:
// a lock-free, multi-threaded node player that executes a prepared audio
// graph across a fixed pool of workers within one audio block's deadline.
//
// All coordination is via atomics and bounded spin-waits — the real-time path
// never takes a lock, never allocates, and never blocks on an OS primitive.
// A non-real-time thread publishes new graphs through a single-slot mailbox;
// the block driver adopts the latest publication between blocks, so an
// in-flight block always runs against the graph snapshot captured at its
// start.
package player

import (
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

// Status is the result of one Process call.
type Status int

const (
	// StatusOK means a block was processed and the output buffers hold the
	// root node's produced data.
	StatusOK Status = iota

	// StatusNoGraph means no graph is currently set; nothing was processed
	// and the output buffers are untouched.
	StatusNoGraph
)

// String returns a short human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoGraph:
		return "no-graph"
	}
	return "unknown"
}

// PreparedGraph pairs an exclusively-owned root node with the flattened list
// of every node reachable from it, as produced by [graph.Prepare]. The list
// holds non-owning references; its order is stable for the lifetime of the
// instance.
type PreparedGraph struct {
	Root     graph.Node
	AllNodes []graph.Node
}

// BlockContext carries one block's position on the reference timeline and the
// destination buffers the root node's output is copied into. Either
// destination may be nil when the caller does not want that data.
type BlockContext struct {
	ReferenceRange graph.SampleRange
	Out            graph.Output
}

// Option configures a [Player] during construction.
type Option func(*Player)

// WithParallelism overrides the detected hardware parallelism used to size
// the worker pool. Intended for tests and for hosts where the engine should
// not claim every core.
func WithParallelism(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// Player schedules a prepared node graph over a pool of spinning workers plus
// the calling real-time thread, all racing over one shared claim queue.
//
// Usage contract (not defensively checked): SetNode and PrepareToPlay are
// called from exactly one non-real-time thread at a time; Process is called
// from the designated real-time thread, once per block, never concurrently
// with itself; Close only when no block is in flight.
type Player struct {
	pool    workerPool
	pending mailbox

	// current is the graph snapshot blocks run against. Only the block
	// driver stores to it (at adoption); everyone else reads through the
	// atomic pointer, so adoption never tears.
	current atomic.Pointer[PreparedGraph]

	// referenceRange is written by the driver before the claim counter is
	// reset each block, which is what publishes it to the workers.
	referenceRange graph.SampleRange

	// nodesLeft is the claim counter: reset to len(current.AllNodes) at the
	// start of each block and CAS-decremented by claiming workers. Zero
	// means "no more unclaimed nodes", not "all processed".
	nodesLeft atomic.Int64

	sampleRateBits atomic.Uint64
	blockSize      atomic.Int64

	parallelism int
	closed      bool
}

// New creates an empty Player. Worker goroutines are not started until the
// first graph preparation.
func New(opts ...Option) *Player {
	p := &Player{parallelism: runtime.NumCPU()}
	p.pool.claim = p.processNextFreeNode
	p.sampleRateBits.Store(math.Float64bits(44100))
	p.blockSize.Store(512)
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetNode publishes a new graph for adoption by the next block, prepared at
// the player's current sample rate and block size. The previous root (if
// any) is offered to the new graph's nodes for state transfer.
func (p *Player) SetNode(root graph.Node) {
	p.SetNodeWithConfig(root, p.SampleRate(), p.BlockSize())
}

// SetNodeWithConfig publishes a new graph prepared at the given sample rate
// and block size.
func (p *Player) SetNodeWithConfig(root graph.Node, sampleRate float64, blockSize int) {
	oldRoot := p.Node()
	allNodes := p.prepare(root, oldRoot, sampleRate, blockSize)
	slog.Debug("player: publishing graph",
		"nodes", len(allNodes),
		"sample_rate", sampleRate,
		"block_size", blockSize,
	)
	p.pending.Publish(PreparedGraph{Root: root, AllNodes: allNodes})
}

// PrepareToPlay re-prepares the current graph for playback at a new sample
// rate and block size, lazily starting the worker pool. oldRoot, normally
// nil, names a replaced graph's root for state transfer. Must not be called
// concurrently with Process.
func (p *Player) PrepareToPlay(sampleRate float64, blockSize int, oldRoot graph.Node) {
	root := p.Node()
	allNodes := p.prepare(root, oldRoot, sampleRate, blockSize)
	p.current.Store(&PreparedGraph{Root: root, AllNodes: allNodes})
}

// prepare runs graph preparation off the real-time thread, recording the new
// playback parameters and starting the worker pool on first use.
func (p *Player) prepare(root, oldRoot graph.Node, sampleRate float64, blockSize int) []graph.Node {
	if !p.pool.started() {
		n := numWorkersFor(p.parallelism)
		slog.Debug("player: starting worker pool", "workers", n, "parallelism", p.parallelism)
		p.pool.start(n)
	}

	p.sampleRateBits.Store(math.Float64bits(sampleRate))
	p.blockSize.Store(int64(blockSize))

	return graph.Prepare(root, oldRoot, sampleRate, blockSize)
}

// Node returns the current root node, nil when no graph has been adopted.
// A graph published but not yet adopted by a block is not visible here.
func (p *Player) Node() graph.Node {
	if g := p.current.Load(); g != nil {
		return g.Root
	}
	return nil
}

// SampleRate returns the sample rate of the most recent preparation.
func (p *Player) SampleRate() float64 {
	return math.Float64frombits(p.sampleRateBits.Load())
}

// BlockSize returns the block size of the most recent preparation.
func (p *Player) BlockSize() int {
	return int(p.blockSize.Load())
}

// Workers returns the worker pool size, zero before the first preparation.
func (p *Player) Workers() int {
	return p.pool.size()
}

// Process executes one block: it adopts any pending graph, resets per-block
// node state, drives the claim queue as one more worker racing the pool,
// waits for the root node to finish, and copies the root's output into
// bc.Out. Returns [StatusNoGraph] without touching any node when no graph is
// set.
func (p *Player) Process(bc BlockContext) Status {
	p.adoptPending()

	cur := p.current.Load()
	if cur == nil || cur.Root == nil {
		return StatusNoGraph
	}

	p.referenceRange = bc.ReferenceRange

	for _, n := range cur.AllNodes {
		n.PrepareForNextBlock(bc.ReferenceRange)
	}

	// Publishing a non-zero count is what hands the block to the pool:
	// workers are always running and start claiming as soon as they see it.
	p.nodesLeft.Store(int64(len(cur.AllNodes)))

	// Claim and process until every node has been claimed. Claimed is not
	// finished — nodes claimed by pool workers may still be running.
	for p.processNextFreeNode() {
	}

	spinUntil(cur.Root.HasFinished)

	out := cur.Root.Output()
	if bc.Out.Audio != nil {
		bc.Out.Audio.CopyFrom(out.Audio)
	}
	if bc.Out.Events != nil {
		bc.Out.Events.CopyFrom(out.Events)
	}
	return StatusOK
}

// adoptPending swaps in the most recently published graph, if any. The
// superseded graph's nodes are released to the garbage collector here, never
// on the publisher side.
func (p *Player) adoptPending() {
	if g, ok := p.pending.Adopt(); ok {
		p.current.Store(&g)
	}
}

// processNextFreeNode attempts to claim and process one node of the current
// block. It reports false only when nothing is left to claim; a lost claim
// race is retried internally.
//
// A successful CAS from k to k-1 exclusively claims the node at flattened
// index len(AllNodes)-k, mapping successive claims — whichever goroutine
// wins them — onto increasing indices, so claim order follows the prepared
// linear order. A claimed node that is not yet ready is spun on, never
// released: its upstream producers are being processed by the other workers.
func (p *Player) processNextFreeNode() bool {
	for {
		left := p.nodesLeft.Load()
		if left == 0 {
			return false
		}
		if !p.nodesLeft.CompareAndSwap(left, left-1) {
			continue
		}

		cur := p.current.Load()
		n := cur.AllNodes[len(cur.AllNodes)-int(left)]
		spinUntil(n.IsReady)
		n.Process(p.referenceRange)
		return true
	}
}

// Close shuts the worker pool down, waiting for every worker to observe the
// exit flag and return. Must only be called when no block is in flight.
// Idempotent.
func (p *Player) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.pool.stop()
	return nil
}
