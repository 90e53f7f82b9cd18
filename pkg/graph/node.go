// Package graph defines the node boundary contract of the audiomesh engine:
// the [Node] interface that every processing stage implements, the block
// buffer types that carry audio and event data between stages, and the
// preparation step that flattens a node graph into the linear order the
// player schedules from.
//
// The scheduler in [github.com/audiomesh/audiomesh/pkg/player] consumes this
// contract but never looks inside a node — dependency correctness (a node
// reporting ready only once its inputs have finished) is entirely the node
// implementation's responsibility.
package graph

// SampleRange is a half-open interval [Start, End) of sample positions on the
// engine's reference timeline. It identifies one block's position within the
// overall stream.
type SampleRange struct {
	Start int64
	End   int64
}

// Len returns the number of samples covered by the range.
func (r SampleRange) Len() int64 {
	return r.End - r.Start
}

// PlayConfig carries the playback parameters a node needs to allocate its
// per-block resources ahead of real-time processing.
type PlayConfig struct {
	// SampleRate in Hz (e.g. 48000).
	SampleRate float64

	// BlockSize is the maximum number of frames processed per block.
	BlockSize int
}

// Output references the audio and event data a node produced for the current
// block. The references are only valid once the node reports HasFinished, and
// only until its next PrepareForNextBlock call.
type Output struct {
	Audio  *Buffer
	Events *EventBuffer
}

// Node is one stage of an audio/MIDI processing graph and the unit of
// scheduling. Implementations own their output storage and their per-block
// readiness/completion state.
//
// The player calls these methods under a strict per-block protocol:
// PrepareForNextBlock on every node before any processing starts, Process at
// most once per block and only after IsReady reports true, and Output only
// after HasFinished reports true. IsReady and HasFinished are polled from
// concurrently spinning workers and must be non-blocking and safe for
// concurrent use.
type Node interface {
	// PrepareForNextBlock clears per-block readiness and completion state
	// for the given sample range. It may be called any number of times
	// between blocks.
	PrepareForNextBlock(r SampleRange)

	// IsReady reports whether all upstream dependencies have finished
	// producing output for the current block.
	IsReady() bool

	// Process performs this node's work for the block. It is invoked at
	// most once per block, only after IsReady has reported true.
	Process(r SampleRange)

	// HasFinished reports whether Process has completed for the current
	// block.
	HasFinished() bool

	// Output returns references to the block's produced audio and event
	// data. Valid only once HasFinished reports true.
	Output() Output
}

// PrepareInfo is handed to nodes implementing [Preparer] during graph
// preparation.
type PrepareInfo struct {
	Config PlayConfig

	// Root is the root of the graph being prepared.
	Root Node

	// OldRoot is the root of the graph being replaced, or nil when no graph
	// was playing. Nodes that keep state across graph edits (delay lines,
	// filters) can locate their predecessor through it and transfer state.
	OldRoot Node
}

// Preparer is an optional capability: nodes that need to allocate buffers or
// transfer state before playback implement it and are called once per
// [Prepare] pass, before the graph is published to the player.
type Preparer interface {
	PrepareToPlay(info PrepareInfo)
}

// InputProvider is an optional capability: nodes with upstream inputs expose
// them so [Prepare] can walk the graph. Source nodes simply omit it.
type InputProvider interface {
	Inputs() []Node
}
