package nodes

import (
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

var (
	_ graph.Node          = (*Func)(nil)
	_ graph.Preparer      = (*Func)(nil)
	_ graph.InputProvider = (*Func)(nil)
)

// Func is a node that delegates block production to a callback. It is meant
// for tests and quick experiments: the callback receives the block's sample
// range, the node's inputs, and the output to fill. Inputs are optional; with
// inputs present the node waits for all of them to finish before running.
type Func struct {
	fn       func(r graph.SampleRange, inputs []graph.Node, out graph.Output)
	inputs   []graph.Node
	channels int

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewFunc creates a callback node with the given channel count. fn may be
// nil, in which case the node produces silence.
func NewFunc(channels int, fn func(r graph.SampleRange, inputs []graph.Node, out graph.Output), inputs ...graph.Node) *Func {
	if channels <= 0 {
		channels = defaultChannels
	}
	return &Func{fn: fn, inputs: inputs, channels: channels}
}

func (f *Func) Inputs() []graph.Node { return f.inputs }

func (f *Func) PrepareToPlay(info graph.PrepareInfo) {
	f.buf = graph.NewBuffer(f.channels, info.Config.BlockSize)
	f.events = graph.NewEventBuffer()
}

func (f *Func) PrepareForNextBlock(graph.SampleRange) { f.done.Store(false) }

// IsReady reports whether every input has finished its block.
func (f *Func) IsReady() bool {
	for _, in := range f.inputs {
		if !in.HasFinished() {
			return false
		}
	}
	return true
}

func (f *Func) Process(r graph.SampleRange) {
	f.buf.Clear()
	f.events.Clear()
	if f.fn != nil {
		f.fn(r, f.inputs, graph.Output{Audio: f.buf, Events: f.events})
	}
	f.done.Store(true)
}

func (f *Func) HasFinished() bool { return f.done.Load() }

func (f *Func) Output() graph.Output {
	return graph.Output{Audio: f.buf, Events: f.events}
}
