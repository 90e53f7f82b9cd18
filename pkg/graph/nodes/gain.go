package nodes

import (
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

var (
	_ graph.Node          = (*Gain)(nil)
	_ graph.Preparer      = (*Gain)(nil)
	_ graph.InputProvider = (*Gain)(nil)
)

// Gain scales its single input by a constant factor. Events pass through
// unchanged.
type Gain struct {
	in   graph.Node
	gain float32

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewGain creates a gain stage over in.
func NewGain(in graph.Node, gain float32) *Gain {
	return &Gain{in: in, gain: gain}
}

// Inputs exposes the upstream node for graph preparation.
func (g *Gain) Inputs() []graph.Node { return []graph.Node{g.in} }

func (g *Gain) PrepareToPlay(info graph.PrepareInfo) {
	g.buf = graph.NewBuffer(channelsOf(g.in), info.Config.BlockSize)
	g.events = graph.NewEventBuffer()
}

func (g *Gain) PrepareForNextBlock(graph.SampleRange) { g.done.Store(false) }

// IsReady reports whether the input has finished producing this block.
func (g *Gain) IsReady() bool { return g.in.HasFinished() }

func (g *Gain) Process(graph.SampleRange) {
	in := g.in.Output()
	g.buf.CopyFrom(in.Audio)
	g.buf.ApplyGain(g.gain)
	g.events.CopyFrom(in.Events)
	g.done.Store(true)
}

func (g *Gain) HasFinished() bool { return g.done.Load() }

func (g *Gain) Output() graph.Output {
	return graph.Output{Audio: g.buf, Events: g.events}
}
