package nodes

import (
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

var (
	_ graph.Node          = (*Sum)(nil)
	_ graph.Preparer      = (*Sum)(nil)
	_ graph.InputProvider = (*Sum)(nil)
)

// Sum mixes any number of inputs sample by sample and concatenates their
// event streams in input order. It is the fan-in point of a graph; it only
// becomes ready once every input has finished its block.
type Sum struct {
	ins []graph.Node

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewSum creates a mixer over the given inputs.
func NewSum(ins ...graph.Node) *Sum {
	return &Sum{ins: ins}
}

// Inputs exposes the upstream nodes for graph preparation.
func (s *Sum) Inputs() []graph.Node { return s.ins }

func (s *Sum) PrepareToPlay(info graph.PrepareInfo) {
	channels := 0
	for _, in := range s.ins {
		channels = max(channels, channelsOf(in))
	}
	if channels == 0 {
		channels = defaultChannels
	}
	s.buf = graph.NewBuffer(channels, info.Config.BlockSize)
	s.events = graph.NewEventBuffer()
}

func (s *Sum) PrepareForNextBlock(graph.SampleRange) { s.done.Store(false) }

// IsReady reports whether every input has finished producing this block.
func (s *Sum) IsReady() bool {
	for _, in := range s.ins {
		if !in.HasFinished() {
			return false
		}
	}
	return true
}

func (s *Sum) Process(graph.SampleRange) {
	s.buf.Clear()
	s.events.Clear()
	for _, in := range s.ins {
		out := in.Output()
		s.buf.AddFrom(out.Audio)
		s.events.AddFrom(out.Events)
	}
	s.done.Store(true)
}

func (s *Sum) HasFinished() bool { return s.done.Load() }

func (s *Sum) Output() graph.Output {
	return graph.Output{Audio: s.buf, Events: s.events}
}
