package nodes

import (
	"math"
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

// Compile-time interface assertions.
var (
	_ graph.Node     = (*Sine)(nil)
	_ graph.Preparer = (*Sine)(nil)
	_ graph.Node     = (*Silence)(nil)
	_ graph.Preparer = (*Silence)(nil)
)

// Sine is a source node producing a fixed-frequency sine tone on every
// channel. Phase is continuous across blocks.
type Sine struct {
	freq     float64
	channels int

	phase float64
	inc   float64

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewSine creates a sine source with the given frequency in Hz and channel
// count.
func NewSine(freq float64, channels int) *Sine {
	if channels <= 0 {
		channels = defaultChannels
	}
	return &Sine{freq: freq, channels: channels}
}

// PrepareToPlay allocates the output buffers and derives the per-sample phase
// increment from the sample rate.
func (s *Sine) PrepareToPlay(info graph.PrepareInfo) {
	s.buf = graph.NewBuffer(s.channels, info.Config.BlockSize)
	s.events = graph.NewEventBuffer()
	s.inc = 2 * math.Pi * s.freq / info.Config.SampleRate
	s.phase = 0
}

// PrepareForNextBlock clears the completion flag.
func (s *Sine) PrepareForNextBlock(graph.SampleRange) { s.done.Store(false) }

// IsReady always reports true: a source has no upstream dependencies.
func (s *Sine) IsReady() bool { return true }

// Process synthesises one block of the tone.
func (s *Sine) Process(r graph.SampleRange) {
	frames := int(r.Len())
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(s.phase))
		for c := 0; c < s.buf.Channels(); c++ {
			s.buf.Channel(c)[i] = v
		}
		s.phase += s.inc
	}
	s.done.Store(true)
}

// HasFinished reports whether this block has been synthesised.
func (s *Sine) HasFinished() bool { return s.done.Load() }

// Output returns the block's buffers.
func (s *Sine) Output() graph.Output {
	return graph.Output{Audio: s.buf, Events: s.events}
}

// Silence is a source node producing zeroed audio and no events.
type Silence struct {
	channels int

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewSilence creates a silent source with the given channel count.
func NewSilence(channels int) *Silence {
	if channels <= 0 {
		channels = defaultChannels
	}
	return &Silence{channels: channels}
}

func (s *Silence) PrepareToPlay(info graph.PrepareInfo) {
	s.buf = graph.NewBuffer(s.channels, info.Config.BlockSize)
	s.events = graph.NewEventBuffer()
}

func (s *Silence) PrepareForNextBlock(graph.SampleRange) { s.done.Store(false) }

func (s *Silence) IsReady() bool { return true }

func (s *Silence) Process(graph.SampleRange) {
	s.buf.Clear()
	s.done.Store(true)
}

func (s *Silence) HasFinished() bool { return s.done.Load() }

func (s *Silence) Output() graph.Output {
	return graph.Output{Audio: s.buf, Events: s.events}
}
