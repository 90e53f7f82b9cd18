package nodes

import (
	"sync/atomic"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

var (
	_ graph.Node          = (*Latency)(nil)
	_ graph.Preparer      = (*Latency)(nil)
	_ graph.InputProvider = (*Latency)(nil)
)

// Latency delays its input by a fixed number of samples, preserving history
// across blocks. Events are shifted by the same amount; an event whose
// delayed position falls beyond the current block is held back and emitted in
// a later one.
type Latency struct {
	in      graph.Node
	latency int

	// scratch holds, per channel, latency frames of history followed by
	// room for one block of input.
	scratch [][]float32

	// held carries delayed events not yet due, offsets relative to the
	// next block's start. spill is its swap partner, reused to avoid
	// per-block allocation.
	held  []graph.Event
	spill []graph.Event

	buf    *graph.Buffer
	events *graph.EventBuffer
	done   atomic.Bool
}

// NewLatency creates a delay of latencySamples over in.
func NewLatency(in graph.Node, latencySamples int) *Latency {
	if latencySamples < 0 {
		latencySamples = 0
	}
	return &Latency{in: in, latency: latencySamples}
}

// Inputs exposes the upstream node for graph preparation.
func (l *Latency) Inputs() []graph.Node { return []graph.Node{l.in} }

func (l *Latency) PrepareToPlay(info graph.PrepareInfo) {
	channels := channelsOf(l.in)
	l.scratch = make([][]float32, channels)
	for c := range l.scratch {
		l.scratch[c] = make([]float32, l.latency+info.Config.BlockSize)
	}
	l.held = l.held[:0]
	l.spill = l.spill[:0]
	l.buf = graph.NewBuffer(channels, info.Config.BlockSize)
	l.events = graph.NewEventBuffer()
}

func (l *Latency) PrepareForNextBlock(graph.SampleRange) { l.done.Store(false) }

// IsReady reports whether the input has finished producing this block.
func (l *Latency) IsReady() bool { return l.in.HasFinished() }

func (l *Latency) Process(r graph.SampleRange) {
	frames := int(r.Len())
	in := l.in.Output()

	for c := 0; c < l.buf.Channels(); c++ {
		s := l.scratch[c]
		if in.Audio != nil && c < in.Audio.Channels() {
			copy(s[l.latency:l.latency+frames], in.Audio.Channel(c)[:frames])
		}
		copy(l.buf.Channel(c)[:frames], s[:frames])
		// Slide the last latency frames down to become next block's history.
		copy(s[:l.latency], s[frames:frames+l.latency])
	}

	l.events.Clear()
	l.spill = l.spill[:0]
	for _, ev := range l.held {
		if ev.Offset < int64(frames) {
			l.events.Add(ev)
		} else {
			ev.Offset -= int64(frames)
			l.spill = append(l.spill, ev)
		}
	}
	if in.Events != nil {
		for _, ev := range in.Events.Events() {
			ev.Offset += int64(l.latency)
			if ev.Offset < int64(frames) {
				l.events.Add(ev)
			} else {
				ev.Offset -= int64(frames)
				l.spill = append(l.spill, ev)
			}
		}
	}
	l.held, l.spill = l.spill, l.held

	l.done.Store(true)
}

func (l *Latency) HasFinished() bool { return l.done.Load() }

func (l *Latency) Output() graph.Output {
	return graph.Output{Audio: l.buf, Events: l.events}
}
