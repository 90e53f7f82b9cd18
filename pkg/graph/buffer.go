package graph

// Buffer holds one block of multi-channel, non-interleaved float32 audio.
// Channel data is allocated once as a single backing slice so a node can
// reuse its buffer across blocks without further allocation.
//
// Buffers are not safe for concurrent mutation; the scheduling protocol
// guarantees a node's buffer is only written by the worker processing that
// node and only read once the node has finished.
type Buffer struct {
	channels [][]float32
	frames   int
}

// NewBuffer allocates a zeroed buffer with the given channel count and frame
// capacity.
func NewBuffer(channels, frames int) *Buffer {
	backing := make([]float32, channels*frames)
	chs := make([][]float32, channels)
	for i := range chs {
		chs[i] = backing[i*frames : (i+1)*frames : (i+1)*frames]
	}
	return &Buffer{channels: chs, frames: frames}
}

// Channels returns the number of channels.
func (b *Buffer) Channels() int { return len(b.channels) }

// Frames returns the per-channel frame capacity.
func (b *Buffer) Frames() int { return b.frames }

// Channel returns the sample slice for channel i.
func (b *Buffer) Channel(i int) []float32 { return b.channels[i] }

// Clear zeroes all samples.
func (b *Buffer) Clear() {
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// CopyFrom overwrites this buffer with the contents of src. Channel and frame
// counts are clamped to the smaller of the two buffers; any remaining samples
// in this buffer are left untouched.
func (b *Buffer) CopyFrom(src *Buffer) {
	if src == nil {
		return
	}
	nch := min(len(b.channels), len(src.channels))
	for c := 0; c < nch; c++ {
		copy(b.channels[c], src.channels[c])
	}
}

// AddFrom mixes the contents of src into this buffer sample by sample.
func (b *Buffer) AddFrom(src *Buffer) {
	if src == nil {
		return
	}
	nch := min(len(b.channels), len(src.channels))
	for c := 0; c < nch; c++ {
		dst, s := b.channels[c], src.channels[c]
		n := min(len(dst), len(s))
		for i := 0; i < n; i++ {
			dst[i] += s[i]
		}
	}
}

// ApplyGain multiplies every sample by g.
func (b *Buffer) ApplyGain(g float32) {
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] *= g
		}
	}
}

// Event is a single timestamped event (typically a MIDI message) within a
// block. Offset is in frames from the start of the block.
type Event struct {
	Offset int64
	Data   []byte
}

// EventBuffer holds the events a node produced for one block, ordered by
// offset as long as producers append in order.
type EventBuffer struct {
	events []Event
}

// NewEventBuffer returns an empty event buffer with a small capacity hint.
func NewEventBuffer() *EventBuffer {
	return &EventBuffer{events: make([]Event, 0, 8)}
}

// Len returns the number of buffered events.
func (e *EventBuffer) Len() int { return len(e.events) }

// Events returns the buffered events. The returned slice is only valid until
// the next Clear.
func (e *EventBuffer) Events() []Event { return e.events }

// Add appends an event.
func (e *EventBuffer) Add(ev Event) {
	e.events = append(e.events, ev)
}

// Clear removes all events while retaining capacity.
func (e *EventBuffer) Clear() {
	e.events = e.events[:0]
}

// CopyFrom replaces this buffer's events with those of src.
func (e *EventBuffer) CopyFrom(src *EventBuffer) {
	e.events = e.events[:0]
	if src != nil {
		e.events = append(e.events, src.events...)
	}
}

// AddFrom appends all events of src.
func (e *EventBuffer) AddFrom(src *EventBuffer) {
	if src != nil {
		e.events = append(e.events, src.events...)
	}
}
