package render

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/audiomesh/audiomesh/pkg/graph"
)

// WAVSink writes rendered blocks as a PCM16 WAV stream. The RIFF size fields
// are patched on Close, so the destination must be seekable.
type WAVSink struct {
	w          io.WriteSeeker
	sampleRate int
	channels   int
	dataBytes  uint32
	headerDone bool
}

// NewWAVSink creates a WAV sink writing to w.
func NewWAVSink(w io.WriteSeeker, sampleRate, channels int) *WAVSink {
	return &WAVSink{w: w, sampleRate: sampleRate, channels: channels}
}

// WriteBlock interleaves the first frames of buf, converts to int16, and
// appends them to the data chunk.
func (s *WAVSink) WriteBlock(buf *graph.Buffer, frames int) error {
	if !s.headerDone {
		if err := s.writeHeader(); err != nil {
			return err
		}
		s.headerDone = true
	}

	pcm := make([]byte, frames*s.channels*2)
	for i := 0; i < frames; i++ {
		for c := 0; c < s.channels; c++ {
			var v float32
			if c < buf.Channels() {
				v = buf.Channel(c)[i]
			}
			sample := int16(math.Round(float64(max(-1, min(1, v))) * math.MaxInt16))
			binary.LittleEndian.PutUint16(pcm[(i*s.channels+c)*2:], uint16(sample))
		}
	}
	if _, err := s.w.Write(pcm); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	s.dataBytes += uint32(len(pcm))
	return nil
}

// Close patches the RIFF and data chunk sizes and closes the destination if
// it is closeable.
func (s *WAVSink) Close() error {
	if !s.headerDone {
		if err := s.writeHeader(); err != nil {
			return err
		}
	}
	if _, err := s.w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek riff size: %w", err)
	}
	if err := binary.Write(s.w, binary.LittleEndian, 36+s.dataBytes); err != nil {
		return fmt.Errorf("wav: patch riff size: %w", err)
	}
	if _, err := s.w.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek data size: %w", err)
	}
	if err := binary.Write(s.w, binary.LittleEndian, s.dataBytes); err != nil {
		return fmt.Errorf("wav: patch data size: %w", err)
	}
	if c, ok := s.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("wav: close: %w", err)
		}
	}
	return nil
}

func (s *WAVSink) writeHeader() error {
	var h [44]byte
	copy(h[0:4], "RIFF")
	// Sizes at offsets 4 and 40 are patched on Close.
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], uint16(s.channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(s.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(s.sampleRate*s.channels*2))
	binary.LittleEndian.PutUint16(h[32:], uint16(s.channels*2))
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:40], "data")
	if _, err := s.w.Write(h[:]); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	return nil
}
