package render

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/audiomesh/audiomesh/pkg/graph"
	"layeh.com/gopus"
)

// opusFrameMs is the Opus frame duration used by the sink. 20 ms is the
// codec's sweet spot and what voice platforms expect.
const opusFrameMs = 20

// OpusSink encodes rendered blocks to Opus and writes each packet to w with
// a big-endian uint16 length prefix. Blocks rarely align with Opus frame
// boundaries, so samples are buffered and encoded one full frame at a time;
// a trailing partial frame is dropped at Close.
type OpusSink struct {
	w         io.Writer
	enc       *gopus.Encoder
	channels  int
	frameSize int // samples per channel per Opus frame

	pending []int16 // interleaved samples awaiting a full frame
}

// NewOpusSink creates an Opus sink. The sample rate must be one the codec
// supports (8, 12, 16, 24, or 48 kHz).
func NewOpusSink(w io.Writer, sampleRate, channels int) (*OpusSink, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	return &OpusSink{
		w:         w,
		enc:       enc,
		channels:  channels,
		frameSize: sampleRate * opusFrameMs / 1000,
	}, nil
}

// WriteBlock interleaves and buffers the block, encoding every complete
// frame it completes.
func (s *OpusSink) WriteBlock(buf *graph.Buffer, frames int) error {
	for i := 0; i < frames; i++ {
		for c := 0; c < s.channels; c++ {
			var v float32
			if c < buf.Channels() {
				v = buf.Channel(c)[i]
			}
			s.pending = append(s.pending, int16(math.Round(float64(max(-1, min(1, v)))*math.MaxInt16)))
		}
	}
	return s.flushFrames()
}

// Close encodes any remaining full frames and closes the destination if it
// is closeable. A trailing partial frame is discarded.
func (s *OpusSink) Close() error {
	if err := s.flushFrames(); err != nil {
		return err
	}
	if c, ok := s.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("opus: close: %w", err)
		}
	}
	return nil
}

func (s *OpusSink) flushFrames() error {
	perFrame := s.frameSize * s.channels
	for len(s.pending) >= perFrame {
		packet, err := s.enc.Encode(s.pending[:perFrame], s.frameSize, 4000)
		if err != nil {
			return fmt.Errorf("opus: encode frame: %w", err)
		}
		var prefix [2]byte
		binary.BigEndian.PutUint16(prefix[:], uint16(len(packet)))
		if _, err := s.w.Write(prefix[:]); err != nil {
			return fmt.Errorf("opus: write packet: %w", err)
		}
		if _, err := s.w.Write(packet); err != nil {
			return fmt.Errorf("opus: write packet: %w", err)
		}
		s.pending = s.pending[perFrame:]
	}
	return nil
}
