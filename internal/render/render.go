// Package render drives the real-time player from a non-real-time loop. It
// stands in for an audio device callback: it calls Process once per block,
// hands the produced audio to a sink, and records per-block observations
// into the observability instruments — always after the block has returned,
// never on the scheduler's hot path.
package render

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/audiomesh/audiomesh/internal/observe"
	"github.com/audiomesh/audiomesh/pkg/graph"
	"github.com/audiomesh/audiomesh/pkg/player"
)

// Sink receives rendered audio, one block at a time. WriteBlock is called
// sequentially from the render loop.
type Sink interface {
	WriteBlock(buf *graph.Buffer, frames int) error
	Close() error
}

// Stats is a point-in-time snapshot of render progress, shaped for the
// monitor's JSON stream.
type Stats struct {
	BlocksRendered int64   `json:"blocks_rendered"`
	LastBlockMicro int64   `json:"last_block_us"`
	MeanBlockMicro int64   `json:"mean_block_us"`
	NodeCount      int     `json:"node_count"`
	SampleRate     float64 `json:"sample_rate"`
	Workers        int     `json:"workers"`
}

// Renderer owns one player's render loop and its output buffers.
type Renderer struct {
	player    *player.Player
	metrics   *observe.Metrics
	sink      Sink
	nodeCount int
	blockSize int

	out graph.Output

	// lastRoot is the root observed after the previous block; a change means
	// the player adopted a newly published graph.
	lastRoot graph.Node

	blocks     atomic.Int64
	lastNanos  atomic.Int64
	totalNanos atomic.Int64
}

// New creates a renderer for p. nodeCount is the size of the graph published
// to the player, channels the output channel count; sink may be nil to
// discard audio.
func New(p *player.Player, nodeCount, channels int, m *observe.Metrics, sink Sink) *Renderer {
	return &Renderer{
		player:    p,
		metrics:   m,
		sink:      sink,
		nodeCount: nodeCount,
		blockSize: p.BlockSize(),
		out: graph.Output{
			Audio:  graph.NewBuffer(channels, p.BlockSize()),
			Events: graph.NewEventBuffer(),
		},
	}
}

// RenderBlocks runs n blocks back to back, stopping early when ctx is
// cancelled. The first block adopts the published graph; a no-graph status
// is an error here because the demo engine always publishes before
// rendering.
func (r *Renderer) RenderBlocks(ctx context.Context, n int) error {
	r.metrics.SetWorkers(r.player.Workers())

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := int64(i) * int64(r.blockSize)
		bc := player.BlockContext{
			ReferenceRange: graph.SampleRange{Start: start, End: start + int64(r.blockSize)},
			Out:            r.out,
		}

		t0 := time.Now()
		status := r.player.Process(bc)
		elapsed := time.Since(t0)

		if status == player.StatusNoGraph {
			r.metrics.RecordNoGraph(ctx)
			return fmt.Errorf("render: block %d: no graph to play", i)
		}

		if root := r.player.Node(); root != r.lastRoot {
			r.metrics.RecordAdoption(ctx)
			r.lastRoot = root
		}
		r.metrics.RecordBlock(ctx, elapsed, r.nodeCount)
		r.blocks.Add(1)
		r.lastNanos.Store(elapsed.Nanoseconds())
		r.totalNanos.Add(elapsed.Nanoseconds())

		if r.sink != nil {
			if err := r.sink.WriteBlock(r.out.Audio, r.blockSize); err != nil {
				return fmt.Errorf("render: block %d: %w", i, err)
			}
		}
	}
	return nil
}

// Stats returns a snapshot of render progress. Safe to call concurrently
// with RenderBlocks.
func (r *Renderer) Stats() Stats {
	blocks := r.blocks.Load()
	mean := int64(0)
	if blocks > 0 {
		mean = r.totalNanos.Load() / blocks / int64(time.Microsecond)
	}
	return Stats{
		BlocksRendered: blocks,
		LastBlockMicro: r.lastNanos.Load() / int64(time.Microsecond),
		MeanBlockMicro: mean,
		NodeCount:      r.nodeCount,
		SampleRate:     r.player.SampleRate(),
		Workers:        r.player.Workers(),
	}
}
