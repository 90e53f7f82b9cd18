// Package nodes provides concrete [graph.Node] implementations — sources,
// gain, mixing, and latency stages — used by the audiomesh demo engine and
// its tests.
//
// Every node keeps its per-block completion state in a single atomic flag
// cleared by PrepareForNextBlock, so IsReady/HasFinished are safe to poll
// from concurrently spinning scheduler workers. Buffers are allocated once,
// in PrepareToPlay, and reused for every block.
package nodes

import "github.com/audiomesh/audiomesh/pkg/graph"

// defaultChannels is the channel count a node falls back to when its input
// has not exposed an output buffer at preparation time.
const defaultChannels = 2

// channelsOf returns the channel count of n's output buffer. Graph
// preparation visits inputs before dependents, so by the time a dependent is
// prepared its input's buffer normally exists.
func channelsOf(n graph.Node) int {
	if out := n.Output(); out.Audio != nil {
		return out.Audio.Channels()
	}
	return defaultChannels
}
