package player_test

import (
	"testing"

	"github.com/audiomesh/audiomesh/pkg/graph"
	"github.com/audiomesh/audiomesh/pkg/graph/mock"
	"github.com/audiomesh/audiomesh/pkg/graph/nodes"
	"github.com/audiomesh/audiomesh/pkg/player"
)

const (
	testSampleRate = 48000.0
	testBlockSize  = 512
)

// chain builds a linear graph of n mock nodes, each depending on the
// previous, and returns all of them (the last is the root).
func chain(n int) []*mock.Node {
	out := make([]*mock.Node, n)
	for i := range out {
		out[i] = &mock.Node{}
		if i > 0 {
			out[i].InputsResult = []graph.Node{out[i-1]}
		}
	}
	return out
}

// newPlayer creates a player that is closed when the test ends.
func newPlayer(t *testing.T, opts ...player.Option) *player.Player {
	t.Helper()
	p := player.New(opts...)
	t.Cleanup(func() { p.Close() })
	return p
}

func processBlock(t *testing.T, p *player.Player, start int64) player.Status {
	t.Helper()
	return p.Process(player.BlockContext{
		ReferenceRange: graph.SampleRange{Start: start, End: start + testBlockSize},
	})
}

func TestProcessNoGraph(t *testing.T) {
	p := newPlayer(t)
	if got := p.Process(player.BlockContext{}); got != player.StatusNoGraph {
		t.Fatalf("Process() = %v, want %v", got, player.StatusNoGraph)
	}
}

func TestProcessNilRootGraph(t *testing.T) {
	p := newPlayer(t)
	p.SetNodeWithConfig(nil, testSampleRate, testBlockSize)
	if got := processBlock(t, p, 0); got != player.StatusNoGraph {
		t.Fatalf("Process() = %v, want %v", got, player.StatusNoGraph)
	}
}

func TestEveryNodeProcessedExactlyOncePerBlock(t *testing.T) {
	for _, n := range []int{1, 3, 16, 100} {
		all := chain(n)
		p := newPlayer(t, player.WithParallelism(8))
		p.SetNodeWithConfig(all[n-1], testSampleRate, testBlockSize)

		if got := processBlock(t, p, 0); got != player.StatusOK {
			t.Fatalf("n=%d: Process() = %v, want ok", n, got)
		}
		for i, node := range all {
			if calls := node.ProcessCalls(); calls != 1 {
				t.Errorf("n=%d: node %d processed %d times, want 1", n, i, calls)
			}
			if !node.HasFinished() {
				t.Errorf("n=%d: node %d not finished after Process", n, i)
			}
		}

		// A second block processes everything exactly once more.
		if got := processBlock(t, p, testBlockSize); got != player.StatusOK {
			t.Fatalf("n=%d: second Process() = %v, want ok", n, got)
		}
		for i, node := range all {
			if calls := node.ProcessCalls(); calls != 2 {
				t.Errorf("n=%d: node %d processed %d times after two blocks, want 2", n, i, calls)
			}
		}
		p.Close()
	}
}

func TestConcurrentClaimsPartitionAllNodes(t *testing.T) {
	// A wide fan-in: 64 independent sources racing 8 workers plus the
	// driver over one claim counter. Every node must be claimed exactly
	// once — no index double-claimed, none skipped.
	const sources = 64
	ins := make([]graph.Node, sources)
	srcs := make([]*mock.Node, sources)
	for i := range ins {
		srcs[i] = &mock.Node{}
		ins[i] = srcs[i]
	}
	root := &mock.Node{InputsResult: ins}

	p := newPlayer(t, player.WithParallelism(8))
	p.SetNodeWithConfig(root, testSampleRate, testBlockSize)

	if got := processBlock(t, p, 0); got != player.StatusOK {
		t.Fatalf("Process() = %v, want ok", got)
	}
	for i, src := range srcs {
		if calls := src.ProcessCalls(); calls != 1 {
			t.Errorf("source %d processed %d times, want 1", i, calls)
		}
	}
	if calls := root.ProcessCalls(); calls != 1 {
		t.Errorf("root processed %d times, want 1", calls)
	}
}

func TestProcessRangeReachesEveryNode(t *testing.T) {
	all := chain(3)
	p := newPlayer(t)
	p.SetNodeWithConfig(all[2], testSampleRate, testBlockSize)

	want := graph.SampleRange{Start: 1024, End: 1024 + testBlockSize}
	p.Process(player.BlockContext{ReferenceRange: want})

	for i, node := range all {
		ranges := node.ProcessRanges()
		if len(ranges) != 1 || ranges[0] != want {
			t.Errorf("node %d processed with %v, want [%v]", i, ranges, want)
		}
	}
}

func TestGraphAdoptedOnlyByNextBlock(t *testing.T) {
	root := &mock.Node{}
	p := newPlayer(t)
	p.SetNodeWithConfig(root, testSampleRate, testBlockSize)

	if got := p.Node(); got != nil {
		t.Fatalf("Node() = %p before any block, want nil (not yet adopted)", got)
	}
	processBlock(t, p, 0)
	if got := p.Node(); got != graph.Node(root) {
		t.Fatalf("Node() = %p after a block, want %p", got, root)
	}
}

func TestMidBlockPublicationNotObservedByInFlightBlock(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	srcA := &mock.Node{ProcessFn: func(graph.SampleRange) {
		close(started)
		<-release
	}}
	rootA := &mock.Node{InputsResult: []graph.Node{srcA}}

	rootB := &mock.Node{}

	p := newPlayer(t, player.WithParallelism(2))
	p.SetNodeWithConfig(rootA, testSampleRate, testBlockSize)

	done := make(chan player.Status, 1)
	go func() { done <- processBlock(t, p, 0) }()

	// Publish B while A's block is provably in flight.
	<-started
	p.SetNode(rootB)
	close(release)

	if got := <-done; got != player.StatusOK {
		t.Fatalf("in-flight Process() = %v, want ok", got)
	}
	if calls := rootB.ProcessCalls(); calls != 0 {
		t.Fatalf("graph B processed %d times by the in-flight block, want 0", calls)
	}
	if calls := rootA.ProcessCalls(); calls != 1 {
		t.Fatalf("graph A root processed %d times, want 1", calls)
	}

	// The next block adopts B and leaves A untouched.
	processBlock(t, p, testBlockSize)
	if calls := rootB.ProcessCalls(); calls != 1 {
		t.Errorf("graph B processed %d times by the next block, want 1", calls)
	}
	if calls := rootA.ProcessCalls(); calls != 1 {
		t.Errorf("graph A root processed %d times after swap, want 1", calls)
	}
}

func TestWorkerPoolSize(t *testing.T) {
	tests := []struct {
		parallelism int
		want        int
	}{
		{1, 1},
		{2, 1},
		{8, 7},
	}
	for _, tt := range tests {
		p := newPlayer(t, player.WithParallelism(tt.parallelism))
		if got := p.Workers(); got != 0 {
			t.Errorf("parallelism %d: Workers() = %d before preparation, want 0 (lazy start)", tt.parallelism, got)
		}
		p.SetNodeWithConfig(&mock.Node{}, testSampleRate, testBlockSize)
		if got := p.Workers(); got != tt.want {
			t.Errorf("parallelism %d: Workers() = %d, want %d", tt.parallelism, got, tt.want)
		}
		p.Close()
	}
}

// buildToneGraph constructs the deterministic test graph: sine → gain → sum.
func buildToneGraph() graph.Node {
	src := nodes.NewSine(440, 2)
	g := nodes.NewGain(src, 0.5)
	return nodes.NewSum(g)
}

func renderOneBlock(t *testing.T, p *player.Player) []float32 {
	t.Helper()
	out := graph.NewBuffer(2, testBlockSize)
	status := p.Process(player.BlockContext{
		ReferenceRange: graph.SampleRange{Start: 0, End: testBlockSize},
		Out:            graph.Output{Audio: out},
	})
	if status != player.StatusOK {
		t.Fatalf("Process() = %v, want ok", status)
	}
	cp := make([]float32, testBlockSize)
	copy(cp, out.Channel(0))
	return cp
}

func TestRepublishedGraphHasNoResidualState(t *testing.T) {
	// Rendering A after an intervening graph B must be bit-identical to
	// rendering A alone.
	solo := newPlayer(t, player.WithParallelism(2))
	solo.SetNodeWithConfig(buildToneGraph(), testSampleRate, testBlockSize)
	want := renderOneBlock(t, solo)

	p := newPlayer(t, player.WithParallelism(2))
	p.SetNodeWithConfig(buildToneGraph(), testSampleRate, testBlockSize)
	renderOneBlock(t, p)

	p.SetNode(nodes.NewSum(nodes.NewSine(880, 2)))
	renderOneBlock(t, p)

	p.SetNode(buildToneGraph())
	got := renderOneBlock(t, p)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v (residual state after republication)", i, got[i], want[i])
		}
	}
}

func TestEndToEndThreeNodeChain(t *testing.T) {
	src := nodes.NewSine(440, 2)
	g := nodes.NewGain(src, 0.5)
	sink := nodes.NewSum(g)

	p := newPlayer(t, player.WithParallelism(4))
	p.SetNodeWithConfig(sink, testSampleRate, testBlockSize)

	out := graph.NewBuffer(2, testBlockSize)
	status := p.Process(player.BlockContext{
		ReferenceRange: graph.SampleRange{Start: 0, End: testBlockSize},
		Out:            graph.Output{Audio: out},
	})
	if status != player.StatusOK {
		t.Fatalf("Process() = %v, want ok", status)
	}

	for _, n := range []graph.Node{src, g, sink} {
		if !n.HasFinished() {
			t.Fatalf("%T not finished after Process", n)
		}
	}

	// The sink output must equal the source output with gain applied.
	srcOut := src.Output().Audio
	for i := 0; i < testBlockSize; i++ {
		want := srcOut.Channel(0)[i] * 0.5
		if got := out.Channel(0)[i]; got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestSampleRateAndBlockSizeTracking(t *testing.T) {
	p := newPlayer(t)
	if got := p.SampleRate(); got != 44100 {
		t.Errorf("default SampleRate() = %v, want 44100", got)
	}
	p.SetNodeWithConfig(&mock.Node{}, 96000, 128)
	if got := p.SampleRate(); got != 96000 {
		t.Errorf("SampleRate() = %v, want 96000", got)
	}
	if got := p.BlockSize(); got != 128 {
		t.Errorf("BlockSize() = %v, want 128", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := player.New(player.WithParallelism(2))
	p.SetNodeWithConfig(&mock.Node{}, testSampleRate, testBlockSize)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}
