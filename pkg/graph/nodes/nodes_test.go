package nodes_test

import (
	"math"
	"testing"

	"github.com/audiomesh/audiomesh/pkg/graph"
	"github.com/audiomesh/audiomesh/pkg/graph/nodes"
)

const (
	sampleRate = 48000.0
	blockSize  = 64
)

// runBlock drives one block through every node in prepared order, the way the
// scheduler would, and returns the range used.
func runBlock(t *testing.T, all []graph.Node, start int64) graph.SampleRange {
	t.Helper()
	r := graph.SampleRange{Start: start, End: start + blockSize}
	for _, n := range all {
		n.PrepareForNextBlock(r)
	}
	for _, n := range all {
		if !n.IsReady() {
			t.Fatalf("%T not ready in prepared order", n)
		}
		n.Process(r)
		if !n.HasFinished() {
			t.Fatalf("%T not finished after Process", n)
		}
	}
	return r
}

func TestSinePhaseContinuity(t *testing.T) {
	src := nodes.NewSine(440, 1)
	all := graph.Prepare(src, nil, sampleRate, blockSize)

	runBlock(t, all, 0)
	first := make([]float32, blockSize)
	copy(first, src.Output().Audio.Channel(0))
	runBlock(t, all, blockSize)
	second := src.Output().Audio.Channel(0)

	// Sample k of the stream depends only on k, not on block boundaries.
	// Reproduce the node's own phase accumulation so the comparison is
	// exact.
	inc := 2 * math.Pi * 440 / sampleRate
	phase := 0.0
	for i := 0; i < blockSize; i++ {
		phase += inc
	}
	for i := 0; i < blockSize; i++ {
		want := float32(math.Sin(phase))
		if got := second[i]; got != want {
			t.Fatalf("block 2 sample %d = %v, want %v (phase not continuous)", i, got, want)
		}
		phase += inc
	}
	if first[0] != 0 {
		t.Fatalf("first sample = %v, want 0 (phase reset at prepare)", first[0])
	}
}

func TestGainScalesInputAndGatesOnIt(t *testing.T) {
	src := nodes.NewSine(440, 2)
	g := nodes.NewGain(src, 0.25)
	all := graph.Prepare(g, nil, sampleRate, blockSize)

	r := graph.SampleRange{Start: 0, End: blockSize}
	for _, n := range all {
		n.PrepareForNextBlock(r)
	}
	if g.IsReady() {
		t.Fatal("gain ready before its input finished")
	}
	src.Process(r)
	if !g.IsReady() {
		t.Fatal("gain not ready after its input finished")
	}
	g.Process(r)

	srcOut := src.Output().Audio
	gOut := g.Output().Audio
	for i := 0; i < blockSize; i++ {
		if want, got := srcOut.Channel(1)[i]*0.25, gOut.Channel(1)[i]; got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestSumMixesInputsAndMergesEvents(t *testing.T) {
	a := nodes.NewSine(440, 1)
	b := nodes.NewSine(440, 1)
	s := nodes.NewSum(a, b)
	all := graph.Prepare(s, nil, sampleRate, blockSize)

	runBlock(t, all, 0)

	aOut := a.Output().Audio
	sOut := s.Output().Audio
	for i := 0; i < blockSize; i++ {
		if want, got := 2*aOut.Channel(0)[i], sOut.Channel(0)[i]; got != want {
			t.Fatalf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestSilenceProducesZeroes(t *testing.T) {
	s := nodes.NewSilence(2)
	all := graph.Prepare(s, nil, sampleRate, blockSize)
	runBlock(t, all, 0)
	out := s.Output().Audio
	for c := 0; c < out.Channels(); c++ {
		for i := 0; i < blockSize; i++ {
			if out.Channel(c)[i] != 0 {
				t.Fatalf("channel %d sample %d = %v, want 0", c, i, out.Channel(c)[i])
			}
		}
	}
}

// impulse is a minimal source emitting a single 1.0 sample and a single event
// at a fixed stream position, for delay-line verification.
type impulse struct {
	at     int64
	buf    *graph.Buffer
	events *graph.EventBuffer
	done   bool
}

func (n *impulse) PrepareToPlay(info graph.PrepareInfo) {
	n.buf = graph.NewBuffer(1, info.Config.BlockSize)
	n.events = graph.NewEventBuffer()
}
func (n *impulse) PrepareForNextBlock(graph.SampleRange) { n.done = false }
func (n *impulse) IsReady() bool                         { return true }
func (n *impulse) HasFinished() bool                     { return n.done }
func (n *impulse) Output() graph.Output {
	return graph.Output{Audio: n.buf, Events: n.events}
}
func (n *impulse) Process(r graph.SampleRange) {
	n.buf.Clear()
	n.events.Clear()
	if n.at >= r.Start && n.at < r.End {
		n.buf.Channel(0)[n.at-r.Start] = 1
		n.events.Add(graph.Event{Offset: n.at - r.Start, Data: []byte{0x90, 60, 100}})
	}
	n.done = true
}

func TestLatencyDelaysAudioAcrossBlocks(t *testing.T) {
	// An impulse at sample 10 delayed by 100 samples must come out at
	// stream position 110 — in the second block for a 64-frame block size.
	src := &impulse{at: 10}
	l := nodes.NewLatency(src, 100)
	all := graph.Prepare(l, nil, sampleRate, blockSize)

	runBlock(t, all, 0)
	for i, v := range l.Output().Audio.Channel(0) {
		if v != 0 {
			t.Fatalf("block 1 sample %d = %v, want all zero", i, v)
		}
	}
	if l.Output().Events.Len() != 0 {
		t.Fatalf("block 1 emitted %d events, want 0", l.Output().Events.Len())
	}

	runBlock(t, all, blockSize)
	out := l.Output().Audio.Channel(0)
	wantIdx := 110 - blockSize
	for i, v := range out {
		switch {
		case i == wantIdx && v != 1:
			t.Fatalf("delayed impulse at sample %d = %v, want 1", i, v)
		case i != wantIdx && v != 0:
			t.Fatalf("stray sample at %d = %v", i, v)
		}
	}
	evs := l.Output().Events.Events()
	if len(evs) != 1 || evs[0].Offset != int64(wantIdx) {
		t.Fatalf("block 2 events = %+v, want one at offset %d", evs, wantIdx)
	}
}

func TestLatencyZeroIsPassThrough(t *testing.T) {
	src := nodes.NewSine(440, 1)
	l := nodes.NewLatency(src, 0)
	all := graph.Prepare(l, nil, sampleRate, blockSize)
	runBlock(t, all, 0)

	srcOut := src.Output().Audio.Channel(0)
	lOut := l.Output().Audio.Channel(0)
	for i := 0; i < blockSize; i++ {
		if lOut[i] != srcOut[i] {
			t.Fatalf("sample %d = %v, want %v", i, lOut[i], srcOut[i])
		}
	}
}

func TestFuncRunsCallbackWithRangeAndInputs(t *testing.T) {
	src := nodes.NewSine(440, 1)
	var gotRange graph.SampleRange
	fn := nodes.NewFunc(1, func(r graph.SampleRange, inputs []graph.Node, out graph.Output) {
		gotRange = r
		out.Audio.CopyFrom(inputs[0].Output().Audio)
		out.Audio.ApplyGain(2)
		out.Events.Add(graph.Event{Offset: r.Start})
	}, src)
	all := graph.Prepare(fn, nil, sampleRate, blockSize)
	if len(all) != 2 || all[1] != graph.Node(fn) {
		t.Fatalf("prepared order = %v, want [src fn]", all)
	}

	r := runBlock(t, all, 128)
	if gotRange != r {
		t.Fatalf("callback range = %+v, want %+v", gotRange, r)
	}
	srcOut := src.Output().Audio.Channel(0)
	fnOut := fn.Output().Audio.Channel(0)
	for i := 0; i < blockSize; i++ {
		if fnOut[i] != 2*srcOut[i] {
			t.Fatalf("sample %d = %v, want %v", i, fnOut[i], 2*srcOut[i])
		}
	}
	if ev := fn.Output().Events.Events(); len(ev) != 1 || ev[0].Offset != 128 {
		t.Fatalf("events = %+v, want one at offset 128", ev)
	}
}

func TestFuncWaitsForInputsAndNilCallbackIsSilence(t *testing.T) {
	src := nodes.NewSine(440, 1)
	fn := nodes.NewFunc(1, nil, src)
	graph.Prepare(fn, nil, sampleRate, blockSize)

	r := graph.SampleRange{Start: 0, End: blockSize}
	fn.PrepareForNextBlock(r)
	src.PrepareForNextBlock(r)
	if fn.IsReady() {
		t.Fatal("Func ready before its input finished")
	}
	src.Process(r)
	if !fn.IsReady() {
		t.Fatal("Func not ready after its input finished")
	}
	fn.Process(r)
	for i, v := range fn.Output().Audio.Channel(0) {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0 (nil callback)", i, v)
		}
	}
}
