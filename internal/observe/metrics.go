// Package observe provides observability primitives for the audiomesh
// engine: OpenTelemetry metric instruments and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API, always off the
// real-time path — the render loop records per-block observations after each
// block returns, never inside the scheduler's hot loops. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all audiomesh metrics.
const meterName = "github.com/audiomesh/audiomesh"

// blockBuckets defines histogram bucket boundaries (in seconds) sized for
// block-render latencies: a 512-frame block at 48 kHz has a ~10.7 ms budget.
var blockBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// Metrics holds all OpenTelemetry metric instruments for the engine. All
// fields are safe for concurrent use — the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// BlockDuration tracks wall time spent producing one block.
	BlockDuration metric.Float64Histogram

	// BlocksProcessed counts blocks that completed with output.
	BlocksProcessed metric.Int64Counter

	// BlocksNoGraph counts Process calls that found no current graph.
	BlocksNoGraph metric.Int64Counter

	// GraphAdoptions counts graph swaps observed by the render loop.
	GraphAdoptions metric.Int64Counter

	// NodesProcessed counts node executions across all blocks.
	NodesProcessed metric.Int64Counter

	// Workers reports the player's current worker-pool size. Fed from
	// [Metrics.SetWorkers] and read by the SDK at collection time.
	Workers metric.Int64ObservableGauge

	workerCount atomic.Int64
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BlockDuration, err = m.Float64Histogram("audiomesh.block.duration",
		metric.WithDescription("Wall time spent producing one audio block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(blockBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BlocksProcessed, err = m.Int64Counter("audiomesh.blocks.processed",
		metric.WithDescription("Total blocks rendered with output."),
	); err != nil {
		return nil, err
	}
	if met.BlocksNoGraph, err = m.Int64Counter("audiomesh.blocks.no_graph",
		metric.WithDescription("Total Process calls that found no current graph."),
	); err != nil {
		return nil, err
	}
	if met.GraphAdoptions, err = m.Int64Counter("audiomesh.graph.adoptions",
		metric.WithDescription("Total graph swaps adopted by the block driver."),
	); err != nil {
		return nil, err
	}
	if met.NodesProcessed, err = m.Int64Counter("audiomesh.nodes.processed",
		metric.WithDescription("Total node executions across all blocks."),
	); err != nil {
		return nil, err
	}
	if met.Workers, err = m.Int64ObservableGauge("audiomesh.workers",
		metric.WithDescription("Current worker-pool size of the player."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(met.workerCount.Load())
			return nil
		}),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBlock records one completed block: its duration and the number of
// nodes it executed.
func (m *Metrics) RecordBlock(ctx context.Context, d time.Duration, nodeCount int) {
	m.BlockDuration.Record(ctx, d.Seconds())
	m.BlocksProcessed.Add(ctx, 1)
	m.NodesProcessed.Add(ctx, int64(nodeCount))
}

// RecordNoGraph records a Process call that had nothing to play.
func (m *Metrics) RecordNoGraph(ctx context.Context) {
	m.BlocksNoGraph.Add(ctx, 1)
}

// RecordAdoption records a graph swap.
func (m *Metrics) RecordAdoption(ctx context.Context) {
	m.GraphAdoptions.Add(ctx, 1)
}

// SetWorkers updates the worker-pool size reported by the Workers gauge.
func (m *Metrics) SetWorkers(n int) {
	m.workerCount.Store(int64(n))
}
