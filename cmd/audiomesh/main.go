// Command audiomesh renders a configured tone graph through the lock-free
// multi-threaded node player, exposing live stats and Prometheus metrics
// while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/audiomesh/audiomesh/internal/config"
	"github.com/audiomesh/audiomesh/internal/monitor"
	"github.com/audiomesh/audiomesh/internal/observe"
	"github.com/audiomesh/audiomesh/internal/render"
	"github.com/audiomesh/audiomesh/pkg/graph"
	"github.com/audiomesh/audiomesh/pkg/graph/nodes"
	"github.com/audiomesh/audiomesh/pkg/player"
)

// outputChannels is the channel count of the rendered output.
const outputChannels = 2

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "audiomesh: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "audiomesh: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("audiomesh starting",
		"config", *configPath,
		"sample_rate", cfg.Engine.SampleRate,
		"block_size", cfg.Engine.BlockSize,
		"voices", len(cfg.Voices),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	// ── Player and graph ──────────────────────────────────────────────────────
	var opts []player.Option
	if cfg.Engine.Parallelism > 0 {
		opts = append(opts, player.WithParallelism(cfg.Engine.Parallelism))
	}
	p := player.New(opts...)
	defer p.Close()

	root, nodeCount := buildGraph(cfg.Voices)
	p.SetNodeWithConfig(root, cfg.Engine.SampleRate, cfg.Engine.BlockSize)
	slog.Info("graph published", "nodes", nodeCount, "workers", p.Workers())

	// ── Sink ──────────────────────────────────────────────────────────────────
	sink, err := buildSink(cfg)
	if err != nil {
		slog.Error("failed to create sink", "err", err)
		return 1
	}

	// ── Render loop + monitor ─────────────────────────────────────────────────
	r := render.New(p, nodeCount, outputChannels, observe.DefaultMetrics(), sink)

	g, gctx := errgroup.WithContext(ctx)
	renderDone, cancelMonitor := context.WithCancel(gctx)

	if cfg.Monitor.ListenAddr != "" {
		g.Go(func() error {
			return monitor.New(cfg.Monitor.ListenAddr, r).Run(renderDone)
		})
	}
	g.Go(func() error {
		defer cancelMonitor()
		return r.RenderBlocks(gctx, cfg.Render.Blocks)
	})

	err = g.Wait()
	if sink != nil {
		if cerr := sink.Close(); cerr != nil {
			slog.Error("failed to close sink", "err", cerr)
			if err == nil {
				err = cerr
			}
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("render failed", "err", err)
		return 1
	}

	stats := r.Stats()
	slog.Info("render finished",
		"blocks", stats.BlocksRendered,
		"mean_block_us", stats.MeanBlockMicro,
		"last_block_us", stats.LastBlockMicro,
	)
	return 0
}

// buildGraph assembles the demo voice graph: each voice is a sine source,
// optionally delayed, scaled by its gain, all mixed by a sum root. Returns
// the root and the total node count.
func buildGraph(voices []config.VoiceConfig) (graph.Node, int) {
	if len(voices) == 0 {
		root := nodes.NewSum(nodes.NewSilence(outputChannels))
		return root, 2
	}

	count := 1 // the sum root
	ins := make([]graph.Node, 0, len(voices))
	for _, v := range voices {
		var n graph.Node = nodes.NewSine(v.Frequency, outputChannels)
		count++
		if v.LatencySamples > 0 {
			n = nodes.NewLatency(n, v.LatencySamples)
			count++
		}
		ins = append(ins, nodes.NewGain(n, v.Gain))
		count++
	}
	return nodes.NewSum(ins...), count
}

// buildSink creates the configured audio destination, nil for SinkNone.
func buildSink(cfg *config.Config) (render.Sink, error) {
	switch cfg.Render.Sink {
	case config.SinkNone:
		return nil, nil
	case config.SinkWAV:
		f, err := os.Create(cfg.Render.Output)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", cfg.Render.Output, err)
		}
		return render.NewWAVSink(f, int(cfg.Engine.SampleRate), outputChannels), nil
	case config.SinkOpus:
		f, err := os.Create(cfg.Render.Output)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", cfg.Render.Output, err)
		}
		return render.NewOpusSink(f, int(cfg.Engine.SampleRate), outputChannels)
	}
	return nil, fmt.Errorf("unknown sink kind %q", cfg.Render.Sink)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
