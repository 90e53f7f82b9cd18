// Package config provides the configuration schema and YAML loader for the
// audiomesh engine.
package config

// LogLevel controls log verbosity for the engine.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SinkKind selects where rendered audio is written.
type SinkKind string

const (
	// SinkNone discards rendered audio; useful for benchmarking the
	// scheduler alone.
	SinkNone SinkKind = "none"

	// SinkWAV writes PCM16 WAV to the output path.
	SinkWAV SinkKind = "wav"

	// SinkOpus writes length-prefixed Opus packets to the output path.
	SinkOpus SinkKind = "opus"
)

// IsValid reports whether s is a recognised sink kind.
func (s SinkKind) IsValid() bool {
	switch s {
	case SinkNone, SinkWAV, SinkOpus:
		return true
	}
	return false
}

// Config is the root configuration structure for audiomesh.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Render  RenderConfig  `yaml:"render"`
	Monitor MonitorConfig `yaml:"monitor"`
	Voices  []VoiceConfig `yaml:"voices"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls slog verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// EngineConfig holds real-time scheduling parameters.
type EngineConfig struct {
	// SampleRate in Hz. Default: 48000.
	SampleRate float64 `yaml:"sample_rate"`

	// BlockSize is the number of frames processed per block. Default: 512.
	BlockSize int `yaml:"block_size"`

	// Parallelism overrides the detected hardware parallelism used to size
	// the worker pool. Zero means autodetect.
	Parallelism int `yaml:"parallelism"`
}

// RenderConfig drives the offline block renderer.
type RenderConfig struct {
	// Blocks is the number of blocks to render. Default: 500.
	Blocks int `yaml:"blocks"`

	// Sink selects the audio destination. Default: none.
	Sink SinkKind `yaml:"sink"`

	// Output is the file path WAV/Opus sinks write to.
	Output string `yaml:"output"`
}

// MonitorConfig configures the stats/metrics HTTP server.
type MonitorConfig struct {
	// ListenAddr is the address the monitor listens on. Empty disables the
	// monitor entirely.
	ListenAddr string `yaml:"listen_addr"`
}

// VoiceConfig describes one tone voice in the demo graph.
type VoiceConfig struct {
	// Frequency in Hz.
	Frequency float64 `yaml:"frequency"`

	// Gain applied to the voice. Default: 1.0.
	Gain float32 `yaml:"gain"`

	// LatencySamples delays the voice by a fixed sample count.
	LatencySamples int `yaml:"latency_samples"`
}

// applyDefaults fills zero values with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Engine.SampleRate == 0 {
		c.Engine.SampleRate = 48000
	}
	if c.Engine.BlockSize == 0 {
		c.Engine.BlockSize = 512
	}
	if c.Render.Blocks == 0 {
		c.Render.Blocks = 500
	}
	if c.Render.Sink == "" {
		c.Render.Sink = SinkNone
	}
	for i := range c.Voices {
		if c.Voices[i].Gain == 0 {
			c.Voices[i].Gain = 1
		}
	}
}
