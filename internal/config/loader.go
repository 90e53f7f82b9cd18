package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Engine.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.sample_rate must be positive, got %v", cfg.Engine.SampleRate))
	}
	if cfg.Engine.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.block_size must be positive, got %d", cfg.Engine.BlockSize))
	}
	if cfg.Engine.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("engine.parallelism must not be negative, got %d", cfg.Engine.Parallelism))
	}

	if cfg.Render.Blocks < 0 {
		errs = append(errs, fmt.Errorf("render.blocks must not be negative, got %d", cfg.Render.Blocks))
	}
	if !cfg.Render.Sink.IsValid() {
		errs = append(errs, fmt.Errorf("render.sink %q is invalid; valid values: none, wav, opus", cfg.Render.Sink))
	}
	if cfg.Render.Sink != SinkNone && cfg.Render.Output == "" {
		errs = append(errs, fmt.Errorf("render.output is required when render.sink is %q", cfg.Render.Sink))
	}

	for i, v := range cfg.Voices {
		if v.Frequency <= 0 {
			errs = append(errs, fmt.Errorf("voices[%d].frequency must be positive, got %v", i, v.Frequency))
		}
		if v.LatencySamples < 0 {
			errs = append(errs, fmt.Errorf("voices[%d].latency_samples must not be negative, got %d", i, v.LatencySamples))
		}
	}

	return errors.Join(errs...)
}
