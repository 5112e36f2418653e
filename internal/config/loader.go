package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// maxEchoCooldown bounds session.echo_cooldown; a longer window would reject
// most genuine answers.
const maxEchoCooldown = time.Minute

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected. An empty document yields the zero [Config].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Realtime
	if !slices.Contains(KnownProviders, cfg.Realtime.ProviderName()) {
		slog.Warn("unknown realtime provider; it must be registered before use",
			"name", cfg.Realtime.Provider,
			"known", KnownProviders,
		)
	}
	if cfg.Realtime.ProviderName() == ProviderReplay && cfg.Realtime.URL == "" {
		errs = append(errs, errors.New("realtime.url is required when provider is replay"))
	}
	if cfg.Realtime.DialAttempts < 0 {
		errs = append(errs, fmt.Errorf("realtime.dial_attempts %d must not be negative", cfg.Realtime.DialAttempts))
	}
	if cfg.Realtime.Pace < 0 {
		errs = append(errs, fmt.Errorf("realtime.pace %s must not be negative", cfg.Realtime.Pace))
	}

	// Session
	td := cfg.Session.TurnDetection
	if td.Type != "" && !slices.Contains(ValidTurnDetection, td.Type) {
		errs = append(errs, fmt.Errorf("session.turn_detection.type %q is invalid; valid values: %v", td.Type, ValidTurnDetection))
	}
	if td.Threshold < 0 || td.Threshold > 1 {
		errs = append(errs, fmt.Errorf("session.turn_detection.threshold %.2f is out of range [0, 1]", td.Threshold))
	}
	if td.PrefixPaddingMs < 0 {
		errs = append(errs, fmt.Errorf("session.turn_detection.prefix_padding_ms %d must not be negative", td.PrefixPaddingMs))
	}
	if td.SilenceDurationMs < 0 {
		errs = append(errs, fmt.Errorf("session.turn_detection.silence_duration_ms %d must not be negative", td.SilenceDurationMs))
	}
	if d := cfg.Session.EchoCooldown; d < 0 || d > maxEchoCooldown {
		errs = append(errs, fmt.Errorf("session.echo_cooldown %s is out of range [0s, %s]", d, maxEchoCooldown))
	}

	return errors.Join(errs...)
}
