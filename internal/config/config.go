// Package config provides the configuration schema, loaders, agent registry
// and file watcher for charterline.
package config

import (
	"time"

	"github.com/MrWong99/charterline/pkg/realtime"
)

// LogLevel controls log verbosity.
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

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Defaults applied when the corresponding key is unset.
const (
	DefaultProvider     = "openai"
	DefaultEchoCooldown = 4 * time.Second
	DefaultListenAddr   = ":9090"
)

// ValidTurnDetection lists the accepted session.turn_detection.type values.
var ValidTurnDetection = []string{"server_vad", "semantic_vad"}

// Config is the root configuration structure for charterline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Session  SessionConfig  `yaml:"session"`

	// SchemaPath points at the field schema YAML loaded by [LoadSchema].
	// Relative paths are resolved against the working directory.
	SchemaPath string `yaml:"schema_path"`
}

// ServerConfig holds the status server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the status server serving /healthz,
	// /readyz, /statusz and /metrics (e.g., ":9090"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output. Default: text.
	LogFormat LogFormat `yaml:"log_format"`
}

// RealtimeConfig selects and configures the spoken agent connection.
type RealtimeConfig struct {
	// Provider selects the registered agent implementation (e.g., "openai",
	// "replay"). Default: "openai".
	Provider string `yaml:"provider"`

	// URL overrides the provider endpoint. For the replay provider it is the
	// transcript file to read ("-" for stdin).
	URL string `yaml:"url"`

	// Model selects the realtime model.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. When empty the
	// OPENAI_API_KEY environment variable is used.
	APIKey string `yaml:"api_key"`

	// Pace delays each replayed line (e.g., "1s"). Only used by the replay
	// provider.
	Pace time.Duration `yaml:"pace"`

	// DialAttempts is how many times the agent connection is tried before
	// giving up. Default: 3.
	DialAttempts int `yaml:"dial_attempts"`
}

// SessionConfig tunes the voice capture session.
type SessionConfig struct {
	// Voice is the agent voice id (e.g., "alloy").
	Voice string `yaml:"voice"`

	// TranscriptionModel selects the input transcription model
	// (e.g., "whisper-1").
	TranscriptionModel string `yaml:"transcription_model"`

	// TurnDetection configures server-side turn detection.
	TurnDetection realtime.TurnDetection `yaml:"turn_detection"`

	// Instructions replaces the generated agent system prompt.
	Instructions string `yaml:"instructions"`

	// EchoCooldown is the post-prompt window in which long transcripts are
	// treated as agent echo (e.g., "4s"). Zero means the default.
	EchoCooldown time.Duration `yaml:"echo_cooldown"`
}

// ProviderName returns the configured provider or [DefaultProvider].
func (r RealtimeConfig) ProviderName() string {
	if r.Provider == "" {
		return DefaultProvider
	}
	return r.Provider
}

// Settings converts the session block into agent session settings.
func (s SessionConfig) Settings() realtime.SessionSettings {
	return realtime.SessionSettings{
		Voice:              s.Voice,
		TranscriptionModel: s.TranscriptionModel,
		TurnDetection:      s.TurnDetection,
		Instructions:       s.Instructions,
	}
}

// Cooldown returns the echo cooldown or [DefaultEchoCooldown].
func (s SessionConfig) Cooldown() time.Duration {
	if s.EchoCooldown == 0 {
		return DefaultEchoCooldown
	}
	return s.EchoCooldown
}
