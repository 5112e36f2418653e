package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only the echo cooldown and log level are applied live; the remaining flags
// tell the caller that a restart is needed for the new values to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CooldownChanged bool
	NewCooldown     time.Duration

	// SessionChanged is true when any agent session setting (voice,
	// transcription, turn detection, instructions) differs.
	SessionChanged bool

	// RealtimeChanged is true when the provider block differs.
	RealtimeChanged bool

	SchemaPathChanged bool
}

// RestartRequired reports whether the diff contains changes that cannot be
// applied to a running session.
func (d ConfigDiff) RestartRequired() bool {
	return d.SessionChanged || d.RealtimeChanged || d.SchemaPathChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Compare effective values so that "" and "4s" are not reported as a change.
	if oc, nc := old.Session.Cooldown(), new.Session.Cooldown(); oc != nc {
		d.CooldownChanged = true
		d.NewCooldown = nc
	}

	if old.Session.Settings() != new.Session.Settings() {
		d.SessionChanged = true
	}
	if old.Realtime != new.Realtime {
		d.RealtimeChanged = true
	}
	if old.SchemaPath != new.SchemaPath {
		d.SchemaPathChanged = true
	}
	return d
}
