// Package config provides configuration types for the sessiond daemon.
//
// Configuration is file-based (sessiond.yaml) with environment variable
// overrides under the SESSIOND_ prefix. All tunables carry safe defaults
// so the daemon runs with an empty file; durations are written as Go
// duration strings ("30s", "2h") and parsed in one place via Durations.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for sessiond.
type Config struct {
	// Server configures the operational HTTP listener (metrics, health).
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session tunes token budgets and the per-user concurrency cap.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Validation tunes the per-request check pipeline thresholds.
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`

	// Profile tunes the background behavioral profiling pass.
	Profile ProfileConfig `yaml:"profile" mapstructure:"profile"`

	// Maintenance tunes the cleanup and key rotation sweeps.
	Maintenance MaintenanceConfig `yaml:"maintenance" mapstructure:"maintenance"`

	// Events configures where security events are written and how the
	// async dispatcher batches them.
	Events EventsConfig `yaml:"events" mapstructure:"events"`

	// Archive configures the forensics archive for suspicious endings.
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`

	// Escalation defines operator escalation rules (CEL expressions).
	// Optional: when empty, only the built-in graduated thresholds apply.
	Escalation EscalationConfig `yaml:"escalation" mapstructure:"escalation"`

	// Geo provisions the static geolocation table.
	// Optional: when empty, locations are unknown and geo checks skip.
	Geo GeoConfig `yaml:"geo" mapstructure:"geo"`

	// Accounts provisions account lock state and trusted devices.
	// Optional: when empty, no account is locked and every device is
	// trusted.
	Accounts AccountsConfig `yaml:"accounts" mapstructure:"accounts"`

	// Tracing configures the OpenTelemetry trace exporter.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables development conveniences (debug logging, in-memory
	// archive, stdout events).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the operational HTTP listener.
type ServerConfig struct {
	// MetricsAddr is the address the metrics/health listener binds to.
	// Defaults to "127.0.0.1:9090" (localhost only) if empty.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SessionConfig tunes session budgets.
type SessionConfig struct {
	// TokenTTL is the sliding expiry granted at creation and on each
	// refresh (e.g., "8h"). Defaults to "8h".
	TokenTTL string `yaml:"token_ttl" mapstructure:"token_ttl" validate:"omitempty"`

	// MaxLifetime is the absolute budget from creation; refreshes never
	// extend past it (e.g., "24h"). Defaults to "24h".
	MaxLifetime string `yaml:"max_lifetime" mapstructure:"max_lifetime" validate:"omitempty"`

	// MaxSessionsPerUser caps concurrent sessions per user; the least
	// recently used session is evicted at the cap. Defaults to 5.
	MaxSessionsPerUser int `yaml:"max_sessions_per_user" mapstructure:"max_sessions_per_user" validate:"omitempty,min=1"`
}

// ValidationConfig tunes the continuous validation pipeline.
type ValidationConfig struct {
	// MaxIdle is the idle budget at zero risk (e.g., "2h"); higher risk
	// shrinks it proportionally. Defaults to "2h".
	MaxIdle string `yaml:"max_idle" mapstructure:"max_idle" validate:"omitempty"`

	// DeviceFlagBelow is the fingerprint similarity under which a device
	// change indicator is raised (0-1]. Defaults to 0.8.
	DeviceFlagBelow float64 `yaml:"device_flag_below" mapstructure:"device_flag_below" validate:"omitempty,gt=0,lte=1"`

	// DeviceReauthBelow is the similarity under which re-authentication
	// is forced (0-1]. Must not exceed DeviceFlagBelow. Defaults to 0.2.
	DeviceReauthBelow float64 `yaml:"device_reauth_below" mapstructure:"device_reauth_below" validate:"omitempty,gt=0,lte=1"`

	// MaxTravelSpeedKmh is the travel speed over which a location change
	// is treated as hijacking. Defaults to 1000.
	MaxTravelSpeedKmh float64 `yaml:"max_travel_speed_kmh" mapstructure:"max_travel_speed_kmh" validate:"omitempty,gt=0"`

	// MinBaselineConfidence gates behavioral comparison until the user's
	// baseline has enough samples (0-1]. Defaults to 0.3.
	MinBaselineConfidence float64 `yaml:"min_baseline_confidence" mapstructure:"min_baseline_confidence" validate:"omitempty,gt=0,lte=1"`

	// AnomalyThreshold is the behavioral anomaly score over which
	// re-authentication is forced (0-1]. Defaults to 0.8.
	AnomalyThreshold float64 `yaml:"anomaly_threshold" mapstructure:"anomaly_threshold" validate:"omitempty,gt=0,lte=1"`

	// MaxConcurrent is the cross-IP concurrent session count treated as
	// concurrency abuse. Defaults to 5.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"omitempty,min=1"`
}

// ProfileConfig tunes the behavioral profiler.
type ProfileConfig struct {
	// Interval is the time between profiling passes (e.g., "1m").
	// Defaults to "1m".
	Interval string `yaml:"interval" mapstructure:"interval" validate:"omitempty"`
}

// MaintenanceConfig tunes the background sweeps.
type MaintenanceConfig struct {
	// CleanupInterval is the time between cleanup sweeps (e.g., "1m").
	// Defaults to "1m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty"`

	// RotationInterval is the time between key rotation sweeps (e.g., "10m").
	// Defaults to "10m".
	RotationInterval string `yaml:"rotation_interval" mapstructure:"rotation_interval" validate:"omitempty"`

	// KeyMaxAge is how old key material may grow before the rotation
	// sweep re-keys the session (e.g., "4h"). Defaults to "4h".
	KeyMaxAge string `yaml:"key_max_age" mapstructure:"key_max_age" validate:"omitempty"`
}

// EventsConfig configures the security event trail.
type EventsConfig struct {
	// Output specifies where events are written.
	// Valid values: "stdout" or "file:///absolute/path/to/directory"
	// (a directory; files inside rotate daily and by size).
	// Defaults to "stdout" if empty.
	Output string `yaml:"output" mapstructure:"output" validate:"required,event_output"`

	// RetentionDays is the number of days to keep rotated event files.
	// Only used with file output. Defaults to 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// MaxFileSizeMB is the maximum size per event file in megabytes
	// before rotation. Only used with file output. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`

	// CacheSize is the number of recent events kept in memory for
	// queries. Defaults to 1000.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`

	// ChannelSize is the buffer size for the dispatcher channel.
	// Larger values absorb bursts better but use more memory.
	// Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records batched before a write.
	// Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often partial batches are flushed (e.g., "1s").
	// Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long to block when the channel is full before
	// dropping (e.g., "100ms"). "0" drops immediately. Defaults to "100ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// WarningThreshold is the channel depth percentage (0-100) at which
	// a rate-limited warning is logged. 0 disables. Defaults to 80.
	WarningThreshold int `yaml:"warning_threshold" mapstructure:"warning_threshold" validate:"omitempty,min=0,max=100"`
}

// ArchiveConfig configures the forensics archive.
type ArchiveConfig struct {
	// Enabled controls whether suspicious session endings are archived.
	// Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file. ":memory:" keeps the archive
	// ephemeral. Defaults to "sessiond-forensics.db".
	Path string `yaml:"path" mapstructure:"path"`
}

// EscalationConfig holds operator escalation rules.
type EscalationConfig struct {
	// Rules are evaluated in order against each assessment; the first
	// match raises the graduated decision one step. Conditions are CEL
	// expressions over risk_score, indicators, security_level, state,
	// session_type, session_age_minutes, and request_count; they are
	// compiled and rejected at startup if invalid.
	Rules []EscalationRuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// EscalationRuleConfig is one named escalation rule.
type EscalationRuleConfig struct {
	// Name identifies the rule in logs and events.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Condition is the CEL expression (e.g.,
	// `risk_score > 50.0 && "DEVICE_CHANGE" in indicators`).
	Condition string `yaml:"condition" mapstructure:"condition" validate:"required"`
}

// GeoConfig provisions the static geolocation table.
type GeoConfig struct {
	// Entries map CIDR blocks to locations; the most specific prefix
	// wins. Addresses outside the table resolve as unknown.
	Entries []GeoEntryConfig `yaml:"entries" mapstructure:"entries" validate:"omitempty,dive"`
}

// GeoEntryConfig is one CIDR-to-location mapping.
type GeoEntryConfig struct {
	// CIDR is the network block (e.g., "203.0.113.0/24").
	CIDR string `yaml:"cidr" mapstructure:"cidr" validate:"required,cidr"`

	// Country is the ISO country code (e.g., "US").
	Country string `yaml:"country" mapstructure:"country"`

	// Region is the subdivision name.
	Region string `yaml:"region" mapstructure:"region"`

	// City is the city name.
	City string `yaml:"city" mapstructure:"city"`

	// Timezone is the IANA timezone (e.g., "America/New_York").
	Timezone string `yaml:"timezone" mapstructure:"timezone"`

	// Latitude in decimal degrees.
	Latitude float64 `yaml:"latitude" mapstructure:"latitude" validate:"omitempty,gte=-90,lte=90"`

	// Longitude in decimal degrees.
	Longitude float64 `yaml:"longitude" mapstructure:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// AccountsConfig provisions account state for deployments without an
// external identity service.
type AccountsConfig struct {
	// LockedUsers are user ids barred from creating sessions.
	LockedUsers []string `yaml:"locked_users" mapstructure:"locked_users"`

	// TrustedDevices are device fingerprints treated as verified. When
	// empty, every device is trusted.
	TrustedDevices []string `yaml:"trusted_devices" mapstructure:"trusted_devices"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	// Enabled turns the stdout trace exporter on. Defaults to false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults bind to localhost only.
	// Deployments that need network access set metrics_addr explicitly.
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "127.0.0.1:9090"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	// Session defaults
	if c.Session.TokenTTL == "" {
		c.Session.TokenTTL = "8h"
	}
	if c.Session.MaxLifetime == "" {
		c.Session.MaxLifetime = "24h"
	}
	if c.Session.MaxSessionsPerUser == 0 {
		c.Session.MaxSessionsPerUser = 5
	}

	// Validation defaults
	if c.Validation.MaxIdle == "" {
		c.Validation.MaxIdle = "2h"
	}
	if c.Validation.DeviceFlagBelow == 0 {
		c.Validation.DeviceFlagBelow = 0.8
	}
	if c.Validation.DeviceReauthBelow == 0 {
		c.Validation.DeviceReauthBelow = 0.2
	}
	if c.Validation.MaxTravelSpeedKmh == 0 {
		c.Validation.MaxTravelSpeedKmh = 1000
	}
	if c.Validation.MinBaselineConfidence == 0 {
		c.Validation.MinBaselineConfidence = 0.3
	}
	if c.Validation.AnomalyThreshold == 0 {
		c.Validation.AnomalyThreshold = 0.8
	}
	if c.Validation.MaxConcurrent == 0 {
		c.Validation.MaxConcurrent = 5
	}

	// Background pass defaults
	if c.Profile.Interval == "" {
		c.Profile.Interval = "1m"
	}
	if c.Maintenance.CleanupInterval == "" {
		c.Maintenance.CleanupInterval = "1m"
	}
	if c.Maintenance.RotationInterval == "" {
		c.Maintenance.RotationInterval = "10m"
	}
	if c.Maintenance.KeyMaxAge == "" {
		c.Maintenance.KeyMaxAge = "4h"
	}

	// Event trail defaults
	if c.Events.Output == "" {
		c.Events.Output = "stdout"
	}
	if c.Events.RetentionDays == 0 {
		c.Events.RetentionDays = 7
	}
	if c.Events.MaxFileSizeMB == 0 {
		c.Events.MaxFileSizeMB = 100
	}
	if c.Events.CacheSize == 0 {
		c.Events.CacheSize = 1000
	}
	if c.Events.ChannelSize == 0 {
		c.Events.ChannelSize = 1000
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = 100
	}
	if c.Events.FlushInterval == "" {
		c.Events.FlushInterval = "1s"
	}
	if c.Events.SendTimeout == "" {
		c.Events.SendTimeout = "100ms"
	}
	if c.Events.WarningThreshold == 0 {
		c.Events.WarningThreshold = 80
	}

	// Archive defaults to enabled.
	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("archive.enabled") {
		c.Archive.Enabled = true
	}
	if c.Archive.Path == "" {
		c.Archive.Path = "sessiond-forensics.db"
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// These are applied after SetDefaults and before validation.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	// Keep dev runs self-contained: no files on disk unless asked for.
	if !viper.IsSet("archive.path") {
		c.Archive.Path = ":memory:"
	}
	if !viper.IsSet("events.output") {
		c.Events.Output = "stdout"
	}
}

// Durations holds every configured duration parsed into time.Duration.
// Centralizing the parse keeps "invalid duration" failures at startup
// instead of scattered through wiring.
type Durations struct {
	TokenTTL           time.Duration
	MaxLifetime        time.Duration
	MaxIdle            time.Duration
	ProfileInterval    time.Duration
	CleanupInterval    time.Duration
	RotationInterval   time.Duration
	KeyMaxAge          time.Duration
	EventFlushInterval time.Duration
	EventSendTimeout   time.Duration
}

// Durations parses all duration strings. Call after SetDefaults so every
// field is populated.
func (c *Config) Durations() (*Durations, error) {
	d := &Durations{}
	for _, f := range []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"session.token_ttl", c.Session.TokenTTL, &d.TokenTTL},
		{"session.max_lifetime", c.Session.MaxLifetime, &d.MaxLifetime},
		{"validation.max_idle", c.Validation.MaxIdle, &d.MaxIdle},
		{"profile.interval", c.Profile.Interval, &d.ProfileInterval},
		{"maintenance.cleanup_interval", c.Maintenance.CleanupInterval, &d.CleanupInterval},
		{"maintenance.rotation_interval", c.Maintenance.RotationInterval, &d.RotationInterval},
		{"maintenance.key_max_age", c.Maintenance.KeyMaxAge, &d.KeyMaxAge},
		{"events.flush_interval", c.Events.FlushInterval, &d.EventFlushInterval},
		{"events.send_timeout", c.Events.SendTimeout, &d.EventSendTimeout},
	} {
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid duration %q", f.key, f.value)
		}
		*f.dst = v
	}
	return d, nil
}
