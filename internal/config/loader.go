// Package config provides configuration loading for sessiond.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for sessiond.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("sessiond")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SESSIOND_SERVER_METRICS_ADDR
	viper.SetEnvPrefix("SESSIOND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Bind nested keys for env var support
	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a sessiond config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper
// from matching the binary "sessiond" (no extension) in the current
// directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".sessiond"),
	}
	if runtime.GOOS == "windows" {
		// %ProgramData%\sessiond (typically C:\ProgramData\sessiond)
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "sessiond"))
		}
	} else {
		paths = append(paths, "/etc/sessiond")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for sessiond.yaml
// or .yml. Returns the full path of the first match, or empty string if
// none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sessiond"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all scalar config keys for environment variable
// support. Example: SESSIOND_SESSION_TOKEN_TTL overrides session.token_ttl.
func bindNestedEnvKeys() {
	// Server config
	_ = viper.BindEnv("server.metrics_addr")
	_ = viper.BindEnv("server.log_level")

	// Session budgets
	_ = viper.BindEnv("session.token_ttl")
	_ = viper.BindEnv("session.max_lifetime")
	_ = viper.BindEnv("session.max_sessions_per_user")

	// Validation thresholds
	_ = viper.BindEnv("validation.max_idle")
	_ = viper.BindEnv("validation.device_flag_below")
	_ = viper.BindEnv("validation.device_reauth_below")
	_ = viper.BindEnv("validation.max_travel_speed_kmh")
	_ = viper.BindEnv("validation.min_baseline_confidence")
	_ = viper.BindEnv("validation.anomaly_threshold")
	_ = viper.BindEnv("validation.max_concurrent")

	// Background passes
	_ = viper.BindEnv("profile.interval")
	_ = viper.BindEnv("maintenance.cleanup_interval")
	_ = viper.BindEnv("maintenance.rotation_interval")
	_ = viper.BindEnv("maintenance.key_max_age")

	// Event trail
	_ = viper.BindEnv("events.output")
	_ = viper.BindEnv("events.retention_days")
	_ = viper.BindEnv("events.max_file_size_mb")
	_ = viper.BindEnv("events.cache_size")
	_ = viper.BindEnv("events.channel_size")
	_ = viper.BindEnv("events.batch_size")
	_ = viper.BindEnv("events.flush_interval")
	_ = viper.BindEnv("events.send_timeout")
	_ = viper.BindEnv("events.warning_threshold")

	// Archive
	_ = viper.BindEnv("archive.enabled")
	_ = viper.BindEnv("archive.path")

	// Tracing
	_ = viper.BindEnv("tracing.enabled")

	// Note: escalation.rules, geo.entries, and accounts.* are arrays,
	// complex to override via env. Use the config file for these.

	// Dev mode
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
// Note: Caller should apply any CLI flag overrides (e.g. --dev) between
// LoadConfigRaw and Validate when flags may change DevMode.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	// In dev mode, apply permissive defaults before validation
	cfg.SetDevDefaults()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
		// This allows running with pure environment variable configuration
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded. Returns an empty string if no config file was found (env vars
// only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
