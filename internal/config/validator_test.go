package config

import (
	"strings"
	"testing"
)

// validConfig returns a defaulted Config that passes validation.
func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidEventOutput(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Events.Output = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Events.Output") {
		t.Errorf("error = %q, want to contain 'Events.Output'", err.Error())
	}
}

func TestValidate_EventOutputForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		output string
		ok     bool
	}{
		{"stdout", true},
		{"file:///var/log/sessiond", true},
		{"file://relative/path", false},
		{"file://", false},
		{"syslog", false},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			cfg := validConfig()
			cfg.Events.Output = tt.output
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate(%q) unexpected error: %v", tt.output, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Validate(%q) expected error, got nil", tt.output)
			}
		})
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "LogLevel") || !strings.Contains(err.Error(), "one of") {
		t.Errorf("error = %q, want oneof failure on LogLevel", err.Error())
	}
}

func TestValidate_BadMetricsAddr(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.MetricsAddr = "not an address"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "MetricsAddr") {
		t.Errorf("error = %q, want to contain 'MetricsAddr'", err.Error())
	}
}

func TestValidate_DeviceThresholdOrder(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Validation.DeviceReauthBelow = 0.9
	cfg.Validation.DeviceFlagBelow = 0.8

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "device_reauth_below") {
		t.Errorf("error = %q, want threshold ordering failure", err.Error())
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Validation.DeviceFlagBelow = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "DeviceFlagBelow") {
		t.Errorf("error = %q, want to contain 'DeviceFlagBelow'", err.Error())
	}
}

func TestValidate_BadDuration(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Maintenance.KeyMaxAge = "four hours"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "maintenance.key_max_age") {
		t.Errorf("error = %q, want to name maintenance.key_max_age", err.Error())
	}
}

func TestValidate_GeoEntryCIDR(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Geo.Entries = []GeoEntryConfig{
		{CIDR: "203.0.113.0/24", Country: "US", City: "New York", Latitude: 40.7128, Longitude: -74.0060},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with valid entry unexpected error: %v", err)
	}

	cfg.Geo.Entries = append(cfg.Geo.Entries, GeoEntryConfig{CIDR: "not-a-cidr"})
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for bad CIDR, got nil")
	}
	if !strings.Contains(err.Error(), "CIDR") {
		t.Errorf("error = %q, want to contain 'CIDR'", err.Error())
	}
}

func TestValidate_GeoEntryCoordinates(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Geo.Entries = []GeoEntryConfig{
		{CIDR: "203.0.113.0/24", Latitude: 95},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for latitude out of range, got nil")
	}
	if !strings.Contains(err.Error(), "Latitude") {
		t.Errorf("error = %q, want to contain 'Latitude'", err.Error())
	}
}

func TestValidate_EscalationRuleFields(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Escalation.Rules = []EscalationRuleConfig{
		{Name: "high-risk-admin", Condition: `risk_score > 50.0 && security_level == "critical"`},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with valid rule unexpected error: %v", err)
	}

	cfg.Escalation.Rules = []EscalationRuleConfig{{Name: "incomplete"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for rule without condition, got nil")
	}
	if !strings.Contains(err.Error(), "Condition") {
		t.Errorf("error = %q, want to contain 'Condition'", err.Error())
	}
}

func TestRegisterCustomValidators(t *testing.T) {
	t.Parallel()

	// Validate() registers them internally; a second registration on a
	// fresh validator must also succeed.
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("first Validate() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("second Validate() error: %v", err)
	}
}
