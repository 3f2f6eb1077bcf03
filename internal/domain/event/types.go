// Package event contains domain types for the security event stream.
package event

import (
	"strings"
	"time"
)

// Severity constants for event records.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event type constants, namespaced by subsystem.
const (
	// Lifecycle events
	TypeSessionCreated     = "session.created"
	TypeSessionRefreshed   = "session.refreshed"
	TypeSessionRegenerated = "session.regenerated"
	TypeSessionSuspended   = "session.suspended"
	TypeSessionTerminated  = "session.terminated"
	TypeSessionEvicted     = "session.evicted"
	TypeSessionExpired     = "session.expired"

	// Key management events
	TypeKeyRotated = "key.rotated"

	// Continuous validation events
	TypeRiskEscalated    = "risk.escalated"
	TypeReauthRequired   = "risk.reauth_required"
	TypeImpossibleTravel = "travel.impossible"
	TypeDeviceChanged    = "device.changed"
	TypeBehaviorAnomaly  = "behavior.anomaly"
)

// Record represents a single security event.
type Record struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Type categorizes the event (session.*, risk.*, key.*, ...).
	Type string `json:"type"`
	// Severity is info, warning, or critical.
	Severity string `json:"severity"`

	// Subject information
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`

	// Assessment context
	RiskScore  float64  `json:"risk_score,omitempty"`
	Indicators []string `json:"indicators,omitempty"`
	Reason     string   `json:"reason,omitempty"`

	// Detail carries event-specific values (may be redacted).
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// DefaultSeverity maps an event type to its baseline severity. Callers
// may raise it when the surrounding assessment warrants.
func DefaultSeverity(eventType string) string {
	switch eventType {
	case TypeSessionTerminated, TypeImpossibleTravel:
		return SeverityCritical
	case TypeRiskEscalated, TypeReauthRequired, TypeDeviceChanged,
		TypeBehaviorAnomaly, TypeSessionEvicted, TypeSessionSuspended:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// sensitiveKeywords lists substrings that indicate a sensitive detail key.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactDetail returns a copy of detail with sensitive values masked. A
// key is sensitive if it contains any of the sensitiveKeywords
// (case-insensitive).
func RedactDetail(detail map[string]interface{}) map[string]interface{} {
	if len(detail) == 0 {
		return detail
	}
	redacted := make(map[string]interface{}, len(detail))
	for k, v := range detail {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
