// Package device contains device binding records and fingerprint
// similarity scoring for session validation.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
)

// Registry errors.
var ErrBindingNotFound = errors.New("device binding not found")

// TrustLevel classifies how much a bound device is trusted.
type TrustLevel string

const (
	TrustUnknown   TrustLevel = "unknown"
	TrustTrusted   TrustLevel = "trusted"
	TrustUntrusted TrustLevel = "untrusted"
)

// Binding records the association between a session and the device that
// created it. The fingerprint is the composite client fingerprint string
// captured at session creation.
type Binding struct {
	BindingID   string        `json:"binding_id"`
	SessionID   string        `json:"session_id"`
	UserID      string        `json:"user_id"`
	Fingerprint string        `json:"fingerprint"`
	IP          string        `json:"ip"`
	UserAgent   string        `json:"user_agent"`
	Location    *geo.Location `json:"location,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	TrustLevel  TrustLevel    `json:"trust_level"`
}

// Registry stores device bindings keyed by binding id.
type Registry interface {
	// Register stores a binding. Registering an existing binding id
	// replaces the stored record.
	Register(ctx context.Context, b *Binding) error
	// Get returns a copy of the binding or ErrBindingNotFound.
	Get(ctx context.Context, bindingID string) (*Binding, error)
	// RemoveBySession deletes all bindings for a session. Removing a
	// session with no bindings is not an error.
	RemoveBySession(ctx context.Context, sessionID string) error
}
