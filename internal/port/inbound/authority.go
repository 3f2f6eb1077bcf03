// Package inbound defines the inbound port interfaces for the session
// engine. The authentication layer in front of the engine calls these.
package inbound

import (
	"context"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// CreationResult is returned when a session is established. Token and
// RefreshToken are the only copies of the cleartext credentials; the
// engine keeps hashes and verifiers only.
type CreationResult struct {
	SessionID      string
	Token          string
	RefreshToken   string
	ExpiresAt      time.Time
	SecurityLevel  session.SecurityLevel
	RequiresReauth bool
	// EvictedSessions lists sessions retired to honor the per-user cap.
	EvictedSessions []string
}

// ValidationResult reports the outcome of one request validation.
type ValidationResult struct {
	Valid          bool
	SessionID      string
	UserID         string
	RiskScore      float64
	SecurityLevel  session.SecurityLevel
	RequiresReauth bool
	ExpiresAt      time.Time
	Permissions    []string
	Indicators     []string
}

// RefreshResult carries the reissued credentials after a sliding
// renewal. Both tokens rotate: the previous bearer token and refresh
// token are dead once this returns.
type RefreshResult struct {
	SessionID    string
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// RegenerationResult reports a session identity change. The old session
// id and token are dead once this returns.
type RegenerationResult struct {
	Success      bool
	NewSessionID string
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionAuthority is the inbound port for session lifecycle and
// continuous validation.
type SessionAuthority interface {
	// CreateSession establishes a session for an authenticated user.
	// Fails with ErrAccountLocked or ErrInvalidContext.
	CreateSession(ctx context.Context, in *session.CreationInput) (*CreationResult, error)

	// ValidateSession checks a bearer token against the request context
	// and the session's accumulated risk. Typed failures:
	// ErrInvalidToken, ErrReauthRequired, ErrSessionTerminated,
	// ErrSessionHijacked.
	ValidateSession(ctx context.Context, token string, reqCtx *session.RequestContext) (*ValidationResult, error)

	// RefreshSession performs a sliding renewal using the one-time
	// refresh token, reissuing both the bearer and refresh tokens. The
	// token index entry moves atomically: the old bearer never resolves
	// after the new one does. Fails with ErrInvalidToken when the
	// refresh token is unknown or already consumed.
	RefreshSession(ctx context.Context, token, refreshToken string, reqCtx *session.RequestContext) (*RefreshResult, error)

	// RegenerateSession replaces a session's id and key material while
	// preserving its attributes. The swap is atomic: the old token
	// never resolves after the new one does.
	RegenerateSession(ctx context.Context, userID, oldSessionID string) (*RegenerationResult, error)

	// TerminateSession ends a session and wipes its key material.
	// Terminating an already-ended session is not an error.
	TerminateSession(ctx context.Context, sessionID, reason string) error

	// SuspendSession parks a session pending review. Suspended sessions
	// fail validation until terminated or regenerated.
	SuspendSession(ctx context.Context, sessionID, reason string) error
}
