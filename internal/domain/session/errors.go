package session

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the lifecycle engine. Callers match them
// with errors.Is; the typed errors below carry detail and unwrap to
// these.
var (
	ErrInvalidContext    = errors.New("invalid request context")
	ErrAccountLocked     = errors.New("account locked")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrReauthRequired    = errors.New("reauthentication required")
	ErrSessionTerminated = errors.New("session terminated")
)

// ErrSessionHijacked marks terminations caused by hijack evidence. A
// hijack always ends the session, so it also matches
// ErrSessionTerminated.
var ErrSessionHijacked = fmt.Errorf("%w: hijacked", ErrSessionTerminated)

// ErrRefreshReused reports a refresh token that failed verification on a
// live session. The usual cause is replay of an already-consumed token,
// so it also matches ErrInvalidToken.
var ErrRefreshReused = fmt.Errorf("%w: refresh token already used", ErrInvalidToken)

// InvalidContextError reports which creation field failed validation.
type InvalidContextError struct {
	Field  string
	Reason string
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("invalid request context: %s: %s", e.Field, e.Reason)
}

func (e *InvalidContextError) Unwrap() error { return ErrInvalidContext }

// TerminatedError reports that a session ended and why. Returned once
// for the first access after termination; later accesses see
// ErrInvalidToken because the token index entry is gone.
type TerminatedError struct {
	SessionID string
	Reason    string
	RiskScore float64
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("session %s terminated: %s (risk %.1f)", e.SessionID, e.Reason, e.RiskScore)
}

func (e *TerminatedError) Unwrap() error { return ErrSessionTerminated }

// ImpossibleTravelError reports two requests whose locations cannot be
// reached at human travel speed within the elapsed window.
type ImpossibleTravelError struct {
	SessionID  string
	DistanceKm float64
	SpeedKmh   float64
	Window     time.Duration
}

func (e *ImpossibleTravelError) Error() string {
	return fmt.Sprintf("impossible travel on session %s: %.0f km in %s (%.0f km/h)",
		e.SessionID, e.DistanceKm, e.Window, e.SpeedKmh)
}

func (e *ImpossibleTravelError) Unwrap() error { return ErrSessionHijacked }
