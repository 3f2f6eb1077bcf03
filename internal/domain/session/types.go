// Package session contains the session entity, its key material, and the
// store contracts the lifecycle engine is built on.
package session

import (
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
)

// Type classifies the client class a session was created for.
type Type string

const (
	TypeWeb     Type = "web"
	TypeAPI     Type = "api"
	TypeMobile  Type = "mobile"
	TypeDesktop Type = "desktop"
	TypeService Type = "service"
)

// ParseType returns the session type for s, defaulting to web for
// unknown values.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeAPI, TypeMobile, TypeDesktop, TypeService:
		return Type(s)
	default:
		return TypeWeb
	}
}

// State is the lifecycle state of a session. Transitions are
// one-directional: once a session leaves Active it never returns, and
// Terminated/Expired are absorbing.
type State string

const (
	StateActive     State = "active"
	StateSuspended  State = "suspended"
	StateAnomalous  State = "anomalous"
	StateHijacked   State = "hijacked"
	StateTerminated State = "terminated"
	StateExpired    State = "expired"
)

// validTransitions encodes the one-directional state machine. Hijack
// evidence dominates, so the intermediate states may still escalate to
// Hijacked before terminating.
var validTransitions = map[State]map[State]bool{
	StateActive:     {StateSuspended: true, StateAnomalous: true, StateHijacked: true, StateTerminated: true, StateExpired: true},
	StateSuspended:  {StateHijacked: true, StateTerminated: true, StateExpired: true},
	StateAnomalous:  {StateHijacked: true, StateTerminated: true, StateExpired: true},
	StateHijacked:   {StateTerminated: true},
	StateTerminated: {},
	StateExpired:    {},
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next.
func (s State) CanTransitionTo(next State) bool {
	return validTransitions[s][next]
}

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateExpired
}

// SecurityLevel is the ordinal protection tier of a session.
type SecurityLevel string

const (
	LevelLow      SecurityLevel = "low"
	LevelMedium   SecurityLevel = "medium"
	LevelHigh     SecurityLevel = "high"
	LevelCritical SecurityLevel = "critical"
	LevelQuantum  SecurityLevel = "quantum"
)

var levelOrder = []SecurityLevel{LevelLow, LevelMedium, LevelHigh, LevelCritical, LevelQuantum}

// Rank returns the ordinal position of the level, with unknown levels
// ranking below Low.
func (l SecurityLevel) Rank() int {
	for i, level := range levelOrder {
		if level == l {
			return i
		}
	}
	return -1
}

// AtLeast reports whether l ranks at or above other.
func (l SecurityLevel) AtLeast(other SecurityLevel) bool {
	return l.Rank() >= other.Rank()
}

// Raise returns the level raised by steps, clamped at Critical. Quantum
// is never reached by raising; it is assigned only when the key strategy
// provides post-quantum material.
func (l SecurityLevel) Raise(steps int) SecurityLevel {
	if l == LevelQuantum {
		return l
	}
	rank := l.Rank()
	if rank < 0 {
		rank = LevelMedium.Rank()
	}
	rank += steps
	if max := LevelCritical.Rank(); rank > max {
		rank = max
	}
	if rank < 0 {
		rank = 0
	}
	return levelOrder[rank]
}

// Flags carries the graduated-response markers on a session.
type Flags struct {
	RequiresReauth bool `json:"requires_reauth"`
	Suspicious     bool `json:"suspicious"`
	Monitored      bool `json:"monitored"`
}

// PendingFinding is a behavioral finding queued by the async profiler,
// folded into the session's next validation.
type PendingFinding struct {
	Indicator  string    `json:"indicator"`
	RiskDelta  float64   `json:"risk_delta"`
	ObservedAt time.Time `json:"observed_at"`
}

// maxTrackedEndpoints bounds the visited-endpoint set per session.
const maxTrackedEndpoints = 512

// Session is a bounded-lifetime authorization context bound to a user, a
// device, and a key set. Mutable fields are serialized by the owning
// store's per-entry lock; code outside the store only ever sees copies.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Type   Type   `json:"type"`

	// Role and MFAEnabled are preserved across regeneration.
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`

	State         State         `json:"state"`
	SecurityLevel SecurityLevel `json:"security_level"`
	RiskScore     float64       `json:"risk_score"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	Keys    *KeySet        `json:"keys,omitempty"`
	Context RequestContext `json:"context"`

	BindingID  string `json:"binding_id"`
	BaselineID string `json:"baseline_id"`

	RequestCount int64               `json:"request_count"`
	Endpoints    map[string]struct{} `json:"-"`

	Flags           Flags            `json:"flags"`
	Indicators      []string         `json:"indicators,omitempty"`
	PendingFindings []PendingFinding `json:"-"`

	Activity *behavior.Ring `json:"-"`

	TerminationReason string `json:"termination_reason,omitempty"`
}

// Transition moves the session to next if the state machine permits it.
func (s *Session) Transition(next State) bool {
	if !s.State.CanTransitionTo(next) {
		return false
	}
	s.State = next
	return true
}

// Age returns how long the session has existed.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// IdleFor returns how long the session has gone without a validated
// request.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastAccessedAt)
}

// ExpiredAt reports whether the absolute expiry has passed.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MarkAccessed records a validated request at now.
func (s *Session) MarkAccessed(now time.Time) {
	s.LastAccessedAt = now
	s.RequestCount++
}

// TrackEndpoint adds the path to the visited-endpoint set, bounded so a
// crawling session cannot grow the set without limit.
func (s *Session) TrackEndpoint(path string) {
	if path == "" {
		return
	}
	if s.Endpoints == nil {
		s.Endpoints = make(map[string]struct{})
	}
	if len(s.Endpoints) >= maxTrackedEndpoints {
		return
	}
	s.Endpoints[path] = struct{}{}
}

// TakeFindings removes and returns the queued behavioral findings.
func (s *Session) TakeFindings() []PendingFinding {
	findings := s.PendingFindings
	s.PendingFindings = nil
	return findings
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	if s.Keys != nil {
		cp.Keys = s.Keys.Clone()
	}
	if s.Endpoints != nil {
		cp.Endpoints = make(map[string]struct{}, len(s.Endpoints))
		for k := range s.Endpoints {
			cp.Endpoints[k] = struct{}{}
		}
	}
	if s.Indicators != nil {
		cp.Indicators = append([]string(nil), s.Indicators...)
	}
	if s.PendingFindings != nil {
		cp.PendingFindings = append([]PendingFinding(nil), s.PendingFindings...)
	}
	if s.Activity != nil {
		cp.Activity = s.Activity.Clone()
	}
	if s.Context.Location != nil {
		loc := *s.Context.Location
		cp.Context.Location = &loc
	}
	return &cp
}
