package risk

import (
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// Action is the graduated response selected for a score.
type Action string

const (
	ActionNone      Action = "none"
	ActionMonitor   Action = "monitor"
	ActionReauth    Action = "reauth"
	ActionTerminate Action = "terminate"
)

// Band thresholds. Bands are open at the bottom: a score sitting exactly
// on a threshold stays in the lower band.
const (
	MonitorThreshold   = 60.0
	ReauthThreshold    = 80.0
	TerminateThreshold = 95.0
)

// Decide maps a score to its response band.
func Decide(score float64) Action {
	switch {
	case score > TerminateThreshold:
		return ActionTerminate
	case score > ReauthThreshold:
		return ActionReauth
	case score > MonitorThreshold:
		return ActionMonitor
	default:
		return ActionNone
	}
}

// LevelFor assigns the initial security level of a session. Service
// clients and MFA-verified users start High, admins Critical. Quantum is
// reserved for Critical sessions whose key strategy actually provides
// post-quantum material.
func LevelFor(role string, mfaEnabled bool, t session.Type, postQuantum bool) session.SecurityLevel {
	level := session.LevelMedium
	raise := func(to session.SecurityLevel) {
		if !level.AtLeast(to) {
			level = to
		}
	}
	if t == session.TypeService {
		raise(session.LevelHigh)
	}
	if mfaEnabled {
		raise(session.LevelHigh)
	}
	if role == session.RoleAdmin {
		raise(session.LevelCritical)
	}
	if postQuantum && level.AtLeast(session.LevelCritical) {
		return session.LevelQuantum
	}
	return level
}
