package risk

import "context"

// EscalationInput carries the assessment facts exposed to operator-defined
// escalation rules.
type EscalationInput struct {
	RiskScore         float64
	Indicators        []string
	SecurityLevel     string
	State             string
	SessionType       string
	SessionAgeMinutes float64
	RequestCount      int64
}

// Escalator decides whether the graduated response should be raised one
// step beyond what the score alone selects. Rules can raise the response,
// never lower it.
type Escalator interface {
	// ShouldEscalate returns true and the matching rule name when any
	// rule fires for this assessment.
	ShouldEscalate(ctx context.Context, in EscalationInput) (bool, string, error)
}

// Escalate raises an action one step. Terminate is the ceiling.
func Escalate(a Action) Action {
	switch a {
	case ActionNone:
		return ActionMonitor
	case ActionMonitor:
		return ActionReauth
	case ActionReauth:
		return ActionTerminate
	default:
		return ActionTerminate
	}
}
