package validation

import (
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// expiryCheck enforces the time budgets: absolute expiry, total
// lifetime, and an idle window that shrinks as the session's risk
// grows. It runs before every other check and its verdicts are
// terminal.
type expiryCheck struct {
	maxIdle     time.Duration
	maxLifetime time.Duration
}

var _ Check = (*expiryCheck)(nil)

func (c *expiryCheck) Name() string { return "expiry" }

func (c *expiryCheck) Evaluate(in *Input) []Verdict {
	s := in.Session
	if s.ExpiredAt(in.Now) {
		return []Verdict{{Check: c.Name(), EndState: session.StateExpired, EndReason: ReasonExpired}}
	}
	if s.Age(in.Now) > c.maxLifetime {
		return []Verdict{{Check: c.Name(), EndState: session.StateExpired, EndReason: ReasonMaxDuration}}
	}
	if s.IdleFor(in.Now) > risk.AdaptiveIdle(c.maxIdle, s.RiskScore) {
		return []Verdict{{Check: c.Name(), EndState: session.StateExpired, EndReason: ReasonIdleTimeout}}
	}
	return nil
}
