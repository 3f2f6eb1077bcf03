package validation

import (
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
)

// concurrencyCheck watches the user's whole session population. Many
// live sessions from one address is a power user; over the cap from
// several addresses looks like a shared or stolen credential and forces
// reauthentication.
type concurrencyCheck struct {
	maxConcurrent int
}

var _ Check = (*concurrencyCheck)(nil)

func (c *concurrencyCheck) Name() string { return "concurrency" }

func (c *concurrencyCheck) Evaluate(in *Input) []Verdict {
	total := len(in.Peers) + 1
	if total <= c.maxConcurrent {
		return nil
	}
	addrs := map[string]struct{}{in.Context.IP: {}}
	for _, p := range in.Peers {
		addrs[p.IP] = struct{}{}
	}
	if len(addrs) <= 1 {
		return nil
	}
	return []Verdict{{
		Check:       c.Name(),
		Indicator:   IndicatorConcurrencyAbuse,
		RiskDelta:   risk.DeltaConcurrency,
		ForceReauth: true,
	}}
}
