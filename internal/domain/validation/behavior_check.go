package validation

import (
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
)

// behaviorCheck scores the request's timing against the user's learned
// baseline. Baselines below the confidence floor are still warming up
// and are not consulted.
type behaviorCheck struct {
	minConfidence float64
	threshold     float64
}

var _ Check = (*behaviorCheck)(nil)

func (c *behaviorCheck) Name() string { return "behavior_baseline" }

func (c *behaviorCheck) Evaluate(in *Input) []Verdict {
	b := in.Baseline
	if b == nil || b.Confidence() < c.minConfidence {
		return nil
	}
	score := behavior.AnomalyScore(b, in.Gap(), in.Now.Hour())
	if score <= c.threshold {
		return nil
	}
	return []Verdict{{
		Check:       c.Name(),
		Indicator:   IndicatorBehaviorAnomaly,
		RiskDelta:   risk.DeltaBehaviorAnomaly,
		ForceReauth: true,
	}}
}
