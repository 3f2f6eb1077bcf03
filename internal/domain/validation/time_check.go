package validation

// deltaOffHours is deliberately small: an unusual hour alone is a weak
// signal.
const deltaOffHours = 5.0

// timeCheck raises a soft signal when a request lands in an hour the
// user has never been seen active in. It never forces anything on its
// own.
type timeCheck struct {
	minConfidence float64
}

var _ Check = (*timeCheck)(nil)

func (c *timeCheck) Name() string { return "time_pattern" }

func (c *timeCheck) Evaluate(in *Input) []Verdict {
	b := in.Baseline
	if b == nil || b.Confidence() < c.minConfidence {
		return nil
	}
	if b.HourProbability(in.Now.Hour()) > 0 {
		return nil
	}
	return []Verdict{{
		Check:     c.Name(),
		Indicator: IndicatorOffHours,
		RiskDelta: deltaOffHours,
	}}
}
