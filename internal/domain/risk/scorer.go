// Package risk turns validation indicators into a bounded score and
// maps score bands to graduated responses.
package risk

import (
	"time"
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Category deltas. Each corroborated indicator category contributes its
// delta once per assessment; indicators outside the known categories
// contribute DeltaOther each.
const (
	DeltaDeviceChange    = 20.0
	DeltaIPChange        = 15.0
	DeltaGeoMismatch     = 25.0
	DeltaBehaviorAnomaly = 30.0
	DeltaConcurrency     = 10.0
	DeltaOther           = 10.0
)

// DefaultDecayPerMinute is the score decay applied for quiet time
// between assessments.
const DefaultDecayPerMinute = 0.5

// Scorer accumulates risk deltas with linear time decay. The zero value
// is not usable; construct with NewScorer.
type Scorer struct {
	decayPerMinute float64
}

// NewScorer returns a scorer with the given linear decay rate. Negative
// rates fall back to the default; zero disables decay.
func NewScorer(decayPerMinute float64) *Scorer {
	if decayPerMinute < 0 {
		decayPerMinute = DefaultDecayPerMinute
	}
	return &Scorer{decayPerMinute: decayPerMinute}
}

// Decay returns the score reduction earned by elapsed quiet time.
func (s *Scorer) Decay(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return elapsed.Minutes() * s.decayPerMinute
}

// Apply folds the assessment deltas and the decay for the elapsed time
// since the previous assessment into prev, clamped to [MinScore,
// MaxScore].
func (s *Scorer) Apply(prev float64, deltas []float64, elapsed time.Duration) float64 {
	next := prev - s.Decay(elapsed)
	for _, d := range deltas {
		next += d
	}
	return Clamp(next)
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// AdaptiveIdle shrinks the idle budget as risk grows: a clean session
// keeps the full budget, a session at the termination band keeps almost
// none.
func AdaptiveIdle(maxIdle time.Duration, score float64) time.Duration {
	frac := 1 - Clamp(score)/MaxScore
	return time.Duration(float64(maxIdle) * frac)
}
