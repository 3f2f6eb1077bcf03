package behavior

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var ErrBaselineNotFound = errors.New("behavioral baseline not found")

// confidenceSamples is the sample count at which a baseline reaches full
// confidence.
const confidenceSamples = 100

// priorSamples is the sample weight a fresh baseline starts with, giving
// new users an initial confidence of 0.1 instead of zero.
const priorSamples = 10

// Baseline is the per-user statistical profile of request timing and
// hour-of-day activity. It is read by the validation hot path and written
// only by the asynchronous analysis pass.
type Baseline struct {
	UserID        string    `json:"user_id"`
	SampleCount   int       `json:"sample_count"`
	MeanGapMs     float64   `json:"mean_gap_ms"`
	VarianceGapMs float64   `json:"variance_gap_ms"` // ms^2
	HourHistogram [24]int   `json:"hour_histogram"`
	LastUpdated   time.Time `json:"last_updated"`
}

// NewBaseline creates a baseline for a user with the initial prior weight.
func NewBaseline(userID string) *Baseline {
	return &Baseline{
		UserID:      userID,
		SampleCount: priorSamples,
		LastUpdated: time.Now().UTC(),
	}
}

// Confidence reports how much the baseline can be trusted, as
// min(1, samples/100).
func (b *Baseline) Confidence() float64 {
	c := float64(b.SampleCount) / confidenceSamples
	if c > 1 {
		return 1
	}
	return c
}

// ewmaAlpha is the smoothing factor for the exponential timing update.
const ewmaAlpha = 0.1

// Observe folds one request sample into the baseline. The first real
// observation seeds the mean directly; later observations update mean and
// variance exponentially so old habits fade rather than accumulate.
func (b *Baseline) Observe(gap time.Duration, hour int, now time.Time) {
	gapMs := float64(gap.Milliseconds())
	if b.MeanGapMs == 0 && b.VarianceGapMs == 0 {
		b.MeanGapMs = gapMs
	} else {
		d := gapMs - b.MeanGapMs
		b.MeanGapMs += ewmaAlpha * d
		b.VarianceGapMs = (1 - ewmaAlpha) * (b.VarianceGapMs + ewmaAlpha*d*d)
	}
	if hour >= 0 && hour < 24 {
		b.HourHistogram[hour]++
	}
	b.SampleCount++
	b.LastUpdated = now
}

// HourProbability returns the fraction of observed activity that fell in
// the given hour, or 0 when the histogram is empty.
func (b *Baseline) HourProbability(hour int) float64 {
	if hour < 0 || hour >= 24 {
		return 0
	}
	total := 0
	for _, n := range b.HourHistogram {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(b.HourHistogram[hour]) / float64(total)
}

// peakHourProbability returns the highest single-hour probability.
func (b *Baseline) peakHourProbability() float64 {
	total, peak := 0, 0
	for _, n := range b.HourHistogram {
		total += n
		if n > peak {
			peak = n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(peak) / float64(total)
}

// Clone returns an independent copy of the baseline.
func (b *Baseline) Clone() *Baseline {
	cp := *b
	return &cp
}

// Store persists baselines keyed by user id.
type Store interface {
	// Get returns a copy of the user's baseline or ErrBaselineNotFound.
	Get(ctx context.Context, userID string) (*Baseline, error)
	// Put stores the baseline, replacing any existing record.
	Put(ctx context.Context, b *Baseline) error
	// Remove deletes the user's baseline. Missing baselines are not an
	// error.
	Remove(ctx context.Context, userID string) error
}
