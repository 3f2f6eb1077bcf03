// Package validation runs the per-request security checks. Checks are
// pure: they read the session and the incoming request and report
// verdicts; folding verdicts into session state is the caller's job,
// under the store's entry lock.
package validation

import (
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/device"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// Indicators raised by the pipeline. Behavioral findings from the async
// profiler use their own lower-case flag names.
const (
	IndicatorDeviceChange     = "DEVICE_CHANGE"
	IndicatorLocationAnomaly  = "LOCATION_ANOMALY"
	IndicatorGeoMismatch      = "GEO_MISMATCH"
	IndicatorImpossibleTravel = "IMPOSSIBLE_TRAVEL"
	IndicatorBehaviorAnomaly  = "BEHAVIOR_ANOMALY"
	IndicatorOffHours         = "OFF_HOURS_ACCESS"
	IndicatorConcurrencyAbuse = "CONCURRENT_SESSION_ABUSE"
)

// End reasons for terminal verdicts.
const (
	ReasonExpired          = "expired"
	ReasonIdleTimeout      = "idle_timeout"
	ReasonMaxDuration      = "max_duration_exceeded"
	ReasonImpossibleTravel = "impossible_travel"
)

// PeerSession is the summary of another active session of the same user,
// used by the concurrency check.
type PeerSession struct {
	ID             string
	IP             string
	LastAccessedAt time.Time
}

// Input is everything a pipeline run may consult. Session is the live
// entry; checks must not mutate it.
type Input struct {
	Session  *session.Session
	Context  *session.RequestContext
	Now      time.Time
	Binding  *device.Binding
	Baseline *behavior.Baseline
	Peers    []PeerSession
}

// Gap returns the time since the session's last validated request.
func (in *Input) Gap() time.Duration {
	return in.Now.Sub(in.Session.LastAccessedAt)
}

// Verdict is one check's conclusion. A non-empty EndState is terminal:
// the session must leave service in that state and the run stops.
type Verdict struct {
	Check       string
	Indicator   string
	RiskDelta   float64
	ForceReauth bool
	EndState    session.State
	EndReason   string
	Err         error
}

// Check inspects one aspect of a request against the session.
type Check interface {
	Name() string
	Evaluate(in *Input) []Verdict
}

// Outcome aggregates a pipeline run.
type Outcome struct {
	Verdicts    []Verdict
	Indicators  []string
	RiskDeltas  []float64
	ForceReauth bool
	EndState    session.State
	EndReason   string
	Err         error
}

// Ended reports whether the run concluded the session must end.
func (o *Outcome) Ended() bool {
	return o.EndState != ""
}

// Config carries the pipeline thresholds. Zero values take defaults.
type Config struct {
	MaxIdle               time.Duration
	MaxLifetime           time.Duration
	DeviceFlagBelow       float64
	DeviceReauthBelow     float64
	MaxTravelSpeedKmh     float64
	MinBaselineConfidence float64
	AnomalyThreshold      float64
	MaxConcurrent         int
}

// WithDefaults returns the config with zero values resolved. Callers
// that need the effective thresholds outside a Pipeline use this too.
func (c Config) WithDefaults() Config {
	if c.MaxIdle <= 0 {
		c.MaxIdle = 2 * time.Hour
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 24 * time.Hour
	}
	if c.DeviceFlagBelow <= 0 {
		c.DeviceFlagBelow = 0.8
	}
	if c.DeviceReauthBelow <= 0 {
		c.DeviceReauthBelow = 0.2
	}
	if c.MaxTravelSpeedKmh <= 0 {
		c.MaxTravelSpeedKmh = 1000
	}
	if c.MinBaselineConfidence <= 0 {
		c.MinBaselineConfidence = 0.3
	}
	if c.AnomalyThreshold <= 0 {
		c.AnomalyThreshold = 0.8
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	return c
}

// Pipeline runs the checks in order. Expiry runs first and is
// authoritative; terminal verdicts stop the run.
type Pipeline struct {
	checks []Check
}

// NewPipeline builds the standard check sequence for cfg.
func NewPipeline(cfg Config) *Pipeline {
	cfg = cfg.WithDefaults()
	return &Pipeline{checks: []Check{
		&expiryCheck{maxIdle: cfg.MaxIdle, maxLifetime: cfg.MaxLifetime},
		&deviceCheck{flagBelow: cfg.DeviceFlagBelow, reauthBelow: cfg.DeviceReauthBelow},
		&ipCheck{},
		&geoCheck{maxSpeedKmh: cfg.MaxTravelSpeedKmh},
		&behaviorCheck{minConfidence: cfg.MinBaselineConfidence, threshold: cfg.AnomalyThreshold},
		&timeCheck{minConfidence: cfg.MinBaselineConfidence},
		&concurrencyCheck{maxConcurrent: cfg.MaxConcurrent},
	}}
}

// Run evaluates the checks against in.
func (p *Pipeline) Run(in *Input) *Outcome {
	out := &Outcome{}
	for _, c := range p.checks {
		for _, v := range c.Evaluate(in) {
			out.Verdicts = append(out.Verdicts, v)
			if v.Indicator != "" {
				out.Indicators = append(out.Indicators, v.Indicator)
			}
			if v.RiskDelta != 0 {
				out.RiskDeltas = append(out.RiskDeltas, v.RiskDelta)
			}
			if v.ForceReauth {
				out.ForceReauth = true
			}
			if v.EndState != "" {
				out.EndState = v.EndState
				out.EndReason = v.EndReason
				out.Err = v.Err
				return out
			}
		}
	}
	return out
}
