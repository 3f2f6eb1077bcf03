package behavior

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Behavioral flags raised by the async analysis pass. They surface as
// threat indicators on the owning session's next validation.
const (
	FlagImpossibleHumanTiming = "impossible_human_timing"
	FlagBotTimingConsistency  = "bot_timing_consistency"
	FlagRapidFire             = "rapid_fire"
	FlagSequentialCrawling    = "sequential_crawling"
	FlagBreadthEnumeration    = "breadth_enumeration"
	FlagAPIEnumeration        = "api_enumeration"
	FlagBulkAccess            = "bulk_access"
	FlagSensitiveAccess       = "sensitive_access"
)

// minTimingSamples is the minimum number of gap samples before timing
// detectors fire.
const minTimingSamples = 10

// AnalysisConfig tunes the async anomaly detectors.
type AnalysisConfig struct {
	// ImpossibleGap is the request gap below which timing is considered
	// impossible for a human.
	ImpossibleGap time.Duration
	// RapidFireGap is the request gap below which requests count as
	// rapid-fire.
	RapidFireGap time.Duration
	// BotMeanGap is the mean gap below which, combined with low variance,
	// timing is considered scripted.
	BotMeanGap time.Duration
	// BotVarianceMaxMs2 is the variance ceiling (ms^2) for the scripted
	// timing detector.
	BotVarianceMaxMs2 float64
	// BulkAccessPaths is the distinct path count in the window that
	// qualifies as bulk access.
	BulkAccessPaths int
	// SensitivePrefixes are path prefixes counted as sensitive endpoints.
	SensitivePrefixes []string
}

// DefaultAnalysisConfig returns the analyzer tuning used in production.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ImpossibleGap:     50 * time.Millisecond,
		RapidFireGap:      500 * time.Millisecond,
		BotMeanGap:        time.Second,
		BotVarianceMaxMs2: 10000, // stddev under 100ms
		BulkAccessPaths:   50,
		SensitivePrefixes: []string{"/api/admin", "/api/export", "/api/security"},
	}
}

// Findings is the result of one analysis pass over a session's recent
// activity.
type Findings struct {
	Flags           []string `json:"flags"`
	TimingScore     float64  `json:"timing_score"`
	NavigationScore float64  `json:"navigation_score"`
	DataAccessScore float64  `json:"data_access_score"`
	// RiskDelta is the behavioral-anomaly risk contribution folded into
	// the session's next validation.
	RiskDelta float64 `json:"risk_delta"`
	SampleLen int     `json:"sample_len"`
}

// Anomalous reports whether the pass raised any flag.
func (f Findings) Anomalous() bool { return len(f.Flags) > 0 }

// Analyze runs the timing, navigation, and data-access detectors over a
// chronological activity window. It is a pure function of its inputs.
func Analyze(records []Record, cfg AnalysisConfig) Findings {
	f := Findings{SampleLen: len(records)}
	if len(records) == 0 {
		return f
	}

	f.TimingScore = analyzeTiming(records, cfg, &f)
	f.NavigationScore = analyzeNavigation(records, &f)
	f.DataAccessScore = analyzeDataAccess(records, cfg, &f)

	for _, flag := range f.Flags {
		if flag == FlagImpossibleHumanTiming || flag == FlagBotTimingConsistency {
			f.RiskDelta = 30
			break
		}
	}
	return f
}

func analyzeTiming(records []Record, cfg AnalysisConfig, f *Findings) float64 {
	var gaps []float64
	impossible, rapid := 0, 0
	for _, r := range records {
		if r.Gap <= 0 {
			continue
		}
		ms := float64(r.Gap.Milliseconds())
		gaps = append(gaps, ms)
		if r.Gap < cfg.ImpossibleGap {
			impossible++
		}
		if r.Gap < cfg.RapidFireGap {
			rapid++
		}
	}
	if len(gaps) < minTimingSamples {
		return 0
	}

	impossibleRatio := float64(impossible) / float64(len(gaps))
	rapidRatio := float64(rapid) / float64(len(gaps))

	mean, variance := meanVariance(gaps)
	botScore := 0.0
	if mean < float64(cfg.BotMeanGap.Milliseconds()) && variance < cfg.BotVarianceMaxMs2 {
		botScore = 1
	}

	if impossibleRatio >= 0.5 {
		f.Flags = append(f.Flags, FlagImpossibleHumanTiming)
	}
	if botScore == 1 {
		f.Flags = append(f.Flags, FlagBotTimingConsistency)
	}
	if rapidRatio >= 0.7 {
		f.Flags = append(f.Flags, FlagRapidFire)
	}

	return math.Max(impossibleRatio, math.Max(rapidRatio, botScore))
}

func analyzeNavigation(records []Record, f *Findings) float64 {
	if len(records) < minTimingSamples {
		return 0
	}

	distinct := make(map[string]struct{}, len(records))
	apiPaths := 0
	sequential := 0
	for i, r := range records {
		distinct[r.Path] = struct{}{}
		if strings.HasPrefix(r.Path, "/api/") {
			apiPaths++
		}
		if i == 0 {
			continue
		}
		if prevBase, prevN, ok1 := splitTrailingInt(records[i-1].Path); ok1 {
			if base, n, ok2 := splitTrailingInt(r.Path); ok2 && base == prevBase && n == prevN+1 {
				sequential++
			}
		}
	}

	seqRatio := float64(sequential) / float64(len(records)-1)
	distinctRatio := float64(len(distinct)) / float64(len(records))
	apiRatio := float64(apiPaths) / float64(len(records))

	if seqRatio >= 0.6 {
		f.Flags = append(f.Flags, FlagSequentialCrawling)
	}
	if distinctRatio >= 0.9 && len(records) >= 20 && seqRatio < 0.6 {
		f.Flags = append(f.Flags, FlagBreadthEnumeration)
	}
	if apiRatio >= 0.8 && distinctRatio >= 0.8 {
		f.Flags = append(f.Flags, FlagAPIEnumeration)
	}

	return math.Max(seqRatio, math.Max(distinctRatio*apiRatio, distinctRatio-0.5))
}

func analyzeDataAccess(records []Record, cfg AnalysisConfig, f *Findings) float64 {
	distinct := make(map[string]struct{}, len(records))
	sensitive := 0
	for _, r := range records {
		distinct[r.Path] = struct{}{}
		for _, prefix := range cfg.SensitivePrefixes {
			if strings.HasPrefix(r.Path, prefix) {
				sensitive++
				break
			}
		}
	}

	bulkRatio := 0.0
	if cfg.BulkAccessPaths > 0 {
		bulkRatio = math.Min(1, float64(len(distinct))/float64(cfg.BulkAccessPaths))
	}
	sensitiveRatio := float64(sensitive) / float64(len(records))

	if cfg.BulkAccessPaths > 0 && len(distinct) >= cfg.BulkAccessPaths {
		f.Flags = append(f.Flags, FlagBulkAccess)
	}
	if sensitive >= 3 {
		f.Flags = append(f.Flags, FlagSensitiveAccess)
	}

	return math.Max(bulkRatio, sensitiveRatio)
}

// AnomalyScore compares a single request's cadence and hour against the
// user's baseline, returning a score in [0, 1]. Used by the validation
// hot path; callers should skip it when baseline confidence is low.
func AnomalyScore(b *Baseline, gap time.Duration, hour int) float64 {
	if b == nil {
		return 0
	}
	gapMs := float64(gap.Milliseconds())
	stddev := math.Sqrt(b.VarianceGapMs)
	timing := math.Abs(gapMs-b.MeanGapMs) / (3*stddev + 1000)
	if timing > 1 {
		timing = 1
	}

	rarity := 0.0
	if peak := b.peakHourProbability(); peak > 0 {
		rarity = 1 - b.HourProbability(hour)/peak
	}

	return 0.6*timing + 0.4*rarity
}

func meanVariance(values []float64) (mean, variance float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, variance
}

// splitTrailingInt splits a path into its base and a trailing integer
// segment, e.g. "/api/posts/41" -> ("/api/posts/", 41, true).
func splitTrailingInt(path string) (string, int, bool) {
	i := len(path)
	for i > 0 && path[i-1] >= '0' && path[i-1] <= '9' {
		i--
	}
	if i == len(path) || i == 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(path[i:])
	if err != nil {
		return "", 0, false
	}
	return path[:i], n, true
}
