package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/telemetry"
)

// ProfileConfig tunes the background behavioral pass.
type ProfileConfig struct {
	// Interval between passes over the live session set.
	Interval time.Duration
	// Analysis parameterizes the activity-ring analysis.
	Analysis behavior.AnalysisConfig
}

func (c ProfileConfig) withDefaults() ProfileConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Analysis.ImpossibleGap <= 0 {
		c.Analysis = behavior.DefaultAnalysisConfig()
	}
	return c
}

// ProfileService runs the asynchronous behavioral pass: on a fixed
// interval it analyzes every live session's activity ring for timing,
// navigation, and data-access anomalies, queues findings on the session
// for the next validation to fold in, and feeds observed request
// cadence into the owning user's baseline. Validation itself never
// waits on any of this.
type ProfileService struct {
	sessions  session.Store
	baselines behavior.Store
	events    *Dispatcher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	cfg       ProfileConfig
	now       func() time.Time

	// progress tracks each session's request count at its last pass so
	// an idle session is not re-flagged for a ring that has not moved.
	mu       sync.Mutex
	progress map[string]int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ProfileOption configures optional profiler collaborators.
type ProfileOption func(*ProfileService)

// WithProfileConfig overrides the pass interval and analysis tuning.
func WithProfileConfig(cfg ProfileConfig) ProfileOption {
	return func(s *ProfileService) { s.cfg = cfg }
}

// WithProfileEvents wires the security event dispatcher.
func WithProfileEvents(d *Dispatcher) ProfileOption {
	return func(s *ProfileService) { s.events = d }
}

// WithProfileMetrics wires Prometheus metrics.
func WithProfileMetrics(m *telemetry.Metrics) ProfileOption {
	return func(s *ProfileService) { s.metrics = m }
}

// WithProfileClock overrides the time source.
func WithProfileClock(now func() time.Time) ProfileOption {
	return func(s *ProfileService) { s.now = now }
}

// NewProfileService creates the behavioral profiler.
func NewProfileService(
	sessions session.Store,
	baselines behavior.Store,
	logger *slog.Logger,
	opts ...ProfileOption,
) *ProfileService {
	s := &ProfileService{
		sessions:  sessions,
		baselines: baselines,
		logger:    logger,
		progress:  make(map[string]int64),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Start launches the periodic profiling loop.
func (s *ProfileService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *ProfileService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("behavior pass failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop halts the loop and waits for an in-flight pass to finish. Safe
// to call multiple times.
func (s *ProfileService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// RunOnce performs a single pass over all live sessions and returns the
// number of sessions that produced new findings.
func (s *ProfileService) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.MaintenanceSweep.WithLabelValues("profile").Observe(time.Since(start).Seconds())
		}
	}()

	ids, err := s.sessions.SnapshotIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot session ids: %w", err)
	}

	now := s.now()
	flagged := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}
		if s.profileSession(ctx, id, now) {
			flagged++
		}
	}
	s.pruneProgress(ids)

	if flagged > 0 {
		s.logger.Info("behavior pass complete", "sessions", len(ids), "flagged", flagged)
	}
	return flagged, nil
}

// profileSession analyzes one session and reports whether it produced
// findings.
func (s *ProfileService) profileSession(ctx context.Context, id string, now time.Time) bool {
	snap, err := s.sessions.Get(ctx, id)
	if err != nil {
		// Ended between the id snapshot and the read.
		return false
	}
	if snap.Activity == nil {
		return false
	}
	records := snap.Activity.Snapshot()
	if len(records) == 0 {
		return false
	}

	last, seen := s.progressFor(id)
	if seen && snap.RequestCount == last {
		return false
	}
	s.setProgress(id, snap.RequestCount)

	fresh := records
	if n := int(snap.RequestCount - last); seen && n < len(records) {
		fresh = records[len(records)-n:]
	}
	s.observeBaseline(ctx, snap.BaselineID, fresh, now)

	findings := behavior.Analyze(records, s.cfg.Analysis)
	if len(findings.Flags) == 0 {
		return false
	}
	if !s.queueFindings(ctx, id, findings, now) {
		return false
	}
	s.emitAnomaly(snap, findings)
	s.logger.Warn("behavioral anomaly detected",
		"session_id", id,
		"user_id", snap.UserID,
		"flags", findings.Flags,
		"risk_delta", findings.RiskDelta)
	return true
}

// queueFindings appends the pass's findings to the session for the next
// validation to fold in. The risk delta rides on the first flag; the
// rest are recorded as zero-weight indicators.
func (s *ProfileService) queueFindings(ctx context.Context, id string, f behavior.Findings, now time.Time) bool {
	pending := make([]session.PendingFinding, 0, len(f.Flags))
	for i, flag := range f.Flags {
		var delta float64
		if i == 0 {
			delta = f.RiskDelta
		}
		pending = append(pending, session.PendingFinding{
			Indicator:  flag,
			RiskDelta:  delta,
			ObservedAt: now,
		})
	}

	if _, err := s.sessions.Update(ctx, id, func(live *session.Session) error {
		live.PendingFindings = append(live.PendingFindings, pending...)
		return nil
	}); err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			s.logger.Warn("queue findings failed", "session_id", id, "error", err)
		}
		return false
	}
	return true
}

// observeBaseline folds the pass's fresh request samples into the
// user's long-term baseline.
func (s *ProfileService) observeBaseline(ctx context.Context, userID string, records []behavior.Record, now time.Time) {
	if userID == "" || len(records) == 0 {
		return
	}
	b, err := s.baselines.Get(ctx, userID)
	if errors.Is(err, behavior.ErrBaselineNotFound) {
		b = behavior.NewBaseline(userID)
	} else if err != nil {
		s.logger.Warn("baseline read failed", "user_id", userID, "error", err)
		return
	}

	for _, r := range records {
		if r.Gap <= 0 {
			continue
		}
		b.Observe(r.Gap, r.Timestamp.Hour(), now)
	}
	if err := s.baselines.Put(ctx, b); err != nil {
		s.logger.Warn("baseline write failed", "user_id", userID, "error", err)
	}
}

func (s *ProfileService) emitAnomaly(snap *session.Session, f behavior.Findings) {
	if s.events == nil {
		return
	}
	s.events.Emit(event.Record{
		Type:       event.TypeBehaviorAnomaly,
		SessionID:  snap.ID,
		UserID:     snap.UserID,
		SourceIP:   snap.Context.IP,
		RiskScore:  snap.RiskScore,
		Indicators: f.Flags,
		Detail: map[string]interface{}{
			"timing_score":      f.TimingScore,
			"navigation_score":  f.NavigationScore,
			"data_access_score": f.DataAccessScore,
			"sample_len":        f.SampleLen,
		},
	})
}

func (s *ProfileService) progressFor(id string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.progress[id]
	return n, ok
}

func (s *ProfileService) setProgress(id string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[id] = n
}

// pruneProgress drops tracking for sessions no longer live.
func (s *ProfileService) pruneProgress(live []string) {
	keep := make(map[string]struct{}, len(live))
	for _, id := range live {
		keep[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.progress {
		if _, ok := keep[id]; !ok {
			delete(s.progress, id)
		}
	}
}
