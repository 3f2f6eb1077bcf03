package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/validation"
)

var errRotationSkipped = errors.New("rotation skipped")

// MaintenanceConfig tunes the background sweeps.
type MaintenanceConfig struct {
	// CleanupInterval is the time between cleanup sweeps.
	CleanupInterval time.Duration
	// RotationInterval is the time between key rotation sweeps.
	RotationInterval time.Duration
	// KeyMaxAge is how old a session's key material may grow before the
	// rotation sweep re-keys it. Refreshes reset the age.
	KeyMaxAge time.Duration
}

func (c MaintenanceConfig) withDefaults() MaintenanceConfig {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = 10 * time.Minute
	}
	if c.KeyMaxAge <= 0 {
		c.KeyMaxAge = 4 * time.Hour
	}
	return c
}

// MaintenanceService owns the background hygiene of the session set:
// the cleanup sweep that retires dead sessions and the rotation sweep
// that re-keys long-lived ones. It shares the lifecycle service's
// collaborators so swept sessions get the same forensics, history, and
// event treatment as inline terminations. Sweeps snapshot candidate ids
// under a brief store lock and then work each session under its own
// entry lock.
type MaintenanceService struct {
	lifecycle *LifecycleService
	sessions  session.Store
	events    *Dispatcher
	logger    *slog.Logger
	cfg       MaintenanceConfig
	now       func() time.Time
	strategy  session.KeyStrategy

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// MaintenanceOption configures the scheduler.
type MaintenanceOption func(*MaintenanceService)

// WithMaintenanceConfig overrides the sweep intervals and key age.
func WithMaintenanceConfig(cfg MaintenanceConfig) MaintenanceOption {
	return func(s *MaintenanceService) { s.cfg = cfg }
}

// NewMaintenanceService creates the scheduler bound to a lifecycle
// service, inheriting its store, dispatcher, metrics, clock, and key
// strategy.
func NewMaintenanceService(lifecycle *LifecycleService, logger *slog.Logger, opts ...MaintenanceOption) *MaintenanceService {
	s := &MaintenanceService{
		lifecycle: lifecycle,
		sessions:  lifecycle.sessions,
		events:    lifecycle.events,
		logger:    logger,
		now:       lifecycle.now,
		strategy:  lifecycle.strategy,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	return s
}

// Start launches the cleanup and rotation loops.
func (s *MaintenanceService) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, s.cfg.CleanupInterval, "cleanup", s.RunCleanupOnce)
	go s.loop(ctx, s.cfg.RotationInterval, "rotation", s.RunRotationOnce)
}

func (s *MaintenanceService) loop(ctx context.Context, interval time.Duration, kind string, pass func(context.Context) (int, error)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := pass(ctx); err != nil {
				s.logger.Error("maintenance pass failed", "kind", kind, "error", err)
			}
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop halts both loops and waits for in-flight sweeps. Safe to call
// multiple times.
func (s *MaintenanceService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// RunCleanupOnce sweeps the live set once, ending every session that is
// expired, idle past its adaptive window, over its lifetime budget, or
// carrying terminal risk. Returns the number of sessions ended.
func (s *MaintenanceService) RunCleanupOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer s.observeSweep("cleanup", start)

	ids, err := s.sessions.SnapshotIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot session ids: %w", err)
	}

	now := s.now()
	ended := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ended, ctx.Err()
		}
		snap, err := s.sessions.Get(ctx, id)
		if err != nil {
			continue
		}
		state, reason, done := s.cleanupVerdict(snap, now)
		if !done {
			continue
		}
		if final := s.lifecycle.endSession(ctx, id, state, reason, snap.RiskScore, nil, now); final != nil {
			ended++
		}
	}

	if ended > 0 {
		s.logger.Info("cleanup sweep complete", "scanned", len(ids), "ended", ended)
	}
	return ended, nil
}

// cleanupVerdict decides whether a session must leave service, using
// the same budgets the validation pipeline enforces inline.
func (s *MaintenanceService) cleanupVerdict(snap *session.Session, now time.Time) (session.State, string, bool) {
	v := s.lifecycle.cfg.Validation
	switch {
	case snap.ExpiredAt(now):
		return session.StateExpired, validation.ReasonExpired, true
	case snap.Age(now) > v.MaxLifetime:
		return session.StateExpired, validation.ReasonMaxDuration, true
	case snap.IdleFor(now) > risk.AdaptiveIdle(v.MaxIdle, snap.RiskScore):
		return session.StateExpired, validation.ReasonIdleTimeout, true
	case risk.Decide(snap.RiskScore) == risk.ActionTerminate:
		return session.StateTerminated, ReasonRiskExceeded, true
	}
	return "", "", false
}

// RunRotationOnce re-keys every session whose key material is older
// than the rotation age. Bearer and refresh credentials are untouched;
// only the internal encryption, signing, and enhanced material turn
// over. Returns the number of sessions rotated.
func (s *MaintenanceService) RunRotationOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer s.observeSweep("rotation", start)

	ids, err := s.sessions.SnapshotIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot session ids: %w", err)
	}

	now := s.now()
	rotated := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return rotated, ctx.Err()
		}
		snap, err := s.sessions.Get(ctx, id)
		if err != nil || snap.Keys == nil {
			continue
		}
		if now.Sub(snap.Keys.RotatedAt) < s.cfg.KeyMaxAge {
			continue
		}

		updated, err := s.sessions.Update(ctx, id, func(live *session.Session) error {
			if live.Keys == nil || live.Keys.Wiped() {
				return errRotationSkipped
			}
			// A refresh may have re-keyed between the snapshot and now.
			if now.Sub(live.Keys.RotatedAt) < s.cfg.KeyMaxAge {
				return errRotationSkipped
			}
			return live.Keys.Rotate(s.strategy, now)
		})
		if err != nil {
			if !errors.Is(err, errRotationSkipped) && !errors.Is(err, session.ErrSessionNotFound) {
				s.logger.Warn("key rotation failed", "session_id", id, "error", err)
			}
			continue
		}

		rotated++
		if m := s.lifecycle.metrics; m != nil {
			m.KeyRotationsTotal.Inc()
		}
		s.emitRotation(updated)
		s.logger.Debug("session keys rotated",
			"session_id", id,
			"rotation_count", updated.Keys.RotationCount)
	}

	if rotated > 0 {
		s.logger.Info("rotation sweep complete", "scanned", len(ids), "rotated", rotated)
	}
	return rotated, nil
}

func (s *MaintenanceService) emitRotation(snap *session.Session) {
	if s.events == nil {
		return
	}
	s.events.Emit(event.Record{
		Type:      event.TypeKeyRotated,
		SessionID: snap.ID,
		UserID:    snap.UserID,
		Detail: map[string]interface{}{
			"rotation_count": snap.Keys.RotationCount,
			"strategy":       snap.Keys.Strategy,
		},
	})
}

func (s *MaintenanceService) observeSweep(kind string, start time.Time) {
	if m := s.lifecycle.metrics; m != nil {
		m.MaintenanceSweep.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
