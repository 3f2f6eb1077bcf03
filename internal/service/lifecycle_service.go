// Package service contains the session engine's orchestration layer:
// the lifecycle authority, the async behavioral profiler, maintenance
// sweeps, and the security event dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/device"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/validation"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/port/inbound"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/port/outbound"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/telemetry"
)

// Termination reasons recorded on sessions the lifecycle ends itself.
const (
	ReasonEvicted       = "session_limit_exceeded"
	ReasonRiskExceeded  = "risk_threshold_exceeded"
	ReasonRegenerated   = "regenerated"
	ReasonUserRequested = "user_logout"
)

// activityRingSize bounds the per-session request window the profiler
// analyzes.
const activityRingSize = 256

// errValidationHalted aborts a store update without committing; the
// closure records why.
var errValidationHalted = errors.New("validation halted")

// LifecycleConfig carries the session policy knobs. Zero values take
// defaults.
type LifecycleConfig struct {
	// TokenTTL is the sliding expiry budget granted at creation and on
	// each refresh.
	TokenTTL time.Duration
	// MaxLifetime is the absolute budget from creation; refreshes never
	// extend past it.
	MaxLifetime time.Duration
	// MaxSessionsPerUser caps concurrent sessions; the least recently
	// used are evicted at the cap.
	MaxSessionsPerUser int
	// Validation tunes the per-request check pipeline.
	Validation validation.Config
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 8 * time.Hour
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 24 * time.Hour
	}
	if c.MaxSessionsPerUser <= 0 {
		c.MaxSessionsPerUser = 5
	}
	if c.Validation.MaxLifetime <= 0 {
		c.Validation.MaxLifetime = c.MaxLifetime
	}
	c.Validation = c.Validation.WithDefaults()
	return c
}

// LifecycleService implements the session lifecycle and continuous
// validation. All session mutation goes through the store's per-entry
// locking; the service itself holds no session state.
type LifecycleService struct {
	sessions  session.Store
	devices   device.Registry
	baselines behavior.Store
	accounts  outbound.AccountDirectory

	history   session.HistoryStore
	archive   session.ArchiveStore
	events    *Dispatcher
	geo       geo.Resolver
	escalator risk.Escalator

	pipeline *validation.Pipeline
	scorer   *risk.Scorer
	strategy session.KeyStrategy

	metrics *telemetry.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	cfg     LifecycleConfig
	now     func() time.Time
}

var _ inbound.SessionAuthority = (*LifecycleService)(nil)

// LifecycleOption configures optional collaborators of the service.
type LifecycleOption func(*LifecycleService)

// WithLifecycleConfig overrides the default session policy.
func WithLifecycleConfig(cfg LifecycleConfig) LifecycleOption {
	return func(s *LifecycleService) { s.cfg = cfg }
}

// WithHistoryStore records ended sessions to hs.
func WithHistoryStore(hs session.HistoryStore) LifecycleOption {
	return func(s *LifecycleService) { s.history = hs }
}

// WithArchiveStore preserves forensic snapshots of suspicious sessions.
func WithArchiveStore(as session.ArchiveStore) LifecycleOption {
	return func(s *LifecycleService) { s.archive = as }
}

// WithEventDispatcher emits security events through d.
func WithEventDispatcher(d *Dispatcher) LifecycleOption {
	return func(s *LifecycleService) { s.events = d }
}

// WithGeoResolver resolves request IPs that arrive without a location.
func WithGeoResolver(r geo.Resolver) LifecycleOption {
	return func(s *LifecycleService) { s.geo = r }
}

// WithEscalator consults operator rules that may raise the graduated
// response by one step.
func WithEscalator(e risk.Escalator) LifecycleOption {
	return func(s *LifecycleService) { s.escalator = e }
}

// WithKeyStrategy overrides the key material strategy.
func WithKeyStrategy(ks session.KeyStrategy) LifecycleOption {
	return func(s *LifecycleService) { s.strategy = ks }
}

// WithScorer overrides the risk scorer.
func WithScorer(sc *risk.Scorer) LifecycleOption {
	return func(s *LifecycleService) { s.scorer = sc }
}

// WithLifecycleMetrics records operation metrics to m.
func WithLifecycleMetrics(m *telemetry.Metrics) LifecycleOption {
	return func(s *LifecycleService) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LifecycleOption {
	return func(s *LifecycleService) { s.now = now }
}

// NewLifecycleService wires the lifecycle authority. The store,
// registry, baseline store, and account directory are required;
// everything else defaults or stays off.
func NewLifecycleService(
	sessions session.Store,
	devices device.Registry,
	baselines behavior.Store,
	accounts outbound.AccountDirectory,
	logger *slog.Logger,
	opts ...LifecycleOption,
) *LifecycleService {
	s := &LifecycleService{
		sessions:  sessions,
		devices:   devices,
		baselines: baselines,
		accounts:  accounts,
		strategy:  session.SimulatedPQStrategy{},
		tracer:    telemetry.Tracer(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.scorer == nil {
		s.scorer = risk.NewScorer(risk.DefaultDecayPerMinute)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.pipeline = validation.NewPipeline(s.cfg.Validation)
	return s
}

// CreateSession establishes a session for an authenticated user.
func (s *LifecycleService) CreateSession(ctx context.Context, in *session.CreationInput) (*inbound.CreationResult, error) {
	ctx, span := s.tracer.Start(ctx, "CreateSession")
	defer span.End()

	if in == nil {
		return nil, &session.InvalidContextError{Field: "input", Reason: "missing"}
	}
	if err := session.ValidateCreationInput(in); err != nil {
		return nil, err
	}

	locked, err := s.accounts.IsAccountLocked(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("account lookup for %s: %w", in.UserID, err)
	}
	if locked {
		return nil, session.ErrAccountLocked
	}

	now := s.now()
	reqCtx := s.snapshotContext(ctx, &in.Context)

	trust := device.TrustUnknown
	trusted, err := s.accounts.IsDeviceTrusted(ctx, in.UserID, reqCtx.DeviceFingerprint)
	switch {
	case err != nil:
		// Trust lookup failures degrade to unknown rather than blocking
		// login; the device check still scores fingerprint drift.
		s.logger.Warn("device trust lookup failed", "user_id", in.UserID, "error", err)
	case trusted:
		trust = device.TrustTrusted
	default:
		trust = device.TrustUntrusted
	}

	role := in.Role
	if role == "" {
		role = session.RoleUser
	}
	level := risk.LevelFor(role, in.MFAEnabled, in.Type, s.strategy.PostQuantum())
	if trust == device.TrustUntrusted && !level.AtLeast(session.LevelCritical) {
		level = session.LevelCritical
	}

	id, err := session.GenerateID()
	if err != nil {
		return nil, err
	}
	issued, err := session.GenerateKeys(s.strategy)
	if err != nil {
		return nil, err
	}
	issued.Keys.RotatedAt = now

	bindingID := uuid.New().String()
	sess := &session.Session{
		ID:             id,
		UserID:         in.UserID,
		Type:           session.ParseType(string(in.Type)),
		Role:           role,
		MFAEnabled:     in.MFAEnabled,
		State:          session.StateActive,
		SecurityLevel:  level,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(s.cfg.TokenTTL),
		Keys:           issued.Keys,
		Context:        *reqCtx,
		BindingID:      bindingID,
		BaselineID:     in.UserID,
		Activity:       behavior.NewRing(activityRingSize),
	}

	evicted, err := s.sessions.Insert(ctx, sess, s.cfg.MaxSessionsPerUser, func(victim *session.Session) {
		victim.Transition(session.StateTerminated)
		victim.TerminationReason = ReasonEvicted
		if victim.Keys != nil {
			victim.Keys.Wipe()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	binding := &device.Binding{
		BindingID:   bindingID,
		SessionID:   id,
		UserID:      in.UserID,
		Fingerprint: reqCtx.DeviceFingerprint,
		IP:          reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
		Location:    reqCtx.Location,
		CreatedAt:   now,
		TrustLevel:  trust,
	}
	if err := s.devices.Register(ctx, binding); err != nil {
		s.logger.Warn("device binding registration failed",
			"session_id", id, "binding_id", bindingID, "error", err)
	}

	if _, err := s.baselines.Get(ctx, in.UserID); errors.Is(err, behavior.ErrBaselineNotFound) {
		if err := s.baselines.Put(ctx, behavior.NewBaseline(in.UserID)); err != nil {
			s.logger.Warn("baseline bootstrap failed", "user_id", in.UserID, "error", err)
		}
	}

	evictedIDs := make([]string, 0, len(evicted))
	for _, victim := range evicted {
		evictedIDs = append(evictedIDs, victim.ID)
		if s.metrics != nil {
			s.metrics.SessionsEvicted.Inc()
		}
		s.recordEnd(ctx, victim, ReasonEvicted, now, event.TypeSessionEvicted)
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
		s.metrics.SessionsActive.Inc()
	}
	s.emit(event.Record{
		Type:      event.TypeSessionCreated,
		SessionID: id,
		UserID:    in.UserID,
		SourceIP:  reqCtx.IP,
		Detail: map[string]interface{}{
			"security_level": string(level),
			"session_type":   string(sess.Type),
			"device_trust":   string(trust),
		},
	})
	s.logger.Info("session created",
		"session_id", id, "user_id", in.UserID,
		"security_level", level, "evicted", len(evictedIDs))

	span.SetAttributes(attribute.String("session.level", string(level)))
	return &inbound.CreationResult{
		SessionID:       id,
		Token:           issued.Token,
		RefreshToken:    issued.RefreshToken,
		ExpiresAt:       sess.ExpiresAt,
		SecurityLevel:   level,
		EvictedSessions: evictedIDs,
	}, nil
}

// assessment is what one locked validation pass decided, captured so
// events and metrics can be emitted after the entry lock is released.
type assessment struct {
	outcome *validation.Outcome
	// indicators is what this pass raised: pipeline indicators plus any
	// folded profiler findings.
	indicators    []string
	score         float64
	endState      session.State
	endReason     string
	endErr        error
	endIndicators []string
	reauth        bool
	firstReauth   bool
	monitored     bool
	suspended     bool
	escalatedRule string
	deviceChanged bool
}

// ValidateSession checks a bearer token against the request context and
// the session's accumulated risk.
func (s *LifecycleService) ValidateSession(ctx context.Context, token string, reqCtx *session.RequestContext) (*inbound.ValidationResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ValidateSession")
	defer span.End()
	defer func() {
		if s.metrics != nil {
			s.metrics.ValidationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if reqCtx == nil {
		s.countValidation("invalid")
		return nil, &session.InvalidContextError{Field: "request_context", Reason: "missing"}
	}
	id, err := s.sessions.Resolve(ctx, session.HashToken(token))
	if err != nil {
		s.countValidation("invalid")
		return nil, session.ErrInvalidToken
	}

	now := s.now()
	snap, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.countValidation("invalid")
		return nil, session.ErrInvalidToken
	}
	rc := s.snapshotContext(ctx, reqCtx)
	binding, baseline, peers := s.gatherEvidence(ctx, snap)

	var a assessment
	updated, err := s.sessions.Update(ctx, id, func(live *session.Session) error {
		return s.assess(ctx, live, rc, now, binding, baseline, peers, &a)
	})

	switch {
	case err == nil:
		// Committed; updated carries the new state.
	case errors.Is(err, errValidationHalted):
		return s.concludeHalted(ctx, id, rc, now, &a)
	case errors.Is(err, session.ErrSessionNotFound):
		s.countValidation("invalid")
		return nil, session.ErrInvalidToken
	default:
		s.countValidation("invalid")
		return nil, fmt.Errorf("validate session %s: %w", id, err)
	}

	if s.metrics != nil {
		s.metrics.RiskScore.Observe(updated.RiskScore)
	}
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Float64("session.risk_score", updated.RiskScore),
	)
	s.emitAssessment(updated, rc, &a)

	if a.reauth {
		s.countValidation("reauth")
		return nil, session.ErrReauthRequired
	}
	if a.monitored {
		s.countValidation("monitored")
	} else {
		s.countValidation("ok")
	}
	return &inbound.ValidationResult{
		Valid:          true,
		SessionID:      updated.ID,
		UserID:         updated.UserID,
		RiskScore:      updated.RiskScore,
		SecurityLevel:  updated.SecurityLevel,
		RequiresReauth: false,
		ExpiresAt:      updated.ExpiresAt,
		Permissions:    session.PermissionsForRole(updated.Role),
		Indicators:     a.indicators,
	}, nil
}

// assess runs one validation pass under the session's entry lock. It
// commits risk bookkeeping for continuing sessions and halts without
// mutating for sessions that must leave service.
func (s *LifecycleService) assess(ctx context.Context, live *session.Session, rc *session.RequestContext, now time.Time, binding *device.Binding, baseline *behavior.Baseline, peers []validation.PeerSession, a *assessment) error {
	if live.State == session.StateSuspended {
		a.suspended = true
		a.score = live.RiskScore
		return errValidationHalted
	}

	in := &validation.Input{
		Session:  live,
		Context:  rc,
		Now:      now,
		Binding:  binding,
		Baseline: baseline,
		Peers:    peers,
	}
	a.outcome = s.pipeline.Run(in)
	if a.outcome.Ended() {
		a.endState = a.outcome.EndState
		a.endReason = a.outcome.EndReason
		a.endErr = a.outcome.Err
		a.score = live.RiskScore
		return errValidationHalted
	}

	deltas := slices.Clone(a.outcome.RiskDeltas)
	indicators := slices.Clone(a.outcome.Indicators)
	for _, f := range live.TakeFindings() {
		deltas = append(deltas, f.RiskDelta)
		indicators = append(indicators, f.Indicator)
	}

	gap := now.Sub(live.LastAccessedAt)
	next := s.scorer.Apply(live.RiskScore, deltas, gap)

	action := risk.Decide(next)
	if a.outcome.ForceReauth && action != risk.ActionTerminate {
		action = risk.ActionReauth
	}
	if s.escalator != nil {
		raise, rule, err := s.escalator.ShouldEscalate(ctx, risk.EscalationInput{
			RiskScore:         next,
			Indicators:        indicators,
			SecurityLevel:     string(live.SecurityLevel),
			State:             string(live.State),
			SessionType:       string(live.Type),
			SessionAgeMinutes: live.Age(now).Minutes(),
			RequestCount:      live.RequestCount,
		})
		if err != nil {
			s.logger.Warn("escalation rules failed", "session_id", live.ID, "error", err)
		} else if raise {
			action = risk.Escalate(action)
			a.escalatedRule = rule
		}
	}

	if action == risk.ActionTerminate {
		a.endState = session.StateTerminated
		a.endReason = ReasonRiskExceeded
		a.endErr = &session.TerminatedError{SessionID: live.ID, Reason: ReasonRiskExceeded, RiskScore: next}
		a.score = next
		mergeIndicators(&a.endIndicators, indicators)
		return errValidationHalted
	}

	live.RiskScore = next
	mergeIndicators(&live.Indicators, indicators)
	a.indicators = indicators
	a.deviceChanged = slices.Contains(a.outcome.Indicators, validation.IndicatorDeviceChange)

	switch action {
	case risk.ActionReauth:
		if !live.Flags.RequiresReauth {
			a.firstReauth = true
		}
		live.Flags.RequiresReauth = true
		live.Transition(session.StateAnomalous)
	case risk.ActionMonitor:
		live.Flags.Monitored = true
	}
	// A prior reauth demand stays in force until the session is
	// regenerated.
	a.reauth = live.Flags.RequiresReauth
	a.monitored = live.Flags.Monitored

	live.MarkAccessed(now)
	live.TrackEndpoint(rc.Path)
	if live.Activity == nil {
		live.Activity = behavior.NewRing(activityRingSize)
	}
	live.Activity.Append(behavior.Record{Timestamp: now, Path: rc.Path, Method: rc.Method, Gap: gap})
	live.Context.IP = rc.IP
	live.Context.Location = rc.Location
	a.score = next
	return nil
}

// concludeHalted finishes a validation whose locked pass decided the
// session cannot continue.
func (s *LifecycleService) concludeHalted(ctx context.Context, id string, rc *session.RequestContext, now time.Time, a *assessment) (*inbound.ValidationResult, error) {
	if a.suspended {
		s.countValidation("reauth")
		return nil, session.ErrReauthRequired
	}

	var indicators []string
	if a.outcome != nil {
		indicators = slices.Clone(a.outcome.Indicators)
	}
	mergeIndicators(&indicators, a.endIndicators)

	final := s.endSession(ctx, id, a.endState, a.endReason, a.score, indicators, now)

	var travel *session.ImpossibleTravelError
	if errors.As(a.endErr, &travel) {
		s.emit(event.Record{
			Type:      event.TypeImpossibleTravel,
			SessionID: id,
			SourceIP:  rc.IP,
			RiskScore: a.score,
			Reason:    a.endReason,
			Detail: map[string]interface{}{
				"distance_km": travel.DistanceKm,
				"speed_kmh":   travel.SpeedKmh,
				"window":      travel.Window.String(),
			},
		})
	}
	if final != nil && s.metrics != nil {
		s.metrics.RiskScore.Observe(final.RiskScore)
	}

	s.countValidation("terminated")
	if a.endErr != nil {
		return nil, a.endErr
	}
	return nil, &session.TerminatedError{SessionID: id, Reason: a.endReason, RiskScore: a.score}
}

// emitAssessment publishes the events a committed validation produced.
func (s *LifecycleService) emitAssessment(updated *session.Session, rc *session.RequestContext, a *assessment) {
	if a.deviceChanged {
		s.emit(event.Record{
			Type:       event.TypeDeviceChanged,
			SessionID:  updated.ID,
			UserID:     updated.UserID,
			SourceIP:   rc.IP,
			RiskScore:  updated.RiskScore,
			Indicators: a.indicators,
		})
	}
	if a.escalatedRule != "" {
		s.emit(event.Record{
			Type:       event.TypeRiskEscalated,
			SessionID:  updated.ID,
			UserID:     updated.UserID,
			SourceIP:   rc.IP,
			RiskScore:  updated.RiskScore,
			Indicators: a.indicators,
			Detail:     map[string]interface{}{"rule": a.escalatedRule},
		})
	}
	if a.firstReauth {
		s.emit(event.Record{
			Type:       event.TypeReauthRequired,
			SessionID:  updated.ID,
			UserID:     updated.UserID,
			SourceIP:   rc.IP,
			RiskScore:  updated.RiskScore,
			Indicators: a.indicators,
		})
	}
}

// RefreshSession performs a sliding renewal using the one-time refresh
// token. Both credentials reissue: the token index entry moves to the
// new bearer hash atomically, so the old bearer never resolves after
// the new one does.
func (s *LifecycleService) RefreshSession(ctx context.Context, token, refreshToken string, reqCtx *session.RequestContext) (*inbound.RefreshResult, error) {
	ctx, span := s.tracer.Start(ctx, "RefreshSession")
	defer span.End()

	id, err := s.sessions.Resolve(ctx, session.HashToken(token))
	if err != nil {
		return nil, session.ErrInvalidToken
	}

	// Hashing the replacement verifier is deliberately slow; generate
	// all replacement credentials before taking the entry lock.
	newBearer, err := session.NewBearerToken()
	if err != nil {
		return nil, err
	}
	newRefresh, verifier, err := session.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newHash := session.HashToken(newBearer)

	now := s.now()
	updated, err := s.sessions.SwapTokenHash(ctx, id, newHash, func(live *session.Session) error {
		if live.State == session.StateSuspended || live.Flags.RequiresReauth {
			return session.ErrReauthRequired
		}
		if live.ExpiredAt(now) {
			return session.ErrInvalidToken
		}
		// Verify-and-reissue must be atomic under the entry lock so a
		// replayed refresh token loses the race cleanly.
		ok, err := live.Keys.VerifyRefreshToken(refreshToken)
		if err != nil {
			if errors.Is(err, session.ErrKeysWiped) {
				return session.ErrInvalidToken
			}
			return err
		}
		if !ok {
			return session.ErrRefreshReused
		}
		budget := live.CreatedAt.Add(s.cfg.MaxLifetime)
		next := now.Add(s.cfg.TokenTTL)
		if next.After(budget) {
			next = budget
		}
		live.ExpiresAt = next
		live.Keys.TokenHash = newHash
		live.Keys.SetRefreshVerifier(verifier)
		live.Keys.RotationCount++
		live.Keys.RotatedAt = now
		live.LastAccessedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, session.ErrInvalidToken
		}
		return nil, err
	}

	rec := event.Record{
		Type:      event.TypeSessionRefreshed,
		SessionID: id,
		UserID:    updated.UserID,
		Detail:    map[string]interface{}{"expires_at": updated.ExpiresAt.Format(time.RFC3339)},
	}
	if reqCtx != nil {
		rec.SourceIP = reqCtx.IP
	}
	s.emit(rec)
	s.logger.Debug("session refreshed", "session_id", id, "expires_at", updated.ExpiresAt)
	return &inbound.RefreshResult{
		SessionID:    id,
		Token:        newBearer,
		RefreshToken: newRefresh,
		ExpiresAt:    updated.ExpiresAt,
	}, nil
}

// RegenerateSession replaces a session's identity and key material
// while preserving its attributes. This is the recovery path after a
// reauthentication demand and the fixation defense after privilege
// changes.
func (s *LifecycleService) RegenerateSession(ctx context.Context, userID, oldSessionID string) (*inbound.RegenerationResult, error) {
	ctx, span := s.tracer.Start(ctx, "RegenerateSession")
	defer span.End()

	old, err := s.sessions.Get(ctx, oldSessionID)
	if err != nil {
		return nil, err
	}
	if old.UserID != userID {
		return nil, session.ErrSessionNotFound
	}

	newID, err := session.GenerateID()
	if err != nil {
		return nil, err
	}
	issued, err := session.GenerateKeys(s.strategy)
	if err != nil {
		return nil, err
	}

	now := s.now()
	issued.Keys.RotatedAt = now
	next := &session.Session{
		ID:             newID,
		UserID:         userID,
		Type:           old.Type,
		Role:           old.Role,
		MFAEnabled:     old.MFAEnabled,
		State:          session.StateActive,
		SecurityLevel:  old.SecurityLevel,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(s.cfg.TokenTTL),
		Keys:           issued.Keys,
		Context:        old.Context,
		BindingID:      old.BindingID,
		BaselineID:     old.BaselineID,
		Activity:       behavior.NewRing(activityRingSize),
	}

	err = s.sessions.Replace(ctx, oldSessionID, next, func(live *session.Session) {
		live.Transition(session.StateTerminated)
		live.TerminationReason = ReasonRegenerated
		if live.Keys != nil {
			live.Keys.Wipe()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("replace session %s: %w", oldSessionID, err)
	}

	if old.BindingID != "" {
		if b, err := s.devices.Get(ctx, old.BindingID); err == nil {
			b.SessionID = newID
			if err := s.devices.Register(ctx, b); err != nil {
				s.logger.Warn("binding reattach failed", "binding_id", old.BindingID, "error", err)
			}
		}
	}

	s.emit(event.Record{
		Type:      event.TypeSessionRegenerated,
		SessionID: newID,
		UserID:    userID,
		Detail:    map[string]interface{}{"old_session_id": oldSessionID},
	})
	s.logger.Info("session regenerated",
		"user_id", userID, "old_session_id", oldSessionID, "new_session_id", newID)
	return &inbound.RegenerationResult{
		Success:      true,
		NewSessionID: newID,
		Token:        issued.Token,
		RefreshToken: issued.RefreshToken,
		ExpiresAt:    next.ExpiresAt,
	}, nil
}

// TerminateSession ends a session and wipes its key material.
// Terminating an already-ended session is not an error.
func (s *LifecycleService) TerminateSession(ctx context.Context, sessionID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "TerminateSession")
	defer span.End()

	if reason == "" {
		reason = ReasonUserRequested
	}
	s.endSession(ctx, sessionID, session.StateTerminated, reason, 0, nil, s.now())
	return nil
}

// SuspendSession parks a session pending review.
func (s *LifecycleService) SuspendSession(ctx context.Context, sessionID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "SuspendSession")
	defer span.End()

	updated, err := s.sessions.Update(ctx, sessionID, func(live *session.Session) error {
		if live.State == session.StateSuspended {
			return nil
		}
		if !live.Transition(session.StateSuspended) {
			return fmt.Errorf("session %s cannot be suspended from state %s", sessionID, live.State)
		}
		live.Flags.Suspicious = true
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(event.Record{
		Type:      event.TypeSessionSuspended,
		SessionID: sessionID,
		UserID:    updated.UserID,
		RiskScore: updated.RiskScore,
		Reason:    reason,
	})
	s.logger.Info("session suspended", "session_id", sessionID, "reason", reason)
	return nil
}

// endSession removes the session, wiping key material under the entry
// lock before the token index stops resolving, then runs the
// post-removal bookkeeping. Returns nil when the session was already
// gone.
func (s *LifecycleService) endSession(ctx context.Context, id string, endState session.State, reason string, score float64, indicators []string, now time.Time) *session.Session {
	final, err := s.sessions.Remove(ctx, id, func(live *session.Session) {
		if score > live.RiskScore {
			live.RiskScore = score
		}
		mergeIndicators(&live.Indicators, indicators)
		live.TerminationReason = reason
		if endState != "" {
			live.Transition(endState)
		}
		if live.Keys != nil {
			live.Keys.Wipe()
		}
	})
	if err != nil {
		return nil
	}

	eventType := event.TypeSessionTerminated
	switch reason {
	case validation.ReasonExpired, validation.ReasonIdleTimeout, validation.ReasonMaxDuration:
		eventType = event.TypeSessionExpired
	}
	s.recordEnd(ctx, final, reason, now, eventType)
	return final
}

// recordEnd is the shared bookkeeping after a session leaves the store:
// history, forensics for suspicious endings, binding cleanup, events,
// and metrics.
func (s *LifecycleService) recordEnd(ctx context.Context, final *session.Session, reason string, now time.Time, eventType string) {
	if s.metrics != nil {
		s.metrics.SessionsActive.Dec()
		s.metrics.SessionsTerminated.WithLabelValues(reason).Inc()
	}

	if s.history != nil {
		rec := session.HistoryRecord{
			SessionID:    final.ID,
			UserID:       final.UserID,
			Type:         final.Type,
			FinalState:   final.State,
			Reason:       reason,
			CreatedAt:    final.CreatedAt,
			EndedAt:      now,
			RiskScore:    final.RiskScore,
			RequestCount: final.RequestCount,
			Indicators:   final.Indicators,
		}
		if final.Keys != nil {
			rec.RotationCount = final.Keys.RotationCount
		}
		if err := s.history.Append(ctx, rec); err != nil {
			s.logger.Warn("history append failed", "session_id", final.ID, "error", err)
		}
	}

	if s.archive != nil && suspiciousEnding(final) {
		if err := s.archive.Archive(ctx, snapshotOf(final, reason, now)); err != nil {
			s.logger.Warn("forensic archive failed", "session_id", final.ID, "error", err)
		}
	}

	if err := s.devices.RemoveBySession(ctx, final.ID); err != nil {
		s.logger.Warn("binding cleanup failed", "session_id", final.ID, "error", err)
	}

	s.emit(event.Record{
		Type:       eventType,
		SessionID:  final.ID,
		UserID:     final.UserID,
		SourceIP:   final.Context.IP,
		RiskScore:  final.RiskScore,
		Indicators: final.Indicators,
		Reason:     reason,
		Detail: map[string]interface{}{
			"final_state": string(final.State),
			"duration":    now.Sub(final.CreatedAt).String(),
		},
	})
	s.logger.Info("session ended",
		"session_id", final.ID, "user_id", final.UserID,
		"final_state", final.State, "reason", reason,
		"risk_score", final.RiskScore, "duration", now.Sub(final.CreatedAt))
}

// suspiciousEnding reports whether the ended session warrants a
// forensic snapshot.
func suspiciousEnding(final *session.Session) bool {
	return final.RiskScore > risk.MonitorThreshold ||
		final.Flags.Suspicious ||
		final.State == session.StateHijacked
}

// snapshotOf builds the preserved evidence for an ended session. Key
// material is never part of a snapshot.
func snapshotOf(final *session.Session, reason string, now time.Time) *session.ForensicsSnapshot {
	snap := &session.ForensicsSnapshot{
		SessionID:     final.ID,
		UserID:        final.UserID,
		Reason:        reason,
		CapturedAt:    now,
		FinalState:    final.State,
		RiskScore:     final.RiskScore,
		SecurityLevel: final.SecurityLevel,
		Context:       final.Context,
		Indicators:    slices.Clone(final.Indicators),
		RequestCount:  final.RequestCount,
	}
	if final.Keys != nil {
		snap.RotationCount = final.Keys.RotationCount
	}
	if final.Activity != nil {
		for _, rec := range final.Activity.Snapshot() {
			snap.Timeline = append(snap.Timeline, session.ForensicEvent{
				At:     rec.Timestamp,
				Type:   "request",
				Detail: rec.Method + " " + rec.Path,
			})
		}
	}
	return snap
}

// gatherEvidence fetches the validation inputs that live outside the
// session entry. Missing evidence degrades to nil; the checks skip what
// they cannot see.
func (s *LifecycleService) gatherEvidence(ctx context.Context, snap *session.Session) (*device.Binding, *behavior.Baseline, []validation.PeerSession) {
	var binding *device.Binding
	if snap.BindingID != "" {
		if b, err := s.devices.Get(ctx, snap.BindingID); err == nil {
			binding = b
		}
	}
	var baseline *behavior.Baseline
	if b, err := s.baselines.Get(ctx, snap.UserID); err == nil {
		baseline = b
	}
	var peers []validation.PeerSession
	if actives, err := s.sessions.ActiveForUser(ctx, snap.UserID); err == nil {
		for _, p := range actives {
			if p.ID == snap.ID {
				continue
			}
			peers = append(peers, validation.PeerSession{
				ID:             p.ID,
				IP:             p.Context.IP,
				LastAccessedAt: p.LastAccessedAt,
			})
		}
	}
	return binding, baseline, peers
}

// snapshotContext copies the caller's request context and fills in the
// location when a resolver is configured.
func (s *LifecycleService) snapshotContext(ctx context.Context, reqCtx *session.RequestContext) *session.RequestContext {
	rc := *reqCtx
	if rc.Location != nil {
		loc := *rc.Location
		rc.Location = &loc
	} else if s.geo != nil {
		loc, err := s.geo.Resolve(ctx, rc.IP)
		if err != nil {
			s.logger.Warn("geo resolution failed", "ip", rc.IP, "error", err)
		} else {
			rc.Location = loc
		}
	}
	return &rc
}

func (s *LifecycleService) emit(rec event.Record) {
	if s.events == nil {
		return
	}
	s.events.Emit(rec)
}

func (s *LifecycleService) countValidation(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
}

// mergeIndicators appends the additions not already present.
func mergeIndicators(dst *[]string, add []string) {
	for _, in := range add {
		if !slices.Contains(*dst, in) {
			*dst = append(*dst, in)
		}
	}
}
