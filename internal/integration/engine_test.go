// Package integration exercises the session engine end to end: the
// lifecycle service, validation pipeline, behavior profiler, and
// maintenance sweeps wired to real in-memory stores, a real SQLite
// forensics archive, and a real event dispatcher, assembled the same
// way cmd/sessiond assembles them.
package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/geoip"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/memory"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/sqlite"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/service"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/telemetry"
)

const (
	testUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) sessiond-integration"
	testFingerprint = "fp-aaaabbbbccccdddd0001"

	// Both addresses sit in TEST-NET blocks covered by the fixture's
	// static geo table.
	ipNewYork = "203.0.113.10"
	ipSydney  = "198.51.100.7"
)

// testLogger returns a logger that writes to stderr at error level (quiet tests).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock is a manually advanced clock shared by every component in
// the fixture, so tests move time instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// engine bundles a fully wired lifecycle service with the stores and
// sinks that tests inspect afterwards.
type engine struct {
	clock    *fakeClock
	svc      *service.LifecycleService
	profiler *service.ProfileService
	sessions *memory.SessionStore
	history  *memory.HistoryStore
	archive  *sqlite.ArchiveStore
	sink     *memory.EventSink
	bus      *service.Dispatcher
	metrics  *telemetry.Metrics

	// Dispatcher.Stop closes the emit channel, so it must run exactly
	// once even when a test drains events before Close.
	stopOnce sync.Once
}

// buildEngine wires the full engine. Extra lifecycle options are
// applied after the fixture's own, so tests can override the config
// or attach an escalator.
func buildEngine(t *testing.T, extra ...service.LifecycleOption) *engine {
	t.Helper()

	clock := newFakeClock()
	logger := testLogger()

	sessions := memory.NewSessionStore()
	bindings := memory.NewBindingStore()
	baselines := memory.NewBaselineStore()
	history := memory.NewHistoryStore(0)
	accounts := memory.NewAccountDirectory(nil, nil)

	resolver, err := geoip.NewStaticResolver([]geoip.Entry{
		{CIDR: "203.0.113.0/24", Location: geo.Location{
			Country: "US", City: "New York", Latitude: 40.7128, Longitude: -74.0060,
		}},
		{CIDR: "198.51.100.0/24", Location: geo.Location{
			Country: "AU", City: "Sydney", Latitude: -33.8688, Longitude: 151.2093,
		}},
	})
	if err != nil {
		t.Fatalf("NewStaticResolver: %v", err)
	}

	archive, err := sqlite.NewArchiveStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewArchiveStore: %v", err)
	}

	sink := memory.NewEventSinkWithWriter(io.Discard, 512)
	bus := service.NewDispatcher(sink, logger,
		service.WithFlushInterval(5*time.Millisecond),
		service.WithSendTimeout(time.Second),
	)
	bus.Start(context.Background())

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	opts := []service.LifecycleOption{
		service.WithHistoryStore(history),
		service.WithArchiveStore(archive),
		service.WithEventDispatcher(bus),
		service.WithGeoResolver(resolver),
		service.WithLifecycleMetrics(metrics),
		service.WithClock(clock.Now),
	}
	opts = append(opts, extra...)

	svc := service.NewLifecycleService(sessions, bindings, baselines, accounts, logger, opts...)

	profiler := service.NewProfileService(sessions, baselines, logger,
		service.WithProfileEvents(bus),
		service.WithProfileMetrics(metrics),
		service.WithProfileClock(clock.Now),
	)

	return &engine{
		clock:    clock,
		svc:      svc,
		profiler: profiler,
		sessions: sessions,
		history:  history,
		archive:  archive,
		sink:     sink,
		bus:      bus,
		metrics:  metrics,
	}
}

// stopEvents flushes and stops the dispatcher. After this no further
// lifecycle operations may emit events.
func (e *engine) stopEvents() {
	e.stopOnce.Do(e.bus.Stop)
}

func (e *engine) Close() {
	e.stopEvents()
	_ = e.archive.Close()
}

// events stops the dispatcher and returns every recorded event of the
// given type, newest first. An empty type returns everything.
func (e *engine) events(t *testing.T, eventType string) []event.Record {
	t.Helper()
	e.stopEvents()

	recs, err := e.sink.Query(context.Background(), event.Filter{Type: eventType})
	if err != nil {
		t.Fatalf("sink.Query(%q): %v", eventType, err)
	}
	return recs
}

func creationInput(userID string) *session.CreationInput {
	return &session.CreationInput{
		UserID: userID,
		Role:   session.RoleUser,
		Type:   session.TypeWeb,
		Context: session.RequestContext{
			IP:                ipNewYork,
			UserAgent:         testUserAgent,
			DeviceFingerprint: testFingerprint,
			Path:              "/login",
			Method:            "POST",
		},
	}
}

func requestContext(ip, path string) *session.RequestContext {
	return &session.RequestContext{
		IP:                ip,
		UserAgent:         testUserAgent,
		DeviceFingerprint: testFingerprint,
		Path:              path,
		Method:            "GET",
	}
}
