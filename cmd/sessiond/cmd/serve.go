package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/cel"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/eventlog"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/geoip"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/memory"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/adapter/outbound/sqlite"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/config"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/event"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/validation"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/service"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine daemon",
	Long: `Run the sessiond engine daemon.

The daemon hosts the session lifecycle authority together with its
background services: the behavioral profiler, the maintenance scheduler
(cleanup and key rotation sweeps), and the async security event pipeline.
A Prometheus metrics endpoint is exposed on server.metrics_addr.

Examples:
  # Run with config file settings
  sessiond serve

  # Run with a specific config file
  sessiond --config /path/to/sessiond.yaml serve

  # Run in development mode (debug logging, in-memory forensics)
  sessiond serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, in-memory forensics, stdout events)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so the CLI flag can set
	// dev mode before dev defaults apply)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override dev mode from CLI flag
	if devMode {
		cfg.DevMode = true
	}

	// Apply dev defaults (debug logging, ephemeral sinks in dev mode)
	cfg.SetDevDefaults()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	// Setup logger to stderr.
	// Priority: DevMode=true -> debug, otherwise use configured log_level
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug // DevMode always forces debug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	// Log config file used if any
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Write PID file so "sessiond stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("sessiond stopped")
	return nil
}

// run is the main orchestration function that wires all components
// together: stores, resolvers, the event pipeline, the lifecycle
// authority, background services, and the metrics endpoint.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.DevMode {
		logger.Warn("development mode enabled, forensics and events are ephemeral")
	}

	durs, err := cfg.Durations()
	if err != nil {
		return fmt.Errorf("parse durations: %w", err)
	}

	// ===== Tracing =====
	traceShutdown, err := telemetry.SetupTracing(cfg.Tracing.Enabled)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			logger.Warn("trace exporter shutdown failed", "error", err)
		}
	}()

	// ===== Metrics on a private registry =====
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	// ===== In-memory domain stores =====
	sessions := memory.NewSessionStore()
	bindings := memory.NewBindingStore()
	baselines := memory.NewBaselineStore()
	history := memory.NewHistoryStore(0)

	// ===== Geolocation resolver =====
	geoEntries := make([]geoip.Entry, 0, len(cfg.Geo.Entries))
	for _, e := range cfg.Geo.Entries {
		geoEntries = append(geoEntries, geoip.Entry{
			CIDR: e.CIDR,
			Location: geo.Location{
				Country:   e.Country,
				Region:    e.Region,
				City:      e.City,
				Timezone:  e.Timezone,
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
			},
		})
	}
	resolver, err := geoip.NewStaticResolver(geoEntries)
	if err != nil {
		return fmt.Errorf("build geo resolver: %w", err)
	}
	logger.Debug("geo resolver configured", "entries", len(geoEntries))

	// ===== Event pipeline =====
	sink, err := createEventSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("create event sink: %w", err)
	}
	defer func() { _ = sink.Close() }()

	dispatcher := service.NewDispatcher(sink, logger,
		service.WithChannelSize(cfg.Events.ChannelSize),
		service.WithBatchSize(cfg.Events.BatchSize),
		service.WithFlushInterval(durs.EventFlushInterval),
		service.WithSendTimeout(durs.EventSendTimeout),
		service.WithWarningThreshold(cfg.Events.WarningThreshold),
		service.WithDispatchMetrics(metrics),
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// ===== Account directory =====
	accounts := memory.NewAccountDirectory(cfg.Accounts.LockedUsers, cfg.Accounts.TrustedDevices)
	logger.Debug("account directory configured",
		"locked_users", len(cfg.Accounts.LockedUsers),
		"trusted_devices", len(cfg.Accounts.TrustedDevices),
	)

	// ===== Lifecycle authority =====
	lifecycleOpts := []service.LifecycleOption{
		service.WithLifecycleConfig(service.LifecycleConfig{
			TokenTTL:           durs.TokenTTL,
			MaxLifetime:        durs.MaxLifetime,
			MaxSessionsPerUser: cfg.Session.MaxSessionsPerUser,
			Validation: validation.Config{
				MaxIdle:               durs.MaxIdle,
				DeviceFlagBelow:       cfg.Validation.DeviceFlagBelow,
				DeviceReauthBelow:     cfg.Validation.DeviceReauthBelow,
				MaxTravelSpeedKmh:     cfg.Validation.MaxTravelSpeedKmh,
				MinBaselineConfidence: cfg.Validation.MinBaselineConfidence,
				AnomalyThreshold:      cfg.Validation.AnomalyThreshold,
				MaxConcurrent:         cfg.Validation.MaxConcurrent,
			},
		}),
		service.WithHistoryStore(history),
		service.WithEventDispatcher(dispatcher),
		service.WithGeoResolver(resolver),
		service.WithLifecycleMetrics(metrics),
	}

	// Forensics archive (optional)
	if cfg.Archive.Enabled {
		archive, err := sqlite.NewArchiveStore(cfg.Archive.Path, logger)
		if err != nil {
			return fmt.Errorf("open forensics archive: %w", err)
		}
		defer func() { _ = archive.Close() }()
		lifecycleOpts = append(lifecycleOpts, service.WithArchiveStore(archive))
		logger.Info("forensics archive enabled", "path", cfg.Archive.Path)
	}

	// Escalation rules (optional)
	if len(cfg.Escalation.Rules) > 0 {
		rules := make([]cel.Rule, 0, len(cfg.Escalation.Rules))
		for _, r := range cfg.Escalation.Rules {
			rules = append(rules, cel.Rule{Name: r.Name, Expression: r.Condition})
		}
		ruleSet, err := cel.NewRuleSet(rules, logger)
		if err != nil {
			return fmt.Errorf("compile escalation rules: %w", err)
		}
		lifecycleOpts = append(lifecycleOpts, service.WithEscalator(ruleSet))
		logger.Info("escalation rules compiled", "rules", len(rules))
	}

	lifecycle := service.NewLifecycleService(sessions, bindings, baselines, accounts, logger, lifecycleOpts...)

	// ===== Background services =====
	profiler := service.NewProfileService(sessions, baselines, logger,
		service.WithProfileConfig(service.ProfileConfig{Interval: durs.ProfileInterval}),
		service.WithProfileEvents(dispatcher),
		service.WithProfileMetrics(metrics),
	)
	profiler.Start(ctx)
	defer profiler.Stop()

	maintenance := service.NewMaintenanceService(lifecycle, logger,
		service.WithMaintenanceConfig(service.MaintenanceConfig{
			CleanupInterval:  durs.CleanupInterval,
			RotationInterval: durs.RotationInterval,
			KeyMaxAge:        durs.KeyMaxAge,
		}),
	)
	maintenance.Start(ctx)
	defer maintenance.Stop()

	logger.Info("sessiond starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"metrics_addr", cfg.Server.MetricsAddr,
		"token_ttl", durs.TokenTTL,
		"max_lifetime", durs.MaxLifetime,
		"session_cap", cfg.Session.MaxSessionsPerUser,
		"escalation_rules", len(cfg.Escalation.Rules),
		"geo_entries", len(cfg.Geo.Entries),
		"event_output", cfg.Events.Output,
		"archive", cfg.Archive.Enabled,
	)

	// ===== Metrics endpoint =====
	return serveMetrics(ctx, cfg.Server.MetricsAddr, registry, logger)
}

// serveMetrics runs the Prometheus scrape endpoint until the context is
// canceled, then drains in-flight scrapes.
func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics endpoint: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics endpoint shutdown failed", "error", err)
	}
	return nil
}

// createEventSink creates the security event sink based on configuration.
func createEventSink(cfg *config.Config, logger *slog.Logger) (event.Sink, error) {
	switch {
	case cfg.Events.Output == "stdout":
		logger.Debug("event output: stdout", "cache_size", cfg.Events.CacheSize)
		return memory.NewEventSink(cfg.Events.CacheSize), nil

	case strings.HasPrefix(cfg.Events.Output, "file://"):
		dir := strings.TrimPrefix(cfg.Events.Output, "file://")
		if dir == "" {
			return nil, fmt.Errorf("invalid event output URI: %s", cfg.Events.Output)
		}
		store, err := eventlog.NewFileStore(eventlog.FileConfig{
			Dir:           dir,
			RetentionDays: cfg.Events.RetentionDays,
			MaxFileSizeMB: cfg.Events.MaxFileSizeMB,
			CacheSize:     cfg.Events.CacheSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open event log %s: %w", dir, err)
		}
		logger.Debug("event output: file", "dir", dir,
			"retention_days", cfg.Events.RetentionDays,
			"max_file_size_mb", cfg.Events.MaxFileSizeMB,
		)
		return store, nil

	default:
		return nil, fmt.Errorf("invalid event output: %s (must be 'stdout' or 'file://path')", cfg.Events.Output)
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the standard location for the sessiond PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".sessiond", "sessiond.pid")
	}
	return filepath.Join(os.TempDir(), "sessiond.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
