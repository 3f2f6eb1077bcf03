// Package telemetry holds the Prometheus metrics and OpenTelemetry
// tracing setup shared by the engine services.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session engine.
// Pass to components that need to record metrics.
type Metrics struct {
	SessionsActive     prometheus.Gauge
	SessionsCreated    prometheus.Counter
	SessionsTerminated *prometheus.CounterVec
	SessionsEvicted    prometheus.Counter
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
	RiskScore          prometheus.Histogram
	KeyRotationsTotal  prometheus.Counter
	EventsDropped      prometheus.Counter
	MaintenanceSweep   *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SessionsActive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sessiond",
				Name:      "sessions_active",
				Help:      "Number of live sessions in the store",
			},
		),
		SessionsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_created_total",
				Help:      "Total sessions created",
			},
		),
		SessionsTerminated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_terminated_total",
				Help:      "Total sessions ended, by reason",
			},
			[]string{"reason"}, // expired, idle_timeout, user_logout, terminated_high_risk, ...
		),
		SessionsEvicted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_evicted_total",
				Help:      "Sessions retired to honor the per-user cap",
			},
		),
		ValidationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "validations_total",
				Help:      "Total validation requests, by outcome",
			},
			[]string{"outcome"}, // ok, monitored, reauth, terminated, invalid
		),
		ValidationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sessiond",
				Name:      "validation_duration_seconds",
				Help:      "Validation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RiskScore: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sessiond",
				Name:      "risk_score",
				Help:      "Risk score distribution after each assessment",
				Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0..100
			},
		),
		KeyRotationsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "key_rotations_total",
				Help:      "Total scheduled key rotations performed",
			},
		),
		EventsDropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "events_dropped_total",
				Help:      "Security events dropped due to backpressure",
			},
		),
		MaintenanceSweep: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sessiond",
				Name:      "maintenance_sweep_duration_seconds",
				Help:      "Duration of maintenance sweeps, by kind",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"}, // cleanup, rotation, profile
		),
	}
}
