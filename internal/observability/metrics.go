package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Mlinzi.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Trigger interception metrics.
	TriggersTotal    *prometheus.CounterVec
	InterceptLatency *prometheus.HistogramVec

	// Maturity cache metrics.
	CacheLookupsTotal *prometheus.CounterVec

	// Side-effect metrics.
	ProposalsCreated *prometheus.CounterVec
	SessionsOpened   prometheus.Counter
	BlockedRecorded  prometheus.Counter

	// Maintenance metrics.
	SweepRunsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "trigger",
			Name:      "intercepted_total",
			Help:      "Total triggers intercepted, by source and routing path.",
		}, []string{"source", "path", "maturity"}),

		InterceptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mlinzi",
			Subsystem: "trigger",
			Name:      "intercept_duration_seconds",
			Help:      "Trigger interception duration in seconds (resolution + policy + side effects).",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"source"}),

		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "maturity",
			Name:      "cache_lookups_total",
			Help:      "Maturity cache lookups, by outcome (hit or miss).",
		}, []string{"outcome"}),

		ProposalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "training",
			Name:      "proposals_created_total",
			Help:      "Total proposals created, by kind.",
		}, []string{"kind"}),

		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "supervision",
			Name:      "sessions_opened_total",
			Help:      "Total supervision sessions opened.",
		}),

		BlockedRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "audit",
			Name:      "blocked_triggers_total",
			Help:      "Total blocked triggers recorded to the audit trail.",
		}),

		SweepRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mlinzi",
			Subsystem: "maintenance",
			Name:      "sweep_runs_total",
			Help:      "Total maintenance sweep executions, by sweep and status.",
		}, []string{"sweep", "status"}),
	}

	reg.MustRegister(
		m.TriggersTotal,
		m.InterceptLatency,
		m.CacheLookupsTotal,
		m.ProposalsCreated,
		m.SessionsOpened,
		m.BlockedRecorded,
		m.SweepRunsTotal,
	)

	return m
}
