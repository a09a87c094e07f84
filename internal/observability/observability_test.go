package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/maturity"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/trigger"
)

// --- No-op path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestAccessors_Nil(t *testing.T) {
	var obs *Observability
	if obs.MetricsOrNil() != nil {
		t.Error("expected nil metrics from nil Observability")
	}
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Initialize the vectors so they appear in Gather (a CounterVec only
	// shows up after its first use).
	m.TriggersTotal.WithLabelValues("manual", "execution", "autonomous").Inc()
	m.InterceptLatency.WithLabelValues("manual").Observe(0.01)
	m.CacheLookupsTotal.WithLabelValues("hit").Inc()
	m.ProposalsCreated.WithLabelValues("approval").Inc()
	m.SweepRunsTotal.WithLabelValues("proposals", "ok").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"mlinzi_trigger_intercepted_total",
		"mlinzi_trigger_intercept_duration_seconds",
		"mlinzi_maturity_cache_lookups_total",
		"mlinzi_training_proposals_created_total",
		"mlinzi_supervision_sessions_opened_total",
		"mlinzi_audit_blocked_triggers_total",
		"mlinzi_maintenance_sweep_runs_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordAndGather(t *testing.T) {
	m := NewMetricsCollector()

	m.CacheLookupsTotal.WithLabelValues("hit").Inc()
	m.CacheLookupsTotal.WithLabelValues("hit").Inc()
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()

	if got := counterValue(t, m.Registry, "mlinzi_maturity_cache_lookups_total", prometheus.Labels{"outcome": "hit"}); got != 2 {
		t.Errorf("hit count = %v, want 2", got)
	}
	if got := counterValue(t, m.Registry, "mlinzi_maturity_cache_lookups_total", prometheus.Labels{"outcome": "miss"}); got != 1 {
		t.Errorf("miss count = %v, want 1", got)
	}
}

// --- InstrumentedInterceptor (wrapper) ---

type mockInterceptor struct {
	decision *trigger.Decision
	err      error
	called   int
}

func (m *mockInterceptor) Intercept(ctx context.Context, req *trigger.Request) (*trigger.Decision, error) {
	m.called++
	return m.decision, m.err
}

func TestInstrumentedInterceptor_Executed(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockInterceptor{
		decision: &trigger.Decision{
			AgentID:  "agent-1",
			Path:     trigger.PathExecution,
			Execute:  true,
			Maturity: maturity.Autonomous,
		},
	}

	i := NewInstrumentedInterceptor(inner, metrics, nil)
	decision, err := i.Intercept(context.Background(), &trigger.Request{AgentID: "agent-1", Source: trigger.SourceWorkflowEngine})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Execute {
		t.Error("expected executing decision")
	}
	if inner.called != 1 {
		t.Errorf("inner called %d times, want 1", inner.called)
	}

	val := counterValue(t, metrics.Registry, "mlinzi_trigger_intercepted_total",
		prometheus.Labels{"source": "workflow_engine", "path": "execution", "maturity": "autonomous"})
	if val != 1 {
		t.Errorf("intercepted_total = %v, want 1", val)
	}
}

func TestInstrumentedInterceptor_BlockedProposal(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockInterceptor{
		decision: &trigger.Decision{
			AgentID:    "agent-2",
			Path:       trigger.PathProposal,
			Maturity:   maturity.Intern,
			Blocked:    &audit.BlockedTrigger{AgentID: "agent-2"},
			ProposalID: "prop-1",
		},
	}

	i := NewInstrumentedInterceptor(inner, metrics, nil)
	if _, err := i.Intercept(context.Background(), &trigger.Request{AgentID: "agent-2", Source: trigger.SourceDataSync}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := counterValue(t, metrics.Registry, "mlinzi_audit_blocked_triggers_total", nil); got != 1 {
		t.Errorf("blocked_triggers_total = %v, want 1", got)
	}
	if got := counterValue(t, metrics.Registry, "mlinzi_training_proposals_created_total", prometheus.Labels{"kind": "approval"}); got != 1 {
		t.Errorf("proposals_created_total = %v, want 1", got)
	}
}

func TestInstrumentedInterceptor_TrainingKind(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockInterceptor{
		decision: &trigger.Decision{
			Path:       trigger.PathTraining,
			Maturity:   maturity.Student,
			Blocked:    &audit.BlockedTrigger{},
			ProposalID: "prop-2",
		},
	}

	i := NewInstrumentedInterceptor(inner, metrics, nil)
	if _, err := i.Intercept(context.Background(), &trigger.Request{Source: trigger.SourceAICoordinator}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := counterValue(t, metrics.Registry, "mlinzi_training_proposals_created_total", prometheus.Labels{"kind": "training"}); got != 1 {
		t.Errorf("training proposals = %v, want 1", got)
	}
}

func TestInstrumentedInterceptor_SessionOpened(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockInterceptor{
		decision: &trigger.Decision{
			Path:     trigger.PathSupervision,
			Execute:  true,
			Maturity: maturity.Supervised,
			Session:  &supervision.Session{ID: uuid.New()},
		},
	}

	i := NewInstrumentedInterceptor(inner, metrics, nil)
	if _, err := i.Intercept(context.Background(), &trigger.Request{Source: trigger.SourceWorkflowEngine}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := counterValue(t, metrics.Registry, "mlinzi_supervision_sessions_opened_total", nil); got != 1 {
		t.Errorf("sessions_opened_total = %v, want 1", got)
	}
}

func TestInstrumentedInterceptor_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockInterceptor{err: errors.New("registry down")}

	i := NewInstrumentedInterceptor(inner, metrics, nil)
	if _, err := i.Intercept(context.Background(), &trigger.Request{Source: trigger.SourceManual}); err == nil {
		t.Fatal("expected error")
	}

	// Latency is still observed, but no routing counters move.
	if got := counterValue(t, metrics.Registry, "mlinzi_trigger_intercepted_total", nil); got != 0 {
		t.Errorf("intercepted_total = %v, want 0", got)
	}
}

func TestInstrumentedInterceptor_NilMetrics(t *testing.T) {
	inner := &mockInterceptor{
		decision: &trigger.Decision{Path: trigger.PathExecution, Execute: true, Maturity: maturity.Autonomous},
	}

	// nil metrics and nil tracer should not panic.
	i := NewInstrumentedInterceptor(inner, nil, nil)
	decision, err := i.Intercept(context.Background(), &trigger.Request{Source: trigger.SourceManual})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Execute {
		t.Error("expected executing decision")
	}
}

// --- Helpers ---

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
