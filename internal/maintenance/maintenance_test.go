package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/observability"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fakes ---

type fakeProposalStore struct {
	expireErr  error
	deleteErr  error
	expired    int
	deleted    int
	lastMaxAge time.Duration
}

func (f *fakeProposalStore) Create(ctx context.Context, bt *audit.BlockedTrigger, kind training.Kind, ttl time.Duration) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeProposalStore) Get(ctx context.Context, id string) (*training.Proposal, error) {
	return nil, training.ErrNotFound
}
func (f *fakeProposalStore) List(ctx context.Context, status training.Status, limit int) ([]training.Proposal, error) {
	return nil, nil
}
func (f *fakeProposalStore) Approve(ctx context.Context, id, approverID string) error { return nil }
func (f *fakeProposalStore) Deny(ctx context.Context, id, denierID string) error      { return nil }
func (f *fakeProposalStore) ExpireOld(ctx context.Context) error {
	f.expired++
	return f.expireErr
}
func (f *fakeProposalStore) DeleteResolved(ctx context.Context, olderThan time.Duration) error {
	f.deleted++
	f.lastMaxAge = olderThan
	return f.deleteErr
}

type fakeSessionStore struct {
	mu       sync.Mutex
	staleErr error
	closed   int64
	cutoffs  []time.Time
}

func (f *fakeSessionStore) Create(ctx context.Context, s *supervision.Session) error { return nil }
func (f *fakeSessionStore) Get(ctx context.Context, id uuid.UUID) (*supervision.Session, error) {
	return nil, supervision.ErrSessionNotFound
}
func (f *fakeSessionStore) ListActive(ctx context.Context, agentID string) ([]supervision.Session, error) {
	return nil, nil
}
func (f *fakeSessionStore) Close(ctx context.Context, id uuid.UUID, status supervision.SessionStatus, endedAt time.Time) error {
	return nil
}
func (f *fakeSessionStore) CloseStale(ctx context.Context, cutoff time.Time, status supervision.SessionStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.closed, f.staleErr
}

type fakeBlockedStore struct {
	deleteErr error
	deleted   int64
	lastAge   time.Duration
	calls     int
}

func (f *fakeBlockedStore) Append(ctx context.Context, bt *audit.BlockedTrigger) error { return nil }
func (f *fakeBlockedStore) ListRecent(ctx context.Context, agentID string, limit int) ([]audit.BlockedTrigger, error) {
	return nil, nil
}
func (f *fakeBlockedStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	f.calls++
	f.lastAge = age
	return f.deleted, f.deleteErr
}

func newSweeper(t *testing.T, cfg *config.MaintenanceConfig, metrics *observability.MetricsCollector) (*Sweeper, *fakeProposalStore, *fakeSessionStore, *fakeBlockedStore) {
	t.Helper()
	proposals := &fakeProposalStore{}
	sessionStore := &fakeSessionStore{closed: 2}
	blocked := &fakeBlockedStore{deleted: 3}
	sessions := supervision.NewManager(sessionStore, testLogger())
	s := New(proposals, sessions, blocked, cfg, metrics, testLogger())
	return s, proposals, sessionStore, blocked
}

// --- RunOnce ---

func TestRunOnce_AllSweeps(t *testing.T) {
	cfg := &config.MaintenanceConfig{
		Enabled:               true,
		SessionMaxAgeHours:    6,
		AuditRetentionDays:    7,
		ProposalRetentionDays: 14,
	}
	s, proposals, sessionStore, blocked := newSweeper(t, cfg, nil)

	s.RunOnce(context.Background())

	if proposals.expired != 1 || proposals.deleted != 1 {
		t.Errorf("proposal sweep ran expire=%d delete=%d, want 1/1", proposals.expired, proposals.deleted)
	}
	if proposals.lastMaxAge != 14*24*time.Hour {
		t.Errorf("proposal retention = %v, want 14d", proposals.lastMaxAge)
	}
	if len(sessionStore.cutoffs) != 1 {
		t.Fatalf("session sweep ran %d times, want 1", len(sessionStore.cutoffs))
	}
	if age := time.Since(sessionStore.cutoffs[0]); age < 6*time.Hour-time.Minute || age > 6*time.Hour+time.Minute {
		t.Errorf("session cutoff %v from now, want ~6h", age)
	}
	if blocked.calls != 1 || blocked.lastAge != 7*24*time.Hour {
		t.Errorf("audit sweep calls=%d age=%v, want 1 call at 7d", blocked.calls, blocked.lastAge)
	}
}

func TestRunOnce_NilStores(t *testing.T) {
	// Sweeper with nothing to sweep does nothing and does not panic.
	s := New(nil, nil, nil, &config.MaintenanceConfig{Enabled: true}, nil, testLogger())
	s.RunOnce(context.Background())
}

func TestRunOnce_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetricsCollector()
	cfg := &config.MaintenanceConfig{Enabled: true}
	s, proposals, _, _ := newSweeper(t, cfg, metrics)
	proposals.expireErr = errors.New("disk full")

	s.RunOnce(context.Background())

	if got := sweepCount(t, metrics.Registry, "proposals", "error"); got != 1 {
		t.Errorf("proposals error count = %v, want 1", got)
	}
	if got := sweepCount(t, metrics.Registry, "sessions", "success"); got != 1 {
		t.Errorf("sessions success count = %v, want 1", got)
	}
	if got := sweepCount(t, metrics.Registry, "audit", "success"); got != 1 {
		t.Errorf("audit success count = %v, want 1", got)
	}
}

func TestRunOnce_SweepFailuresAreIsolated(t *testing.T) {
	cfg := &config.MaintenanceConfig{Enabled: true}
	s, proposals, sessionStore, blocked := newSweeper(t, cfg, nil)
	proposals.expireErr = errors.New("boom")
	sessionStore.staleErr = errors.New("boom")

	// A failing sweep must not stop the others.
	s.RunOnce(context.Background())

	if proposals.deleted != 0 {
		t.Error("delete should be skipped after expire fails")
	}
	if blocked.calls != 1 {
		t.Errorf("audit sweep calls = %d, want 1", blocked.calls)
	}
}

// --- Start ---

func TestStart_Disabled(t *testing.T) {
	for _, cfg := range []*config.MaintenanceConfig{nil, {Enabled: false}} {
		s, proposals, _, _ := newSweeper(t, cfg, nil)
		stop, err := s.Start(context.Background())
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		stop()
		if proposals.expired != 0 {
			t.Error("disabled sweeper must not sweep")
		}
	}
}

func TestStart_InvalidCron(t *testing.T) {
	cfg := &config.MaintenanceConfig{Enabled: true, ProposalSweepCron: "not a cron"}
	s, _, _, _ := newSweeper(t, cfg, nil)

	if _, err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
}

func TestStart_StopIsClean(t *testing.T) {
	cfg := &config.MaintenanceConfig{Enabled: true}
	s, _, _, _ := newSweeper(t, cfg, nil)

	stop, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Stop must return promptly with no sweep in flight.
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}

// --- Helpers ---

func sweepCount(t *testing.T, reg *prometheus.Registry, sweep, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "mlinzi_maintenance_sweep_runs_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, p := range metric.GetLabel() {
				labels[p.GetName()] = p.GetValue()
			}
			if labels["sweep"] == sweep && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
