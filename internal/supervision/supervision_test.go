package supervision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory SessionStore for tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	err      error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *memStore) Create(_ context.Context, s *Session) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListActive(_ context.Context, agentID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.Status != StatusRunning {
			continue
		}
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) Close(_ context.Context, id uuid.UUID, status SessionStatus, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status != StatusRunning {
		return ErrSessionClosed
	}
	s.Status = status
	s.EndedAt = &endedAt
	return nil
}

func (m *memStore) CloseStale(_ context.Context, cutoff time.Time, status SessionStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, s := range m.sessions {
		if s.Status == StatusRunning && s.StartedAt.Before(cutoff) {
			s.Status = status
			s.EndedAt = &now
			n++
		}
	}
	return n, nil
}

func TestManager_Open(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testLogger())

	s, err := m.Open(context.Background(), "a1", "ws-1", "", "deploy")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Status != StatusRunning {
		t.Errorf("status = %q, want running", s.Status)
	}
	if s.SupervisorID != "" {
		t.Errorf("supervisor = %q, want empty (never waits for assignment)", s.SupervisorID)
	}
	if s.StartedAt.IsZero() || s.EndedAt != nil {
		t.Errorf("started = %v, ended = %v", s.StartedAt, s.EndedAt)
	}
}

func TestManager_OpenStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	m := NewManager(store, testLogger())

	if _, err := m.Open(context.Background(), "a1", "ws-1", "", "deploy"); err == nil {
		t.Fatal("expected error")
	}
}

func TestManager_CompleteAndFail(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	s1, _ := m.Open(ctx, "a1", "ws-1", "", "deploy")
	s2, _ := m.Open(ctx, "a1", "ws-1", "", "sync")

	if err := m.Complete(ctx, s1.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := m.Fail(ctx, s2.ID); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := m.Get(ctx, s1.ID)
	if got.Status != StatusCompleted || got.EndedAt == nil {
		t.Errorf("session 1 = %+v", got)
	}
	got, _ = m.Get(ctx, s2.ID)
	if got.Status != StatusFailed {
		t.Errorf("session 2 status = %q, want failed", got.Status)
	}
}

func TestManager_CloseTwice(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	s, _ := m.Open(ctx, "a1", "ws-1", "", "deploy")
	_ = m.Complete(ctx, s.ID)

	if err := m.Fail(ctx, s.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestManager_CloseUnknown(t *testing.T) {
	m := NewManager(newMemStore(), testLogger())

	if err := m.Complete(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_ListActive(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	s1, _ := m.Open(ctx, "a1", "ws-1", "", "deploy")
	_, _ = m.Open(ctx, "a2", "ws-1", "", "sync")
	_ = m.Complete(ctx, s1.ID)

	all, err := m.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("active = %d, want 1", len(all))
	}
	if all[0].AgentID != "a2" {
		t.Errorf("active agent = %q, want a2", all[0].AgentID)
	}

	filtered, _ := m.ListActive(ctx, "a1")
	if len(filtered) != 0 {
		t.Errorf("filtered = %d, want 0", len(filtered))
	}
}

func TestManager_CloseStale(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testLogger())
	ctx := context.Background()

	old, _ := m.Open(ctx, "a1", "ws-1", "", "deploy")
	fresh, _ := m.Open(ctx, "a2", "ws-1", "", "sync")

	// Backdate the first session past the cutoff.
	store.mu.Lock()
	store.sessions[old.ID].StartedAt = time.Now().UTC().Add(-2 * time.Hour)
	store.mu.Unlock()

	n, err := m.CloseStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("close stale: %v", err)
	}
	if n != 1 {
		t.Errorf("closed = %d, want 1", n)
	}

	got, _ := m.Get(ctx, old.ID)
	if got.Status != StatusCancelled {
		t.Errorf("stale session status = %q, want cancelled", got.Status)
	}
	got, _ = m.Get(ctx, fresh.ID)
	if got.Status != StatusRunning {
		t.Errorf("fresh session status = %q, want running", got.Status)
	}
}
