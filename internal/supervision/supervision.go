// Package supervision manages supervised-execution sessions. A session is
// opened when a supervised-tier agent's action is allowed to run: the action
// proceeds immediately, but everything it does is monitored and logged for
// later human review. Session completion is driven by the external
// supervision monitor, not by the interceptor.
package supervision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("supervision session not found")
	ErrSessionClosed   = errors.New("supervision session already closed")
)

// SessionStatus is the lifecycle state of a supervision session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session records one supervised execution of an agent action.
type Session struct {
	ID           uuid.UUID
	AgentID      string
	WorkspaceID  string
	SupervisorID string // Empty until a supervisor is assigned.
	TriggerType  string
	Status       SessionStatus
	StartedAt    time.Time
	EndedAt      *time.Time
}

// SessionStore is the persistence contract for supervision sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// ListActive returns running sessions, oldest first. agentID filters
	// when non-empty.
	ListActive(ctx context.Context, agentID string) ([]Session, error)
	// Close transitions a running session to a terminal status.
	Close(ctx context.Context, id uuid.UUID, status SessionStatus, endedAt time.Time) error
	// CloseStale closes running sessions started before the cutoff,
	// returning how many were affected.
	CloseStale(ctx context.Context, cutoff time.Time, status SessionStatus) (int64, error)
}

// Manager opens and closes supervision sessions.
type Manager struct {
	store  SessionStore
	logger *slog.Logger
}

// NewManager creates a session manager.
func NewManager(store SessionStore, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Open creates a new running session for the agent. supervisorID may be
// empty: supervised execution never waits for a supervisor to be assigned.
func (m *Manager) Open(ctx context.Context, agentID, workspaceID, supervisorID, triggerType string) (*Session, error) {
	s := &Session{
		ID:           uuid.New(),
		AgentID:      agentID,
		WorkspaceID:  workspaceID,
		SupervisorID: supervisorID,
		TriggerType:  triggerType,
		Status:       StatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "supervision session opened",
		slog.String("session_id", s.ID.String()),
		slog.String("agent_id", agentID),
		slog.String("trigger_type", triggerType),
	)

	return s, nil
}

// Complete marks a running session as completed.
func (m *Manager) Complete(ctx context.Context, id uuid.UUID) error {
	return m.close(ctx, id, StatusCompleted)
}

// Fail marks a running session as failed.
func (m *Manager) Fail(ctx context.Context, id uuid.UUID) error {
	return m.close(ctx, id, StatusFailed)
}

func (m *Manager) close(ctx context.Context, id uuid.UUID, status SessionStatus) error {
	err := m.store.Close(ctx, id, status, time.Now().UTC())
	if err == nil {
		m.logger.InfoContext(ctx, "supervision session closed",
			slog.String("session_id", id.String()),
			slog.String("status", string(status)),
		)
	}
	return err
}

// Get retrieves a session by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return m.store.Get(ctx, id)
}

// ListActive returns running sessions, optionally filtered by agent.
func (m *Manager) ListActive(ctx context.Context, agentID string) ([]Session, error) {
	return m.store.ListActive(ctx, agentID)
}

// CloseStale cancels sessions that have been running longer than maxAge.
// The supervision monitor normally closes sessions; this is the backstop
// for monitors that crashed mid-session.
func (m *Manager) CloseStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	n, err := m.store.CloseStale(ctx, cutoff, StatusCancelled)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "stale supervision sessions closed",
			slog.Int64("count", n),
			slog.Duration("max_age", maxAge),
		)
	}
	return n, nil
}
