// Package training implements the proposal queue fed by blocked triggers.
// A proposal is a durable record requiring human review: approval proposals
// gate an intern agent's action on human sign-off, training proposals queue
// a student agent's blocked trigger as future training material.
package training

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jkaninda/mlinzi/internal/audit"
)

var (
	ErrNotFound        = errors.New("proposal not found")
	ErrExpired         = errors.New("proposal expired")
	ErrAlreadyResolved = errors.New("proposal already resolved")
)

// Kind distinguishes why a proposal exists.
type Kind string

const (
	// KindApproval gates an intern agent's blocked action on human approval.
	KindApproval Kind = "approval"
	// KindTraining queues a student agent's blocked trigger for training review.
	KindTraining Kind = "training"
)

// Status represents the state of a proposal.
type Status int

const (
	StatusPending Status = iota
	StatusApproved
	StatusDenied
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusDenied:
		return "denied"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Proposal stores the full blocked-trigger context needed for a human to
// review (and, for approval proposals, eventually re-run) the action.
type Proposal struct {
	ID                string
	Kind              Kind
	AgentID           string
	AgentName         string
	MaturityAtBlock   string
	ConfidenceAtBlock float64
	TriggerSource     string
	TriggerType       string
	TriggerContext    map[string]any
	BlockReason       string
	Status            Status
	ResolvedBy        string // Set when approved or denied.
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ResolvedAt        time.Time // Set when approved or denied.
}

// ProposalManager is the public contract for the proposal workflow.
// Both the in-memory *Manager and the store-backed *DBManager satisfy this.
type ProposalManager interface {
	CreateFromBlocked(ctx context.Context, bt *audit.BlockedTrigger, kind Kind) (string, error)
	Get(ctx context.Context, id string) (*Proposal, error)
	List(ctx context.Context, status Status, limit int) ([]Proposal, error)
	Approve(ctx context.Context, id, approverID string) error
	Deny(ctx context.Context, id, denierID string) error
	StartCleanup(ctx context.Context, interval time.Duration) func()
}

// Manager stores proposals in memory.
// Thread-safe. Proposals expire after a configurable TTL.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*Proposal
	ttl     time.Duration
	logger  *slog.Logger
}

// NewManager creates a proposal manager with the given default TTL.
func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		pending: make(map[string]*Proposal),
		ttl:     ttl,
		logger:  logger,
	}
}

// CreateFromBlocked stores a new pending proposal built from a blocked
// trigger and returns its unique ID.
func (m *Manager) CreateFromBlocked(_ context.Context, bt *audit.BlockedTrigger, kind Kind) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("generating proposal ID: %w", err)
	}

	now := time.Now().UTC()
	p := &Proposal{
		ID:                id,
		Kind:              kind,
		AgentID:           bt.AgentID,
		AgentName:         bt.AgentName,
		MaturityAtBlock:   bt.MaturityAtBlock,
		ConfidenceAtBlock: bt.ConfidenceAtBlock,
		TriggerSource:     bt.TriggerSource,
		TriggerType:       bt.TriggerType,
		TriggerContext:    bt.TriggerContext,
		BlockReason:       bt.BlockReason,
		Status:            StatusPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.ttl),
	}

	m.mu.Lock()
	m.pending[id] = p
	m.mu.Unlock()

	m.logger.Info("proposal created",
		slog.String("proposal_id", id),
		slog.String("kind", string(kind)),
		slog.String("agent_id", bt.AgentID),
		slog.String("trigger_type", bt.TriggerType),
	)

	return id, nil
}

// Approve marks a pending proposal as approved by the given reviewer.
func (m *Manager) Approve(_ context.Context, id, approverID string) error {
	return m.resolve(id, approverID, StatusApproved)
}

// Deny marks a pending proposal as denied.
func (m *Manager) Deny(_ context.Context, id, denierID string) error {
	return m.resolve(id, denierID, StatusDenied)
}

func (m *Manager) resolve(id, resolverID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[id]
	if !ok {
		return ErrNotFound
	}

	if time.Now().UTC().After(p.ExpiresAt) {
		p.Status = StatusExpired
		return ErrExpired
	}

	if p.Status != StatusPending {
		return ErrAlreadyResolved
	}

	p.Status = status
	p.ResolvedBy = resolverID
	p.ResolvedAt = time.Now().UTC()

	m.logger.Info("proposal resolved",
		slog.String("proposal_id", id),
		slog.String("resolver", resolverID),
		slog.String("status", status.String()),
		slog.String("agent_id", p.AgentID),
	)

	return nil
}

// Get retrieves a proposal by ID.
func (m *Manager) Get(_ context.Context, id string) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Mark as expired on access if past TTL.
	if p.Status == StatusPending && time.Now().UTC().After(p.ExpiresAt) {
		p.Status = StatusExpired
	}

	return p, nil
}

// List returns proposals with the given status, newest first.
func (m *Manager) List(_ context.Context, status Status, limit int) ([]Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var out []Proposal
	for _, p := range m.pending {
		if p.Status == StatusPending && now.After(p.ExpiresAt) {
			p.Status = StatusExpired
		}
		if p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cleanup removes expired and old resolved proposals.
func (m *Manager) Cleanup(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for id, p := range m.pending {
		if p.Status == StatusPending && now.After(p.ExpiresAt) {
			p.Status = StatusExpired
		}
		// Remove anything resolved or expired more than 2x TTL ago.
		if p.Status != StatusPending && now.After(p.ExpiresAt.Add(m.ttl)) {
			delete(m.pending, id)
		}
	}
}

// StartCleanup starts a background goroutine that calls Cleanup periodically.
// Returns a cancel function to stop the goroutine.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(ctx)
			}
		}
	}()
	return cancel
}

func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
