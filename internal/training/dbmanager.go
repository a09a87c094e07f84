package training

import (
	"context"
	"log/slog"
	"time"

	"github.com/jkaninda/mlinzi/internal/audit"
)

// DBManager implements ProposalManager on top of a ProposalStore.
type DBManager struct {
	store  ProposalStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewDBManager creates a store-backed proposal manager.
func NewDBManager(store ProposalStore, ttl time.Duration, logger *slog.Logger) *DBManager {
	return &DBManager{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// CreateFromBlocked persists a new pending proposal and returns its ID.
func (m *DBManager) CreateFromBlocked(ctx context.Context, bt *audit.BlockedTrigger, kind Kind) (string, error) {
	id, err := m.store.Create(ctx, bt, kind, m.ttl)
	if err != nil {
		return "", err
	}

	m.logger.Info("proposal created (db)",
		slog.String("proposal_id", id),
		slog.String("kind", string(kind)),
		slog.String("agent_id", bt.AgentID),
		slog.String("trigger_type", bt.TriggerType),
	)

	return id, nil
}

// Get retrieves a proposal by ID.
func (m *DBManager) Get(ctx context.Context, id string) (*Proposal, error) {
	return m.store.Get(ctx, id)
}

// List returns proposals with the given status, newest first.
func (m *DBManager) List(ctx context.Context, status Status, limit int) ([]Proposal, error) {
	return m.store.List(ctx, status, limit)
}

// Approve marks a pending proposal as approved.
func (m *DBManager) Approve(ctx context.Context, id, approverID string) error {
	err := m.store.Approve(ctx, id, approverID)
	if err == nil {
		m.logger.Info("proposal approved (db)",
			slog.String("proposal_id", id),
			slog.String("approver", approverID),
		)
	}
	return err
}

// Deny marks a pending proposal as denied.
func (m *DBManager) Deny(ctx context.Context, id, denierID string) error {
	err := m.store.Deny(ctx, id, denierID)
	if err == nil {
		m.logger.Info("proposal denied (db)",
			slog.String("proposal_id", id),
			slog.String("denier", denierID),
		)
	}
	return err
}

// StartCleanup starts a background goroutine that expires old proposals
// and deletes resolved entries periodically.
func (m *DBManager) StartCleanup(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.store.ExpireOld(ctx); err != nil {
					m.logger.Error("expiring proposals", slog.String("error", err.Error()))
				}
				if err := m.store.DeleteResolved(ctx, 2*m.ttl); err != nil {
					m.logger.Error("deleting resolved proposals", slog.String("error", err.Error()))
				}
			}
		}
	}()
	return cancel
}
