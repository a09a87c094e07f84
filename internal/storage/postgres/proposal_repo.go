package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/training"
)

// ProposalRepository implements training.ProposalStore with PostgreSQL.
type ProposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository creates a ProposalRepository.
func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create persists a new pending proposal built from a blocked trigger and returns its ID.
func (r *ProposalRepository) Create(ctx context.Context, bt *audit.BlockedTrigger, kind training.Kind, ttl time.Duration) (string, error) {
	id, err := generateProposalID()
	if err != nil {
		return "", fmt.Errorf("generating proposal ID: %w", err)
	}

	model := toProposalModel(id, bt, kind, ttl)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("creating proposal: %w", err)
	}
	return id, nil
}

// Get retrieves a proposal by ID, marking it expired if past ExpiresAt.
func (r *ProposalRepository) Get(ctx context.Context, id string) (*training.Proposal, error) {
	var model ProposalModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, training.ErrNotFound
		}
		return nil, fmt.Errorf("getting proposal: %w", err)
	}

	// Mark as expired on access if past TTL.
	if model.Status == int16(training.StatusPending) && time.Now().UTC().After(model.ExpiresAt) {
		r.db.WithContext(ctx).Model(&model).Update("status", int16(training.StatusExpired))
		model.Status = int16(training.StatusExpired)
	}

	return toProposalDomain(&model), nil
}

// List returns proposals with the given status, newest first.
func (r *ProposalRepository) List(ctx context.Context, status training.Status, limit int) ([]training.Proposal, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", int16(status)).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []ProposalModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}

	out := make([]training.Proposal, 0, len(models))
	for i := range models {
		out = append(out, *toProposalDomain(&models[i]))
	}
	return out, nil
}

// Approve transitions a pending proposal to StatusApproved.
func (r *ProposalRepository) Approve(ctx context.Context, id, approverID string) error {
	return r.resolve(ctx, id, approverID, training.StatusApproved)
}

// Deny transitions a pending proposal to StatusDenied.
func (r *ProposalRepository) Deny(ctx context.Context, id, denierID string) error {
	return r.resolve(ctx, id, denierID, training.StatusDenied)
}

func (r *ProposalRepository) resolve(ctx context.Context, id, resolverID string, status training.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ProposalModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return training.ErrNotFound
			}
			return err
		}

		if time.Now().UTC().After(model.ExpiresAt) && model.Status == int16(training.StatusPending) {
			tx.Model(&model).Update("status", int16(training.StatusExpired))
			return training.ErrExpired
		}

		if model.Status != int16(training.StatusPending) {
			return training.ErrAlreadyResolved
		}

		now := time.Now().UTC()
		return tx.Model(&model).Updates(map[string]any{
			"status":      int16(status),
			"resolved_by": resolverID,
			"resolved_at": now,
		}).Error
	})
}

// ExpireOld bulk-updates status to expired for all pending rows past expires_at.
func (r *ProposalRepository) ExpireOld(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&ProposalModel{}).
		Where("status = ? AND expires_at < ?", int16(training.StatusPending), time.Now().UTC()).
		Update("status", int16(training.StatusExpired)).Error
}

// DeleteResolved removes resolved/expired rows older than the given age.
func (r *ProposalRepository) DeleteResolved(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).
		Where("status != ? AND created_at < ?", int16(training.StatusPending), cutoff).
		Delete(&ProposalModel{}).Error
}

func generateProposalID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
