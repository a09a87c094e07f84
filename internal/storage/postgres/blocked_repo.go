package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jkaninda/mlinzi/internal/audit"
)

// BlockedTriggerRepository implements audit.BlockedStore with PostgreSQL.
type BlockedTriggerRepository struct {
	db *gorm.DB
}

// NewBlockedTriggerRepository creates a BlockedTriggerRepository.
func NewBlockedTriggerRepository(db *gorm.DB) *BlockedTriggerRepository {
	return &BlockedTriggerRepository{db: db}
}

// Append persists a blocked-trigger record. Records are never updated.
func (r *BlockedTriggerRepository) Append(ctx context.Context, bt *audit.BlockedTrigger) error {
	model := toBlockedModel(bt)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("appending blocked trigger: %w", err)
	}
	return nil
}

// ListRecent returns the most recent blocked triggers, newest first.
// agentID filters when non-empty.
func (r *BlockedTriggerRepository) ListRecent(ctx context.Context, agentID string, limit int) ([]audit.BlockedTrigger, error) {
	q := r.db.WithContext(ctx).
		Model(&BlockedTriggerModel{}).
		Order("created_at DESC")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []BlockedTriggerModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing blocked triggers: %w", err)
	}

	out := make([]audit.BlockedTrigger, 0, len(models))
	for i := range models {
		out = append(out, toBlockedDomain(&models[i]))
	}
	return out, nil
}

// DeleteOlderThan removes blocked triggers past the retention window.
func (r *BlockedTriggerRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&BlockedTriggerModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old blocked triggers: %w", result.Error)
	}
	return result.RowsAffected, nil
}
