package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jkaninda/mlinzi/internal/registry"
)

// AgentRepository implements registry.Store with PostgreSQL.
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates an AgentRepository.
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByAgentID retrieves an agent record by its opaque agent ID.
func (r *AgentRepository) GetByAgentID(ctx context.Context, agentID string) (*registry.Agent, error) {
	var model AgentModel
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("agent %s: %w", agentID, registry.ErrAgentNotFound)
		}
		return nil, fmt.Errorf("getting agent %s: %w", agentID, err)
	}
	return toAgentDomain(&model), nil
}

// List returns agents, filtered by workspace when workspaceID is non-empty.
func (r *AgentRepository) List(ctx context.Context, workspaceID string) ([]registry.Agent, error) {
	q := r.db.WithContext(ctx).Model(&AgentModel{}).Order("agent_id")
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}

	var models []AgentModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	out := make([]registry.Agent, 0, len(models))
	for i := range models {
		out = append(out, *toAgentDomain(&models[i]))
	}
	return out, nil
}

// Upsert creates or replaces an agent record, keyed by AgentID.
func (r *AgentRepository) Upsert(ctx context.Context, a *registry.Agent) error {
	model := AgentModel{
		ID:              uuid.New(),
		AgentID:         a.AgentID,
		Name:            a.Name,
		WorkspaceID:     a.WorkspaceID,
		MaturityStatus:  a.MaturityStatus,
		ConfidenceScore: a.ConfidenceScore,
		Enabled:         a.Enabled,
		CreatedAt:       time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "workspace_id", "maturity_status", "confidence_score", "enabled", "updated_at"}),
		}).
		Create(&model).Error; err != nil {
		return fmt.Errorf("upserting agent %s: %w", a.AgentID, err)
	}
	return nil
}

// Delete removes an agent record.
func (r *AgentRepository) Delete(ctx context.Context, agentID string) error {
	result := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Delete(&AgentModel{})
	if result.Error != nil {
		return fmt.Errorf("deleting agent %s: %w", agentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent %s: %w", agentID, registry.ErrAgentNotFound)
	}
	return nil
}
