package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/mlinzi/internal/supervision"
)

// SessionRepository implements supervision.SessionStore with PostgreSQL.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new supervision session.
func (r *SessionRepository) Create(ctx context.Context, s *supervision.Session) error {
	model := toSessionModel(s)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating supervision session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*supervision.Session, error) {
	var model SupervisionSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, supervision.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting supervision session: %w", err)
	}
	return toSessionDomain(&model), nil
}

// ListActive returns running sessions, oldest first.
func (r *SessionRepository) ListActive(ctx context.Context, agentID string) ([]supervision.Session, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", string(supervision.StatusRunning)).
		Order("started_at")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}

	var models []SupervisionSessionModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing active sessions: %w", err)
	}

	out := make([]supervision.Session, 0, len(models))
	for i := range models {
		out = append(out, *toSessionDomain(&models[i]))
	}
	return out, nil
}

// Close transitions a running session to a terminal status.
func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID, status supervision.SessionStatus, endedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model SupervisionSessionModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return supervision.ErrSessionNotFound
			}
			return err
		}

		if model.Status != string(supervision.StatusRunning) {
			return supervision.ErrSessionClosed
		}

		return tx.Model(&model).Updates(map[string]any{
			"status":   string(status),
			"ended_at": endedAt,
		}).Error
	})
}

// CloseStale closes running sessions started before the cutoff.
func (r *SessionRepository) CloseStale(ctx context.Context, cutoff time.Time, status supervision.SessionStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&SupervisionSessionModel{}).
		Where("status = ? AND started_at < ?", string(supervision.StatusRunning), cutoff).
		Updates(map[string]any{
			"status":   string(status),
			"ended_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("closing stale sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
