package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a json.RawMessage stored in a JSONB column (TEXT under SQLite).
type JSONB json.RawMessage

// AgentModel maps to the "agents" table.
// Maturity status is stored as its string form; the typed MaturityLevel
// exists only on the domain side.
type AgentModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentID         string    `gorm:"not null;uniqueIndex"`
	Name            string    `gorm:"not null"`
	WorkspaceID     string    `gorm:"index"`
	MaturityStatus  string
	ConfidenceScore float64 `gorm:"not null;default:0"`
	Enabled         bool    `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (AgentModel) TableName() string { return "agents" }

// ProposalModel maps to the "proposals" table.
type ProposalModel struct {
	ID                string `gorm:"primaryKey"`
	Kind              string `gorm:"not null"`
	AgentID           string `gorm:"not null;index"`
	AgentName         string
	MaturityAtBlock   string  `gorm:"not null"`
	ConfidenceAtBlock float64 `gorm:"not null;default:0"`
	TriggerSource     string  `gorm:"not null"`
	TriggerType       string
	TriggerContext    JSONB `gorm:"type:jsonb;not null;default:'{}'"`
	BlockReason       string
	Status            int16 `gorm:"not null;default:0;index"`
	ResolvedBy        string
	CreatedAt         time.Time
	ExpiresAt         time.Time `gorm:"index"`
	ResolvedAt        *time.Time
}

func (ProposalModel) TableName() string { return "proposals" }

// SupervisionSessionModel maps to the "supervision_sessions" table.
type SupervisionSessionModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentID      string    `gorm:"not null;index"`
	WorkspaceID  string
	SupervisorID string
	TriggerType  string
	Status       string    `gorm:"not null;index"`
	StartedAt    time.Time `gorm:"not null;index"`
	EndedAt      *time.Time
}

func (SupervisionSessionModel) TableName() string { return "supervision_sessions" }

// BlockedTriggerModel maps to the "blocked_triggers" table.
// No UpdatedAt or DeletedAt — the blocked-trigger trail is append-only and immutable.
type BlockedTriggerModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentID           string    `gorm:"not null;index"`
	AgentName         string
	MaturityAtBlock   string  `gorm:"not null"`
	ConfidenceAtBlock float64 `gorm:"not null;default:0"`
	TriggerSource     string  `gorm:"not null"`
	TriggerType       string
	TriggerContext    JSONB  `gorm:"type:jsonb;not null;default:'{}'"`
	RoutingDecision   string `gorm:"not null"`
	BlockReason       string
	CreatedAt         time.Time `gorm:"index"`
}

func (BlockedTriggerModel) TableName() string { return "blocked_triggers" }
