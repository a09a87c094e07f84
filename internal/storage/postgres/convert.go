package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/registry"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

// --- Agent ---

func toAgentDomain(m *AgentModel) *registry.Agent {
	return &registry.Agent{
		AgentID:         m.AgentID,
		Name:            m.Name,
		WorkspaceID:     m.WorkspaceID,
		MaturityStatus:  m.MaturityStatus,
		ConfidenceScore: m.ConfidenceScore,
		Enabled:         m.Enabled,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// --- Proposal ---

func toProposalModel(id string, bt *audit.BlockedTrigger, kind training.Kind, ttl time.Duration) ProposalModel {
	ctxJSON, _ := json.Marshal(bt.TriggerContext)
	if ctxJSON == nil {
		ctxJSON = []byte("{}")
	}
	now := time.Now().UTC()
	return ProposalModel{
		ID:                id,
		Kind:              string(kind),
		AgentID:           bt.AgentID,
		AgentName:         bt.AgentName,
		MaturityAtBlock:   bt.MaturityAtBlock,
		ConfidenceAtBlock: bt.ConfidenceAtBlock,
		TriggerSource:     bt.TriggerSource,
		TriggerType:       bt.TriggerType,
		TriggerContext:    JSONB(ctxJSON),
		BlockReason:       bt.BlockReason,
		Status:            int16(training.StatusPending),
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

func toProposalDomain(m *ProposalModel) *training.Proposal {
	var trigCtx map[string]any
	_ = json.Unmarshal([]byte(m.TriggerContext), &trigCtx)

	p := &training.Proposal{
		ID:                m.ID,
		Kind:              training.Kind(m.Kind),
		AgentID:           m.AgentID,
		AgentName:         m.AgentName,
		MaturityAtBlock:   m.MaturityAtBlock,
		ConfidenceAtBlock: m.ConfidenceAtBlock,
		TriggerSource:     m.TriggerSource,
		TriggerType:       m.TriggerType,
		TriggerContext:    trigCtx,
		BlockReason:       m.BlockReason,
		Status:            training.Status(m.Status),
		ResolvedBy:        m.ResolvedBy,
		CreatedAt:         m.CreatedAt,
		ExpiresAt:         m.ExpiresAt,
	}
	if m.ResolvedAt != nil {
		p.ResolvedAt = *m.ResolvedAt
	}
	return p
}

// --- Supervision session ---

func toSessionModel(s *supervision.Session) SupervisionSessionModel {
	return SupervisionSessionModel{
		ID:           s.ID,
		AgentID:      s.AgentID,
		WorkspaceID:  s.WorkspaceID,
		SupervisorID: s.SupervisorID,
		TriggerType:  s.TriggerType,
		Status:       string(s.Status),
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
}

func toSessionDomain(m *SupervisionSessionModel) *supervision.Session {
	return &supervision.Session{
		ID:           m.ID,
		AgentID:      m.AgentID,
		WorkspaceID:  m.WorkspaceID,
		SupervisorID: m.SupervisorID,
		TriggerType:  m.TriggerType,
		Status:       supervision.SessionStatus(m.Status),
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
	}
}

// --- Blocked trigger ---

func toBlockedModel(bt *audit.BlockedTrigger) BlockedTriggerModel {
	ctxJSON, _ := json.Marshal(bt.TriggerContext)
	if ctxJSON == nil {
		ctxJSON = []byte("{}")
	}
	createdAt := bt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return BlockedTriggerModel{
		ID:                uuid.New(),
		AgentID:           bt.AgentID,
		AgentName:         bt.AgentName,
		MaturityAtBlock:   bt.MaturityAtBlock,
		ConfidenceAtBlock: bt.ConfidenceAtBlock,
		TriggerSource:     bt.TriggerSource,
		TriggerType:       bt.TriggerType,
		TriggerContext:    JSONB(ctxJSON),
		RoutingDecision:   bt.RoutingDecision,
		BlockReason:       bt.BlockReason,
		CreatedAt:         createdAt,
	}
}

func toBlockedDomain(m *BlockedTriggerModel) audit.BlockedTrigger {
	var trigCtx map[string]any
	_ = json.Unmarshal([]byte(m.TriggerContext), &trigCtx)

	return audit.BlockedTrigger{
		AgentID:           m.AgentID,
		AgentName:         m.AgentName,
		MaturityAtBlock:   m.MaturityAtBlock,
		ConfidenceAtBlock: m.ConfidenceAtBlock,
		TriggerSource:     m.TriggerSource,
		TriggerType:       m.TriggerType,
		TriggerContext:    trigCtx,
		RoutingDecision:   m.RoutingDecision,
		BlockReason:       m.BlockReason,
		CreatedAt:         m.CreatedAt,
	}
}
