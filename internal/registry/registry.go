// Package registry defines the agent registry: the persisted record of each
// agent's maturity status and confidence score. Records are written by the
// agent-lifecycle service; the interceptor only ever reads them.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrAgentNotFound is returned when no agent exists for the given agent ID.
var ErrAgentNotFound = errors.New("agent not found")

// Agent is the registry record for an autonomous agent.
// AgentID is the opaque external identifier used on every trigger.
type Agent struct {
	AgentID         string  `json:"agent_id"`
	Name            string  `json:"name"`
	WorkspaceID     string  `json:"workspace_id"`
	MaturityStatus  string  `json:"maturity_status"`  // "student", "intern", "supervised", "autonomous", or empty.
	ConfidenceScore float64 `json:"confidence_score"` // In [0,1]. Fallback signal when status is absent.
	Enabled         bool    `json:"enabled"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store is the persistence contract for agent records.
// GetByAgentID must return ErrAgentNotFound (possibly wrapped) when the
// agent does not exist, so callers can distinguish "unknown agent" from
// infrastructure failure.
type Store interface {
	GetByAgentID(ctx context.Context, agentID string) (*Agent, error)
	List(ctx context.Context, workspaceID string) ([]Agent, error)
	// Upsert creates or replaces an agent record, keyed by AgentID.
	// Used by the lifecycle service and by operator tooling; the
	// interceptor never calls it.
	Upsert(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, agentID string) error
}
