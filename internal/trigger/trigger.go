// Package trigger implements the interception point between trigger sources
// and agent execution. Every request for an agent to act passes through the
// interceptor, which routes it by the agent's maturity tier: execute, execute
// under supervision, block pending human approval, or block into training.
package trigger

import (
	"errors"
	"fmt"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/maturity"
	"github.com/jkaninda/mlinzi/internal/supervision"
)

// ErrUnknownSource is returned for a trigger source outside the defined set.
// This is an integration bug in the caller, not a runtime condition to route
// around.
var ErrUnknownSource = errors.New("unknown trigger source")

// Source identifies the origin of a trigger.
type Source int

const (
	SourceManual         Source = iota // A human directly initiated the action.
	SourceDataSync                     // Scheduled data synchronization.
	SourceWorkflowEngine               // Workflow engine step.
	SourceAICoordinator                // AI coordinator dispatch.
)

func (s Source) String() string {
	switch s {
	case SourceManual:
		return "manual"
	case SourceDataSync:
		return "data_sync"
	case SourceWorkflowEngine:
		return "workflow_engine"
	case SourceAICoordinator:
		return "ai_coordinator"
	default:
		return "unknown"
	}
}

// ParseSource converts a wire string to a Source.
func ParseSource(s string) (Source, error) {
	switch s {
	case "manual":
		return SourceManual, nil
	case "data_sync":
		return SourceDataSync, nil
	case "workflow_engine":
		return SourceWorkflowEngine, nil
	case "ai_coordinator":
		return SourceAICoordinator, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// valid reports whether s is one of the defined sources.
func (s Source) valid() bool {
	return s >= SourceManual && s <= SourceAICoordinator
}

// Path is the routing outcome of a policy evaluation.
type Path int

const (
	PathExecution   Path = iota // Execute immediately, no oversight.
	PathSupervision             // Execute under a monitored session.
	PathProposal                // Blocked pending human approval.
	PathTraining                // Blocked and queued as training material.
)

func (p Path) String() string {
	switch p {
	case PathExecution:
		return "execution"
	case PathSupervision:
		return "supervision"
	case PathProposal:
		return "proposal"
	case PathTraining:
		return "training"
	default:
		return "unknown"
	}
}

// Request is one inbound trigger: a trigger source asking an agent to act.
// Constructed per call, never persisted directly; a snapshot is embedded
// into a blocked-trigger record when execution is denied.
type Request struct {
	AgentID string
	Source  Source
	Type    string         // Action category, display only.
	Context map[string]any // Opaque payload forwarded into audit records.
	UserID  string         // Set when a human directly initiated the trigger.
}

// displayType returns the action category for audit records and reasons.
// Falls back to well-known context keys when Type is unset.
func (r *Request) displayType() string {
	if r.Type != "" {
		return r.Type
	}
	for _, key := range []string{"action_type", "trigger_type"} {
		if v, ok := r.Context[key].(string); ok && v != "" {
			return v
		}
	}
	return "unspecified"
}

// Decision is the outcome of intercepting one trigger.
// Invariant: Execute is true iff Path is PathExecution or PathSupervision.
type Decision struct {
	AgentID    string
	Path       Path
	Execute    bool
	Maturity   maturity.Level
	Reason     string                // Non-empty human sentence naming the governing policy.
	Blocked    *audit.BlockedTrigger // Set only for PathTraining and PathProposal.
	ProposalID string                // Set when a proposal was created.
	Session    *supervision.Session  // Set only for PathSupervision.
}
