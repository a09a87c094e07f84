package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/maturity"
	"github.com/jkaninda/mlinzi/internal/registry"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

// MaturityResolver resolves an agent's maturity snapshot.
// Satisfied by *maturity.Resolver.
type MaturityResolver interface {
	Resolve(ctx context.Context, agentID string) (*maturity.Snapshot, error)
}

// ProposalCreator creates a human-reviewable proposal from a blocked trigger.
// Satisfied by the training package's proposal managers.
type ProposalCreator interface {
	CreateFromBlocked(ctx context.Context, bt *audit.BlockedTrigger, kind training.Kind) (string, error)
}

// SessionOpener opens a supervised-execution session.
// Satisfied by *supervision.Manager.
type SessionOpener interface {
	Open(ctx context.Context, agentID, workspaceID, supervisorID, triggerType string) (*supervision.Session, error)
}

// Interceptor is the routing decision engine. Given a trigger, it resolves
// the agent's maturity tier and applies the routing policy:
//
//	manual     -> execution (always, with a warning for low-maturity agents)
//	student    -> training (blocked; audit record + training proposal)
//	intern     -> proposal (blocked; audit record + approval proposal)
//	supervised -> supervision (executes under a monitored session)
//	autonomous -> execution
//
// Policy outcomes are never errors: a blocked trigger is a successful
// Decision with Execute false. Only infrastructure failures (registry or
// storage unreachable) surface as errors.
type Interceptor struct {
	resolver   MaturityResolver
	proposals  ProposalCreator
	sessions   SessionOpener
	recorder   audit.Recorder
	thresholds maturity.Thresholds
	logger     *slog.Logger
}

// NewInterceptor creates an Interceptor. All collaborators are required.
func NewInterceptor(
	resolver MaturityResolver,
	proposals ProposalCreator,
	sessions SessionOpener,
	recorder audit.Recorder,
	thresholds maturity.Thresholds,
	logger *slog.Logger,
) *Interceptor {
	return &Interceptor{
		resolver:   resolver,
		proposals:  proposals,
		sessions:   sessions,
		recorder:   recorder,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Intercept evaluates one trigger and returns the routing decision,
// producing any required side effect (audit record, proposal, session).
// Evaluation order: source validation, manual check, maturity resolution,
// policy branch, side effect.
func (i *Interceptor) Intercept(ctx context.Context, req *Request) (*Decision, error) {
	if !req.Source.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, int(req.Source))
	}

	snap, lvl, known, err := i.resolveMaturity(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	var decision *Decision
	if req.Source == SourceManual {
		decision = i.decideManual(req, snap, lvl, known)
	} else {
		decision, err = i.decideBySource(ctx, req, snap, lvl, known)
		if err != nil {
			return nil, err
		}
	}

	i.logger.InfoContext(ctx, "trigger intercepted",
		slog.String("agent_id", req.AgentID),
		slog.String("source", req.Source.String()),
		slog.String("maturity", lvl.String()),
		slog.String("path", decision.Path.String()),
		slog.Bool("execute", decision.Execute),
	)

	return decision, nil
}

// resolveMaturity resolves the agent's snapshot and effective level.
// Unknown agents fail safe to Student: blocking is always safer than letting
// an unregistered agent act unsupervised. Infrastructure errors propagate.
func (i *Interceptor) resolveMaturity(ctx context.Context, agentID string) (*maturity.Snapshot, maturity.Level, bool, error) {
	snap, err := i.resolver.Resolve(ctx, agentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return &maturity.Snapshot{AgentID: agentID}, maturity.Student, false, nil
		}
		return nil, 0, false, err
	}
	return snap, i.thresholds.LevelOf(snap.Status, snap.Confidence), true, nil
}

// decideManual implements the manual-override rule: a human-initiated
// trigger always executes, regardless of maturity. Low-maturity agents get
// a warning in the reason but are not blocked.
func (i *Interceptor) decideManual(req *Request, snap *maturity.Snapshot, lvl maturity.Level, known bool) *Decision {
	reason := "manual trigger: human-initiated actions always execute"
	if !known {
		reason += fmt.Sprintf(" (warning: agent %s is not registered, treated as %s)", req.AgentID, maturity.Student)
	} else if lvl <= maturity.Intern {
		reason += fmt.Sprintf(" (warning: agent is %s, proceeding only because the trigger was manual)", lvl)
	}
	return &Decision{
		AgentID:  req.AgentID,
		Path:     PathExecution,
		Execute:  true,
		Maturity: lvl,
		Reason:   reason,
	}
}

// decideBySource routes a non-manual trigger by the agent's maturity tier.
func (i *Interceptor) decideBySource(ctx context.Context, req *Request, snap *maturity.Snapshot, lvl maturity.Level, known bool) (*Decision, error) {
	switch lvl {
	case maturity.Student:
		reason := fmt.Sprintf("agent is %s: execution blocked, trigger routed to training", maturity.Student)
		if !known {
			reason = fmt.Sprintf("agent %s is not registered: execution blocked, trigger routed to training", req.AgentID)
		}
		return i.block(ctx, req, snap, lvl, PathTraining, training.KindTraining, reason)

	case maturity.Intern:
		reason := fmt.Sprintf("agent is %s: execution blocked pending human approval of the proposal", maturity.Intern)
		return i.block(ctx, req, snap, lvl, PathProposal, training.KindApproval, reason)

	case maturity.Supervised:
		session, err := i.sessions.Open(ctx, req.AgentID, snap.WorkspaceID, req.UserID, req.displayType())
		if err != nil {
			return nil, fmt.Errorf("opening supervision session for %s: %w", req.AgentID, err)
		}
		return &Decision{
			AgentID:  req.AgentID,
			Path:     PathSupervision,
			Execute:  true,
			Maturity: lvl,
			Reason:   fmt.Sprintf("agent is %s: executing immediately under monitored session %s", maturity.Supervised, session.ID),
			Session:  session,
		}, nil

	default: // maturity.Autonomous
		return &Decision{
			AgentID:  req.AgentID,
			Path:     PathExecution,
			Execute:  true,
			Maturity: lvl,
			Reason:   fmt.Sprintf("agent is %s: full autonomous execution approved", maturity.Autonomous),
		}, nil
	}
}

// block snapshots the trigger into an audit record, creates the proposal,
// and returns the blocked decision. Side-effect failures are infrastructure
// errors and propagate.
func (i *Interceptor) block(
	ctx context.Context,
	req *Request,
	snap *maturity.Snapshot,
	lvl maturity.Level,
	path Path,
	kind training.Kind,
	reason string,
) (*Decision, error) {
	blocked := &audit.BlockedTrigger{
		AgentID:           req.AgentID,
		AgentName:         snap.Name,
		MaturityAtBlock:   lvl.String(),
		ConfidenceAtBlock: snap.Confidence,
		TriggerSource:     req.Source.String(),
		TriggerType:       req.displayType(),
		TriggerContext:    req.Context,
		RoutingDecision:   path.String(),
		BlockReason:       reason,
		CreatedAt:         time.Now().UTC(),
	}

	if err := i.recorder.Record(ctx, blocked); err != nil {
		return nil, fmt.Errorf("recording blocked trigger for %s: %w", req.AgentID, err)
	}

	proposalID, err := i.proposals.CreateFromBlocked(ctx, blocked, kind)
	if err != nil {
		return nil, fmt.Errorf("creating %s proposal for %s: %w", kind, req.AgentID, err)
	}

	return &Decision{
		AgentID:    req.AgentID,
		Path:       path,
		Execute:    false,
		Maturity:   lvl,
		Reason:     reason,
		Blocked:    blocked,
		ProposalID: proposalID,
	}, nil
}
