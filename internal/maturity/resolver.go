package maturity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkaninda/mlinzi/internal/registry"
)

// DefaultTTL is the default lifetime of a cached maturity snapshot.
const DefaultTTL = 60 * time.Second

// Resolver resolves an agent's maturity snapshot, cache first, registry on
// miss, writing through to the cache. Cache failures never block resolution;
// registry failures propagate.
type Resolver struct {
	cache    Cache
	agents   registry.Store
	ttl      time.Duration
	logger   *slog.Logger
	onLookup func(outcome string) // Optional cache hit/miss metrics hook.
}

// NewResolver creates a Resolver. ttl <= 0 selects DefaultTTL.
func NewResolver(cache Cache, agents registry.Store, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		cache:  cache,
		agents: agents,
		ttl:    ttl,
		logger: logger,
	}
}

// OnLookup registers a hook invoked with "hit" or "miss" on every resolve.
func (r *Resolver) OnLookup(fn func(outcome string)) { r.onLookup = fn }

// Resolve returns the maturity snapshot for the agent.
// Returns registry.ErrAgentNotFound (wrapped) when the agent is unknown;
// callers decide the fail-safe policy for that case.
func (r *Resolver) Resolve(ctx context.Context, agentID string) (*Snapshot, error) {
	if snap, ok := r.lookupCache(ctx, agentID); ok {
		if r.onLookup != nil {
			r.onLookup("hit")
		}
		return snap, nil
	}
	if r.onLookup != nil {
		r.onLookup("miss")
	}

	agent, err := r.agents.GetByAgentID(ctx, agentID)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return nil, fmt.Errorf("resolving maturity for %s: %w", agentID, err)
		}
		return nil, fmt.Errorf("registry lookup for %s: %w", agentID, err)
	}

	snap := &Snapshot{
		AgentID:     agent.AgentID,
		Name:        agent.Name,
		WorkspaceID: agent.WorkspaceID,
		Status:      agent.MaturityStatus,
		Confidence:  agent.ConfidenceScore,
	}

	// Write-through. Concurrent resolves for the same agent race here;
	// last write wins, which is fine for a bounded-staleness cache.
	if err := r.cache.Set(ctx, agentID, snap, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "maturity cache write failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}

	return snap, nil
}

// Invalidate drops the cached snapshot so the next resolve re-reads the
// registry. Called after an agent is promoted or demoted.
func (r *Resolver) Invalidate(ctx context.Context, agentID string) {
	if err := r.cache.Delete(ctx, agentID); err != nil {
		r.logger.WarnContext(ctx, "maturity cache invalidation failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Resolver) lookupCache(ctx context.Context, agentID string) (*Snapshot, bool) {
	snap, ok, err := r.cache.Get(ctx, agentID)
	if err != nil {
		// Cache errors must not block routing decisions.
		r.logger.WarnContext(ctx, "maturity cache read failed, falling back to registry",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return snap, ok
}
