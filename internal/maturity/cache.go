package maturity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Snapshot is the cached view of an agent's maturity at resolution time.
type Snapshot struct {
	AgentID     string  `json:"agent_id"`
	Name        string  `json:"name"`
	WorkspaceID string  `json:"workspace_id"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
}

// Cache is the injected contract for the maturity cache. Implementations
// are bounded-staleness optimizations over the registry, never the source
// of truth: a Get miss or error is always recoverable by a registry read.
type Cache interface {
	Get(ctx context.Context, agentID string) (*Snapshot, bool, error)
	Set(ctx context.Context, agentID string, snap *Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, agentID string) error
	Close() error
}

// RistrettoCache implements Cache with dgraph-io/ristretto as an in-process
// TTL cache. Snapshots are stored JSON-encoded; agent counts are small, so
// the default cost budget is generous.
type RistrettoCache struct {
	c *ristretto.Cache[string, []byte]
}

// DefaultCacheMaxCost is the default total size budget for cached snapshots.
const DefaultCacheMaxCost = 1 << 20 // 1 MiB

// NewRistrettoCache creates a ristretto-backed maturity cache.
// maxCostBytes <= 0 selects DefaultCacheMaxCost.
func NewRistrettoCache(maxCostBytes int64) (*RistrettoCache, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = DefaultCacheMaxCost
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{c: c}, nil
}

// Get retrieves a snapshot if present and not expired.
func (r *RistrettoCache) Get(_ context.Context, agentID string) (*Snapshot, bool, error) {
	data, found := r.c.Get(agentID)
	if !found {
		return nil, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry is treated as a miss; the write-through path replaces it.
		r.c.Del(agentID)
		return nil, false, nil
	}
	return &snap, true, nil
}

// Set stores a snapshot with the given TTL. Ristretto admits writes
// asynchronously; Wait makes the entry visible to an immediate Get, which
// the write-through path relies on.
func (r *RistrettoCache) Set(_ context.Context, agentID string, snap *Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	r.c.SetWithTTL(agentID, data, int64(len(data)), ttl)
	r.c.Wait()
	return nil
}

// Delete removes a snapshot, forcing the next resolve to hit the registry.
func (r *RistrettoCache) Delete(_ context.Context, agentID string) error {
	r.c.Del(agentID)
	return nil
}

// Close shuts down the cache and releases resources.
func (r *RistrettoCache) Close() error {
	r.c.Close()
	return nil
}

var _ Cache = (*RistrettoCache)(nil)
