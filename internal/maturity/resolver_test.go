package maturity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jkaninda/mlinzi/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fakes ---

type fakeAgentStore struct {
	agents map[string]*registry.Agent
	err    error
	calls  int
}

func (f *fakeAgentStore) GetByAgentID(_ context.Context, agentID string) (*registry.Agent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.agents[agentID]
	if !ok {
		return nil, registry.ErrAgentNotFound
	}
	return a, nil
}

func (f *fakeAgentStore) List(_ context.Context, _ string) ([]registry.Agent, error) { return nil, nil }
func (f *fakeAgentStore) Upsert(_ context.Context, _ *registry.Agent) error          { return nil }
func (f *fakeAgentStore) Delete(_ context.Context, _ string) error                   { return nil }

type flakyCache struct {
	inner  Cache
	getErr error
	setErr error
}

func (f *flakyCache) Get(ctx context.Context, agentID string) (*Snapshot, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.inner.Get(ctx, agentID)
}

func (f *flakyCache) Set(ctx context.Context, agentID string, snap *Snapshot, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.inner.Set(ctx, agentID, snap, ttl)
}

func (f *flakyCache) Delete(ctx context.Context, agentID string) error {
	return f.inner.Delete(ctx, agentID)
}

func (f *flakyCache) Close() error { return f.inner.Close() }

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(0)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testAgent(agentID string) *registry.Agent {
	return &registry.Agent{
		AgentID:         agentID,
		Name:            "agent " + agentID,
		WorkspaceID:     "ws-1",
		MaturityStatus:  "intern",
		ConfidenceScore: 0.6,
		Enabled:         true,
	}
}

// --- RistrettoCache ---

func TestRistrettoCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	snap := &Snapshot{AgentID: "a1", Name: "one", Status: "intern", Confidence: 0.6}
	if err := c.Set(ctx, "a1", snap, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit immediately after set")
	}
	if got.AgentID != "a1" || got.Status != "intern" || got.Confidence != 0.6 {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestRistrettoCache_Miss(t *testing.T) {
	c := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a1", &Snapshot{AgentID: "a1"}, time.Minute)
	if err := c.Delete(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, ok, _ := c.Get(ctx, "a1")
	if ok {
		t.Error("expected a miss after delete")
	}
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a1", &Snapshot{AgentID: "a1"}, 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	_, ok, _ := c.Get(ctx, "a1")
	if ok {
		t.Error("expected the entry to expire")
	}
}

func TestRistrettoCache_Close(t *testing.T) {
	c, err := NewRistrettoCache(0)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}

	var cache Cache = c
	if err := cache.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

// --- Resolver ---

func TestResolver_MissThenHit(t *testing.T) {
	store := &fakeAgentStore{agents: map[string]*registry.Agent{"a1": testAgent("a1")}}
	r := NewResolver(newTestCache(t), store, time.Minute, testLogger())

	var outcomes []string
	r.OnLookup(func(outcome string) { outcomes = append(outcomes, outcome) })

	ctx := context.Background()
	snap, err := r.Resolve(ctx, "a1")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if snap.Status != "intern" || snap.WorkspaceID != "ws-1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if store.calls != 1 {
		t.Fatalf("registry calls = %d, want 1", store.calls)
	}

	// Second resolve must come from the cache.
	if _, err := r.Resolve(ctx, "a1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("registry calls = %d, want 1 (cache should serve the second resolve)", store.calls)
	}

	if len(outcomes) != 2 || outcomes[0] != "miss" || outcomes[1] != "hit" {
		t.Errorf("lookup outcomes = %v, want [miss hit]", outcomes)
	}
}

func TestResolver_UnknownAgent(t *testing.T) {
	store := &fakeAgentStore{}
	r := NewResolver(newTestCache(t), store, time.Minute, testLogger())

	_, err := r.Resolve(context.Background(), "ghost")
	if !errors.Is(err, registry.ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestResolver_RegistryErrorPropagates(t *testing.T) {
	store := &fakeAgentStore{err: errors.New("connection refused")}
	r := NewResolver(newTestCache(t), store, time.Minute, testLogger())

	_, err := r.Resolve(context.Background(), "a1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, registry.ErrAgentNotFound) {
		t.Error("infrastructure failure must not look like an unknown agent")
	}
}

func TestResolver_CacheReadErrorFallsBack(t *testing.T) {
	store := &fakeAgentStore{agents: map[string]*registry.Agent{"a1": testAgent("a1")}}
	cache := &flakyCache{inner: newTestCache(t), getErr: errors.New("cache broken")}
	r := NewResolver(cache, store, time.Minute, testLogger())

	snap, err := r.Resolve(context.Background(), "a1")
	if err != nil {
		t.Fatalf("resolve must survive a cache read failure: %v", err)
	}
	if snap.AgentID != "a1" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestResolver_CacheWriteErrorSwallowed(t *testing.T) {
	store := &fakeAgentStore{agents: map[string]*registry.Agent{"a1": testAgent("a1")}}
	cache := &flakyCache{inner: newTestCache(t), setErr: errors.New("cache full")}
	r := NewResolver(cache, store, time.Minute, testLogger())

	if _, err := r.Resolve(context.Background(), "a1"); err != nil {
		t.Fatalf("resolve must survive a cache write failure: %v", err)
	}
}

func TestResolver_Invalidate(t *testing.T) {
	store := &fakeAgentStore{agents: map[string]*registry.Agent{"a1": testAgent("a1")}}
	r := NewResolver(newTestCache(t), store, time.Minute, testLogger())

	ctx := context.Background()
	_, _ = r.Resolve(ctx, "a1")

	// Promotion: update the record and invalidate.
	store.agents["a1"].MaturityStatus = "autonomous"
	r.Invalidate(ctx, "a1")

	snap, err := r.Resolve(ctx, "a1")
	if err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if snap.Status != "autonomous" {
		t.Errorf("status = %q, want autonomous (stale cache served after invalidate)", snap.Status)
	}
	if store.calls != 2 {
		t.Errorf("registry calls = %d, want 2", store.calls)
	}
}
