// Package audit records blocked triggers as an append-only trail.
// Every trigger denied full execution produces a BlockedTrigger snapshot,
// consumed later by the training service to render the human review queue.
// Records are never mutated after creation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// BlockedTrigger is the durable snapshot taken when a non-manual trigger is
// denied full execution. Maturity and confidence are captured at block time;
// later promotions do not rewrite history.
type BlockedTrigger struct {
	AgentID           string         `json:"agent_id"`
	AgentName         string         `json:"agent_name"`
	MaturityAtBlock   string         `json:"maturity_at_block"`
	ConfidenceAtBlock float64        `json:"confidence_at_block"`
	TriggerSource     string         `json:"trigger_source"`
	TriggerType       string         `json:"trigger_type"`
	TriggerContext    map[string]any `json:"trigger_context,omitempty"`
	RoutingDecision   string         `json:"routing_decision"`
	BlockReason       string         `json:"block_reason"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Recorder appends blocked-trigger records.
type Recorder interface {
	Record(ctx context.Context, bt *BlockedTrigger) error
	Close() error
}

// BlockedStore is the persistence contract for blocked-trigger records.
// Append-only: no update or single-delete operations exist. DeleteOlderThan
// is retention trimming, not mutation of live records.
type BlockedStore interface {
	Append(ctx context.Context, bt *BlockedTrigger) error
	ListRecent(ctx context.Context, agentID string, limit int) ([]BlockedTrigger, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// FileRecorder writes blocked triggers as append-only JSONL.
// Each record is a single JSON line. Thread-safe.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileRecorder opens (or creates) the blocked-trigger log in append-only
// mode. File permissions are 0600 (owner read/write only).
func NewFileRecorder(path string, logger *slog.Logger) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening blocked-trigger log %s: %w", path, err)
	}
	return &FileRecorder{
		file:   f,
		logger: logger,
	}, nil
}

// Record serializes the blocked trigger as JSON and appends it to the log.
// Marshal happens outside the lock; only the file write is serialized.
func (r *FileRecorder) Record(ctx context.Context, bt *BlockedTrigger) error {
	data, err := json.Marshal(bt)
	if err != nil {
		return fmt.Errorf("marshaling blocked trigger: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	_, writeErr := r.file.Write(data)
	r.mu.Unlock()

	if writeErr != nil {
		return fmt.Errorf("writing blocked trigger: %w", writeErr)
	}

	r.logger.InfoContext(ctx, "blocked trigger recorded",
		slog.String("agent_id", bt.AgentID),
		slog.String("source", bt.TriggerSource),
		slog.String("decision", bt.RoutingDecision),
	)

	return nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// StoreRecorder adapts a BlockedStore to the Recorder interface.
type StoreRecorder struct {
	store  BlockedStore
	logger *slog.Logger
}

// NewStoreRecorder creates a database-backed blocked-trigger recorder.
func NewStoreRecorder(store BlockedStore, logger *slog.Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

// Record appends the blocked trigger to the database.
func (r *StoreRecorder) Record(ctx context.Context, bt *BlockedTrigger) error {
	if err := r.store.Append(ctx, bt); err != nil {
		r.logger.ErrorContext(ctx, "failed to record blocked trigger",
			slog.String("agent_id", bt.AgentID),
			slog.String("error", err.Error()),
		)
		return err
	}

	r.logger.InfoContext(ctx, "blocked trigger recorded (db)",
		slog.String("agent_id", bt.AgentID),
		slog.String("source", bt.TriggerSource),
		slog.String("decision", bt.RoutingDecision),
	)
	return nil
}

// Close is a no-op for the store-backed recorder. The database connection
// is managed by the storage layer and closed separately.
func (r *StoreRecorder) Close() error {
	return nil
}

// MultiRecorder fans a record out to several recorders, typically the
// database trail plus the local JSONL log. Record fails if any recorder
// fails; by then the record has still reached every recorder before it
// in the list.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder combines recorders. Order matters: earlier recorders
// are written first.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Record appends the blocked trigger to every recorder.
func (r *MultiRecorder) Record(ctx context.Context, bt *BlockedTrigger) error {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, bt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every recorder, returning the first error.
func (r *MultiRecorder) Close() error {
	var firstErr error
	for _, rec := range r.recorders {
		if err := rec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
