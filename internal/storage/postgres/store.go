package postgres

import (
	"context"
	"sync"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/registry"
	"github.com/jkaninda/mlinzi/internal/storage"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

// Store implements storage.Store backed by PostgreSQL.
// It wraps the existing DB and lazily creates sub-store repositories.
type Store struct {
	pgDB *DB

	mu        sync.Mutex
	agents    registry.Store
	proposals training.ProposalStore
	sessions  supervision.SessionStore
	blocked   audit.BlockedStore
}

// NewStore wraps an existing DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{pgDB: pgDB}
}

func (s *Store) Migrate(_ context.Context) error {
	// PostgreSQL migration is done in Open() via autoMigrate.
	return nil
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// GormDB returns the underlying GORM DB for direct access when needed.
func (s *Store) GormDB() *DB {
	return s.pgDB
}

// --- Sub-store accessors ---

func (s *Store) Agents() registry.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agents == nil {
		s.agents = NewAgentRepository(s.pgDB.GormDB())
	}
	return s.agents
}

func (s *Store) Proposals() training.ProposalStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proposals == nil {
		s.proposals = NewProposalRepository(s.pgDB.GormDB())
	}
	return s.proposals
}

func (s *Store) Sessions() supervision.SessionStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = NewSessionRepository(s.pgDB.GormDB())
	}
	return s.sessions
}

func (s *Store) BlockedTriggers() audit.BlockedStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked == nil {
		s.blocked = NewBlockedTriggerRepository(s.pgDB.GormDB())
	}
	return s.blocked
}
