// Package storage defines the unified Store interface that abstracts all persistence operations.
// Two backends are provided: SQLite (default, zero-config) and PostgreSQL (production).
package storage

import (
	"context"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/registry"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

// Store is the unified persistence interface for Mlinzi.
// It provides access to all domain-specific sub-stores through accessor
// methods. Both SQLite and PostgreSQL backends implement this interface;
// the returned sub-stores share the same underlying connection.
type Store interface {
	Agents() registry.Store
	Proposals() training.ProposalStore
	Sessions() supervision.SessionStore
	BlockedTriggers() audit.BlockedStore

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name ("sqlite" or "postgres").
	Driver() string
}

// DriverSQLite is the SQLite driver name.
const DriverSQLite = "sqlite"

// DriverPostgres is the PostgreSQL driver name.
const DriverPostgres = "postgres"
