package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/maturity"
	"github.com/jkaninda/mlinzi/internal/observability"
	"github.com/jkaninda/mlinzi/internal/storage"
	pgstore "github.com/jkaninda/mlinzi/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/mlinzi/internal/storage/sqlite"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
	"github.com/jkaninda/mlinzi/internal/trigger"
)

// SharedComponents holds all initialized subsystems that every command
// requires. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store // Unified store (SQLite or PostgreSQL).

	Obs         *observability.Observability
	Cache       *maturity.RistrettoCache
	Resolver    *maturity.Resolver
	Proposals   training.ProposalManager
	Sessions    *supervision.Manager
	Recorder    audit.Recorder
	Interceptor observability.Interceptor // Instrumented when metrics are enabled.

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between commands.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Ensure data directory exists.
	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Storage (unified: SQLite default, PostgreSQL optional).
	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})

	// Run migrations.
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("storage initialized", slog.String("driver", store.Driver()))

	// Maturity cache + resolver.
	cache, err := maturity.NewRistrettoCache(cfg.Cache.MaxCostBytes)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing maturity cache: %w", err)
	}
	sc.Cache = cache
	sc.addCleanup(func() {
		if err := cache.Close(); err != nil {
			logger.Error("closing maturity cache", slog.String("error", err.Error()))
		}
	})

	resolver := maturity.NewResolver(cache, store.Agents(), cfg.Cache.TTL(), logger)
	if obs != nil && obs.Metrics != nil {
		metrics := obs.Metrics
		resolver.OnLookup(func(outcome string) {
			metrics.CacheLookupsTotal.WithLabelValues(outcome).Inc()
		})
	}
	sc.Resolver = resolver
	logger.Debug("maturity resolver initialized", slog.String("cache_ttl", cfg.Cache.TTL().String()))

	// Proposal manager (store-backed).
	sc.Proposals = training.NewDBManager(store.Proposals(), cfg.Policy.ProposalTTL(), logger)
	logger.Debug("proposal manager initialized", slog.String("ttl", cfg.Policy.ProposalTTL().String()))

	// Supervision sessions.
	sc.Sessions = supervision.NewManager(store.Sessions(), logger)

	// Blocked-trigger trail: database plus local JSONL log.
	fileRec, err := audit.NewFileRecorder(cfg.BlockedLogPath(), logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing blocked-trigger log: %w", err)
	}
	recorder := audit.NewMultiRecorder(
		audit.NewStoreRecorder(store.BlockedTriggers(), logger),
		fileRec,
	)
	sc.Recorder = recorder
	sc.addCleanup(func() {
		if err := recorder.Close(); err != nil {
			logger.Error("closing blocked-trigger recorder", slog.String("error", err.Error()))
		}
	})

	// Interceptor.
	student, intern, supervised := cfg.Thresholds()
	thresholds := maturity.Thresholds{
		Student:    student,
		Intern:     intern,
		Supervised: supervised,
	}
	var interceptor observability.Interceptor = trigger.NewInterceptor(
		resolver, sc.Proposals, sc.Sessions, recorder, thresholds, logger,
	)
	if obs != nil && obs.Metrics != nil {
		interceptor = observability.NewInstrumentedInterceptor(interceptor, obs.Metrics, obs.TracerOrNil())
	}
	sc.Interceptor = interceptor

	return sc, nil
}

// initStore creates the appropriate storage backend from config.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch driver := cfg.StorageDriverName(); driver {
	case "postgres":
		return initPostgresStore(cfg, logger)
	case "sqlite":
		return initSQLiteStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	dbPath := cfg.DatabasePath()
	journalMode := "wal"

	if cfg.Storage != nil && cfg.Storage.SQLite != nil {
		if cfg.Storage.SQLite.Path != "" {
			dbPath = cfg.Storage.SQLite.Path
		}
		if cfg.Storage.SQLite.JournalMode != "" {
			journalMode = cfg.Storage.SQLite.JournalMode
		}
	}

	return sqlitestore.Open(sqlitestore.Config{
		Path:        dbPath,
		JournalMode: journalMode,
	}, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var dsn string
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		dsn = cfg.Storage.Postgres.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required (set storage.postgres.dsn or MLINZI_DB_DSN)")
	}

	pgCfg := pgstore.Config{DSN: dsn}
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		pgCfg.MaxOpenConns = cfg.Storage.Postgres.MaxOpenConns
		pgCfg.MaxIdleConns = cfg.Storage.Postgres.MaxIdleConns
		pgCfg.ConnMaxLifetime = time.Duration(cfg.Storage.Postgres.ConnMaxLifetimeS) * time.Second
	}

	pgDB, err := pgstore.Open(pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	return pgstore.NewStore(pgDB), nil
}

// newLogger builds the JSON logger every command writes to stderr.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
