// Package maintenance runs the periodic background sweeps: proposal
// expiry, stale-session cancellation, and audit retention.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jkaninda/mlinzi/internal/audit"
	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/observability"
	"github.com/jkaninda/mlinzi/internal/supervision"
	"github.com/jkaninda/mlinzi/internal/training"
)

// Default cron schedules, standard 5-field expressions.
const (
	defaultProposalSweepCron  = "*/5 * * * *"
	defaultSessionSweepCron   = "*/10 * * * *"
	defaultAuditRetentionCron = "0 3 * * *"
)

// Sweeper schedules and runs the maintenance sweeps.
type Sweeper struct {
	proposals training.ProposalStore
	sessions  *supervision.Manager
	blocked   audit.BlockedStore
	config    *config.MaintenanceConfig
	metrics   *observability.MetricsCollector
	logger    *slog.Logger

	cron *cron.Cron
}

// New creates a Sweeper. Any of proposals, sessions, or blocked may be nil
// to skip that sweep.
func New(
	proposals training.ProposalStore,
	sessions *supervision.Manager,
	blocked audit.BlockedStore,
	cfg *config.MaintenanceConfig,
	metrics *observability.MetricsCollector,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		proposals: proposals,
		sessions:  sessions,
		blocked:   blocked,
		config:    cfg,
		metrics:   metrics,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the sweeps and starts the cron loop.
// Returns a stop function (matches the background-loop pattern elsewhere).
func (s *Sweeper) Start(ctx context.Context) (func(), error) {
	if s.config == nil || !s.config.Enabled {
		return func() {}, nil
	}

	type sweep struct {
		name string
		expr string
		run  func(context.Context)
	}

	sweeps := []sweep{}
	if s.proposals != nil {
		sweeps = append(sweeps, sweep{"proposals", schedule(s.config.ProposalSweepCron, defaultProposalSweepCron), s.sweepProposals})
	}
	if s.sessions != nil {
		sweeps = append(sweeps, sweep{"sessions", schedule(s.config.SessionSweepCron, defaultSessionSweepCron), s.sweepSessions})
	}
	if s.blocked != nil {
		sweeps = append(sweeps, sweep{"audit", schedule(s.config.AuditRetentionCron, defaultAuditRetentionCron), s.sweepBlocked})
	}

	for _, sw := range sweeps {
		run := sw.run
		if _, err := s.cron.AddFunc(sw.expr, func() { run(ctx) }); err != nil {
			return nil, fmt.Errorf("scheduling %s sweep (%q): %w", sw.name, sw.expr, err)
		}
		s.logger.InfoContext(ctx, "maintenance sweep scheduled",
			slog.String("sweep", sw.name),
			slog.String("cron", sw.expr),
		)
	}

	s.cron.Start()

	return func() {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}, nil
}

func (s *Sweeper) sweepProposals(ctx context.Context) {
	if err := s.proposals.ExpireOld(ctx); err != nil {
		s.fail(ctx, "proposals", err)
		return
	}
	if err := s.proposals.DeleteResolved(ctx, s.config.ProposalRetention()); err != nil {
		s.fail(ctx, "proposals", err)
		return
	}
	s.ok(ctx, "proposals", -1)
}

func (s *Sweeper) sweepSessions(ctx context.Context) {
	n, err := s.sessions.CloseStale(ctx, s.config.SessionMaxAge())
	if err != nil {
		s.fail(ctx, "sessions", err)
		return
	}
	s.ok(ctx, "sessions", n)
}

func (s *Sweeper) sweepBlocked(ctx context.Context) {
	n, err := s.blocked.DeleteOlderThan(ctx, s.config.AuditRetention())
	if err != nil {
		s.fail(ctx, "audit", err)
		return
	}
	s.ok(ctx, "audit", n)
}

func (s *Sweeper) ok(ctx context.Context, name string, affected int64) {
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues(name, "success").Inc()
	}
	attrs := []any{slog.String("sweep", name)}
	if affected >= 0 {
		attrs = append(attrs, slog.Int64("affected", affected))
	}
	s.logger.DebugContext(ctx, "maintenance sweep completed", attrs...)
}

func (s *Sweeper) fail(ctx context.Context, name string, err error) {
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues(name, "error").Inc()
	}
	s.logger.ErrorContext(ctx, "maintenance sweep failed",
		slog.String("sweep", name),
		slog.String("error", err.Error()),
	)
}

func schedule(expr, fallback string) string {
	if expr != "" {
		return expr
	}
	return fallback
}

// RunOnce executes every configured sweep immediately. Used by the CLI.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if s.proposals != nil {
		s.sweepProposals(ctx)
	}
	if s.sessions != nil {
		s.sweepSessions(ctx)
	}
	if s.blocked != nil {
		s.sweepBlocked(ctx)
	}
}
