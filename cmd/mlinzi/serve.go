package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/maintenance"
	"github.com/jkaninda/mlinzi/internal/observability"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interceptor daemon (maintenance sweeps, metrics)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `mlinzi --config path` and `mlinzi serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	}
}

// runServe starts Mlinzi in daemon mode: background maintenance sweeps
// plus the Prometheus exposition endpoint.
func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load(goutils.Env("MLINZI_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	logger.Info("starting in serve mode", slog.String("config", serveConfigPath))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Maintenance sweeper.
	sweeper := maintenance.New(
		sc.Store.Proposals(),
		sc.Sessions,
		sc.Store.BlockedTriggers(),
		cfg.Maintenance,
		sc.Obs.MetricsOrNil(),
		logger,
	)
	stopSweeper, err := sweeper.Start(ctx)
	if err != nil {
		return err
	}
	defer stopSweeper()

	// Metrics exposition.
	var metricsCfg *config.MetricsConfig
	if cfg.Observability != nil {
		metricsCfg = cfg.Observability.Metrics
	}
	metricsServer := observability.NewMetricsServer(metricsCfg, sc.Obs.MetricsOrNil(), logger)
	stopMetrics := metricsServer.Start(ctx)
	defer stopMetrics()

	logger.Info("mlinzi running",
		slog.String("driver", sc.Store.Driver()),
		slog.Bool("maintenance", cfg.Maintenance != nil && cfg.Maintenance.Enabled),
		slog.Bool("metrics", metricsServer != nil),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
