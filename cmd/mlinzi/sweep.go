package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/maintenance"
)

var sweepConfigPath string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run all maintenance sweeps once and exit",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", config.DefaultConfigPath(), "path to config file")
}

func runSweep(_ *cobra.Command, _ []string) error {
	sc, err := openShared(sweepConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	sweeper := maintenance.New(
		sc.Store.Proposals(),
		sc.Sessions,
		sc.Store.BlockedTriggers(),
		sc.Config.Maintenance,
		sc.Obs.MetricsOrNil(),
		sc.Logger,
	)
	sweeper.RunOnce(context.Background())
	return nil
}
