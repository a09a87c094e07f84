// Mlinzi — maturity-based trigger interception for autonomous agent fleets.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mlinzi",
	Short: "Mlinzi — maturity-based trigger interception for autonomous agent fleets.",
	Long: `Mlinzi intercepts every trigger aimed at an autonomous agent and routes it
by the agent's maturity tier: student triggers become training material,
intern triggers await human approval, supervised agents execute under a
monitored session, and autonomous agents execute freely. Manual triggers
always execute.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, interceptCmd, proposalsCmd, sessionsCmd, agentsCmd, sweepCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
