package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/maturity"
	"github.com/jkaninda/mlinzi/internal/registry"
)

var (
	agentsConfigPath string
	agentsWorkspace  string
	agentsName       string
	agentsStatus     string
	agentsConfidence float64
	agentsDisabled   bool
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage agent registry records",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	RunE:  runAgentsList,
}

var agentsPutCmd = &cobra.Command{
	Use:   "put <agent-id>",
	Short: "Create or update an agent record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsPut,
}

var agentsDeleteCmd = &cobra.Command{
	Use:   "delete <agent-id>",
	Short: "Delete an agent record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsDelete,
}

func init() {
	agentsCmd.PersistentFlags().StringVar(&agentsConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	agentsListCmd.Flags().StringVar(&agentsWorkspace, "workspace", "", "filter by workspace ID")
	agentsPutCmd.Flags().StringVar(&agentsName, "name", "", "display name")
	agentsPutCmd.Flags().StringVar(&agentsWorkspace, "workspace", "", "workspace ID")
	agentsPutCmd.Flags().StringVar(&agentsStatus, "status", "", "maturity status: student, intern, supervised, autonomous")
	agentsPutCmd.Flags().Float64Var(&agentsConfidence, "confidence", 0, "confidence score in [0,1]")
	agentsPutCmd.Flags().BoolVar(&agentsDisabled, "disabled", false, "disable the agent")
	agentsCmd.AddCommand(agentsListCmd, agentsPutCmd, agentsDeleteCmd)
}

func runAgentsList(_ *cobra.Command, _ []string) error {
	sc, err := openShared(agentsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	agents, err := sc.Store.Agents().List(context.Background(), agentsWorkspace)
	if err != nil {
		return err
	}
	return printJSON(agents)
}

func runAgentsPut(_ *cobra.Command, args []string) error {
	if agentsStatus != "" {
		if _, ok := maturity.ParseLevel(agentsStatus); !ok {
			return fmt.Errorf("unknown maturity status %q", agentsStatus)
		}
	}
	if agentsConfidence < 0 || agentsConfidence > 1 {
		return fmt.Errorf("confidence must lie in [0,1], got %g", agentsConfidence)
	}

	sc, err := openShared(agentsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx := context.Background()
	agent := &registry.Agent{
		AgentID:         args[0],
		Name:            agentsName,
		WorkspaceID:     agentsWorkspace,
		MaturityStatus:  agentsStatus,
		ConfidenceScore: agentsConfidence,
		Enabled:         !agentsDisabled,
	}
	if err := sc.Store.Agents().Upsert(ctx, agent); err != nil {
		return err
	}

	// Drop any cached snapshot so the next trigger sees the new record.
	sc.Resolver.Invalidate(ctx, agent.AgentID)

	stored, err := sc.Store.Agents().GetByAgentID(ctx, agent.AgentID)
	if err != nil {
		return err
	}
	return printJSON(stored)
}

func runAgentsDelete(_ *cobra.Command, args []string) error {
	sc, err := openShared(agentsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx := context.Background()
	if err := sc.Store.Agents().Delete(ctx, args[0]); err != nil {
		return err
	}
	sc.Resolver.Invalidate(ctx, args[0])

	fmt.Printf("agent %s deleted\n", args[0])
	return nil
}
