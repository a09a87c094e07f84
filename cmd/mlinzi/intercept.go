package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/trigger"
)

var (
	interceptConfigPath string
	interceptAgentID    string
	interceptSource     string
	interceptType       string
	interceptUserID     string
	interceptContext    string
)

var interceptCmd = &cobra.Command{
	Use:   "intercept",
	Short: "Evaluate a single trigger and print the routing decision",
	RunE:  runIntercept,
}

func init() {
	interceptCmd.Flags().StringVar(&interceptConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	interceptCmd.Flags().StringVar(&interceptAgentID, "agent", "", "agent ID the trigger targets (required)")
	interceptCmd.Flags().StringVar(&interceptSource, "source", "manual", "trigger source: manual, data_sync, workflow_engine, ai_coordinator")
	interceptCmd.Flags().StringVar(&interceptType, "type", "", "action category (display only)")
	interceptCmd.Flags().StringVar(&interceptUserID, "user", "", "initiating user ID (for manual triggers)")
	interceptCmd.Flags().StringVar(&interceptContext, "context", "", "trigger context as a JSON object")
	_ = interceptCmd.MarkFlagRequired("agent")
}

func runIntercept(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load(goutils.Env("MLINZI_CONFIG", interceptConfigPath))
	if err != nil {
		return err
	}

	source, err := trigger.ParseSource(interceptSource)
	if err != nil {
		return fmt.Errorf("parsing --source: %w", err)
	}

	var triggerCtx map[string]any
	if interceptContext != "" {
		if err := json.Unmarshal([]byte(interceptContext), &triggerCtx); err != nil {
			return fmt.Errorf("parsing --context: %w", err)
		}
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	decision, err := sc.Interceptor.Intercept(context.Background(), &trigger.Request{
		AgentID: interceptAgentID,
		Source:  source,
		Type:    interceptType,
		Context: triggerCtx,
		UserID:  interceptUserID,
	})
	if err != nil {
		return err
	}

	// Render enums as their string forms.
	out := map[string]any{
		"agent_id": decision.AgentID,
		"path":     decision.Path.String(),
		"execute":  decision.Execute,
		"maturity": decision.Maturity.String(),
		"reason":   decision.Reason,
	}
	if decision.ProposalID != "" {
		out["proposal_id"] = decision.ProposalID
	}
	if decision.Session != nil {
		out["session_id"] = decision.Session.ID.String()
	}

	return printJSON(out)
}

// printJSON renders a command result as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
