package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/training"
)

var (
	proposalsConfigPath string
	proposalsStatus     string
	proposalsLimit      int
	proposalsReviewer   string
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Inspect and resolve the proposal review queue",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals by status",
	RunE:  runProposalsList,
}

var proposalsShowCmd = &cobra.Command{
	Use:   "show <proposal-id>",
	Short: "Show a single proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalsShow,
}

var proposalsApproveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Approve a pending proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return resolveProposal(args[0], true)
	},
}

var proposalsDenyCmd = &cobra.Command{
	Use:   "deny <proposal-id>",
	Short: "Deny a pending proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return resolveProposal(args[0], false)
	},
}

func init() {
	proposalsCmd.PersistentFlags().StringVar(&proposalsConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	proposalsListCmd.Flags().StringVar(&proposalsStatus, "status", "pending", "filter: pending, approved, denied, expired")
	proposalsListCmd.Flags().IntVar(&proposalsLimit, "limit", 50, "maximum proposals to list")
	for _, cmd := range []*cobra.Command{proposalsApproveCmd, proposalsDenyCmd} {
		cmd.Flags().StringVar(&proposalsReviewer, "by", "", "reviewer user ID (required)")
		_ = cmd.MarkFlagRequired("by")
	}
	proposalsCmd.AddCommand(proposalsListCmd, proposalsShowCmd, proposalsApproveCmd, proposalsDenyCmd)
}

func parseProposalStatus(s string) (training.Status, error) {
	switch s {
	case "pending":
		return training.StatusPending, nil
	case "approved":
		return training.StatusApproved, nil
	case "denied":
		return training.StatusDenied, nil
	case "expired":
		return training.StatusExpired, nil
	default:
		return 0, fmt.Errorf("unknown proposal status %q", s)
	}
}

func runProposalsList(_ *cobra.Command, _ []string) error {
	status, err := parseProposalStatus(proposalsStatus)
	if err != nil {
		return err
	}

	sc, err := openShared(proposalsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	proposals, err := sc.Proposals.List(context.Background(), status, proposalsLimit)
	if err != nil {
		return err
	}

	out := make([]map[string]any, len(proposals))
	for i, p := range proposals {
		out[i] = proposalOut(&p)
	}
	return printJSON(out)
}

func runProposalsShow(_ *cobra.Command, args []string) error {
	sc, err := openShared(proposalsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	p, err := sc.Proposals.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(proposalOut(p))
}

func resolveProposal(id string, approve bool) error {
	sc, err := openShared(proposalsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx := context.Background()
	if approve {
		err = sc.Proposals.Approve(ctx, id, proposalsReviewer)
	} else {
		err = sc.Proposals.Deny(ctx, id, proposalsReviewer)
	}
	if err != nil {
		return err
	}

	p, err := sc.Proposals.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(proposalOut(p))
}

func proposalOut(p *training.Proposal) map[string]any {
	out := map[string]any{
		"id":                  p.ID,
		"kind":                string(p.Kind),
		"agent_id":            p.AgentID,
		"agent_name":          p.AgentName,
		"maturity_at_block":   p.MaturityAtBlock,
		"confidence_at_block": p.ConfidenceAtBlock,
		"trigger_source":      p.TriggerSource,
		"trigger_type":        p.TriggerType,
		"block_reason":        p.BlockReason,
		"status":              p.Status.String(),
		"created_at":          p.CreatedAt,
		"expires_at":          p.ExpiresAt,
	}
	if p.ResolvedBy != "" {
		out["resolved_by"] = p.ResolvedBy
		out["resolved_at"] = p.ResolvedAt
	}
	if len(p.TriggerContext) > 0 {
		out["trigger_context"] = p.TriggerContext
	}
	return out
}

// openShared loads config from the given path (honoring MLINZI_CONFIG) and
// initializes the shared components.
func openShared(configPath string) (*SharedComponents, error) {
	logger := newLogger()
	cfg, err := config.Load(goutils.Env("MLINZI_CONFIG", configPath))
	if err != nil {
		return nil, err
	}
	return initShared(cfg, logger)
}
