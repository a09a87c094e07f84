package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jkaninda/mlinzi/internal/config"
	"github.com/jkaninda/mlinzi/internal/supervision"
)

var (
	sessionsConfigPath string
	sessionsAgentID    string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and close supervision sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active supervision sessions",
	RunE:  runSessionsList,
}

var sessionsCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Mark a supervised execution as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return closeSession(args[0], supervision.StatusCompleted)
	},
}

var sessionsFailCmd = &cobra.Command{
	Use:   "fail <session-id>",
	Short: "Mark a supervised execution as failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return closeSession(args[0], supervision.StatusFailed)
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	sessionsListCmd.Flags().StringVar(&sessionsAgentID, "agent", "", "filter by agent ID")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsCompleteCmd, sessionsFailCmd)
}

func runSessionsList(_ *cobra.Command, _ []string) error {
	sc, err := openShared(sessionsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	sessions, err := sc.Sessions.ListActive(context.Background(), sessionsAgentID)
	if err != nil {
		return err
	}

	out := make([]map[string]any, len(sessions))
	for i, s := range sessions {
		out[i] = sessionOut(&s)
	}
	return printJSON(out)
}

func closeSession(rawID string, status supervision.SessionStatus) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", rawID, err)
	}

	sc, err := openShared(sessionsConfigPath)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx := context.Background()
	switch status {
	case supervision.StatusCompleted:
		err = sc.Sessions.Complete(ctx, id)
	case supervision.StatusFailed:
		err = sc.Sessions.Fail(ctx, id)
	default:
		return fmt.Errorf("unsupported close status %q", status)
	}
	if err != nil {
		return err
	}

	session, err := sc.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(sessionOut(session))
}

func sessionOut(s *supervision.Session) map[string]any {
	out := map[string]any{
		"id":           s.ID.String(),
		"agent_id":     s.AgentID,
		"workspace_id": s.WorkspaceID,
		"trigger_type": s.TriggerType,
		"status":       string(s.Status),
		"started_at":   s.StartedAt,
	}
	if s.SupervisorID != "" {
		out["supervisor_id"] = s.SupervisorID
	}
	if s.EndedAt != nil {
		out["ended_at"] = *s.EndedAt
	}
	return out
}
