package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/cli"
	"github.com/grovetools/canopy/errors"
	daemonclient "github.com/grovetools/canopy/pkg/daemon"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/tui/theme"
)

// NewSessionsCmd returns the sessions command with action subcommands.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List tracked agent sessions",
		Long: `List the agent sessions the daemon is currently tracking,
with their correlation confidence, activity state, and token spend.

Examples:
  # One-shot table of live sessions
  canopy sessions

  # Live-updating view
  canopy sessions --watch

  # Machine-readable output
  canopy sessions --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			if watch {
				return runSessionsTUI(cmd)
			}
			return runSessionsList(cmd)
		},
	}

	cmd.Flags().BoolP("watch", "w", false, "Continuously watch session state")

	cmd.AddCommand(newSessionsRefreshCmd())
	cmd.AddCommand(newSessionsAckCmd())
	cmd.AddCommand(newSessionsReorderCmd())

	return cmd
}

// newClient builds a daemon client on the configured port.
func newClient(cmd *cobra.Command) (daemonclient.Client, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client := daemonclient.NewRemoteClient(cfg.Listener.Port)
	if !client.IsRunning() {
		return nil, errors.DaemonNotRunning()
	}
	return client, nil
}

func runSessionsList(cmd *cobra.Command) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	sessions, err := client.GetSessions(ctx)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions tracked")
		return nil
	}

	printSessionsTable(sessions)
	return nil
}

func printSessionsTable(sessions []*models.SessionRecord) {
	t := theme.DefaultTheme

	fmt.Printf("%s\n", t.Title.Render("SESSIONS"))
	header := fmt.Sprintf("%-8s %-9s %-12s %-14s %-30s %12s %9s  %s",
		"PID", "STATE", "TOOL", "MODEL", "TASK", "TOKENS", "COST", "AGE")
	fmt.Println(t.Muted.Render(header))

	now := time.Now()
	for _, s := range sessions {
		state := renderState(t, s)
		tokens := fmt.Sprintf("%d/%d", s.InputTokens, s.OutputTokens)
		cost := fmt.Sprintf("$%.2f", s.Cost)
		age := "-"
		if !s.StartedAt.IsZero() {
			age = now.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%-8d %s %-12s %-14s %-30s %12s %9s  %s\n",
			s.PID, state, truncate(s.CurrentTool, 12), truncate(s.Model, 14),
			truncate(s.TaskDescription, 30), tokens, cost, t.Muted.Render(age))
	}
}

// renderState colors the state column and flags unseen output.
func renderState(t *theme.Theme, s *models.SessionRecord) string {
	label := string(s.State)
	if s.PendingOutput {
		label += "!"
	}
	padded := fmt.Sprintf("%-9s", label)
	switch s.State {
	case models.StateWorking:
		return t.Success.Render(padded)
	case models.StateWaiting:
		return t.Warning.Render(padded)
	default:
		return t.Muted.Render(padded)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

func parsePIDArg(arg string) (int, error) {
	pid, err := strconv.Atoi(arg)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", arg)
	}
	return pid, nil
}

func newSessionsRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <pid>",
		Short: "Re-read a session's transcript usage and cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePIDArg(args[0])
			if err != nil {
				return err
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Refresh(cmd.Context(), pid); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Refresh queued for pid %d\n", pid)
			return nil
		},
	}
}

func newSessionsAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <pid>",
		Short: "Acknowledge a session's pending output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePIDArg(args[0])
			if err != nil {
				return err
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Acknowledge(cmd.Context(), pid); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Acknowledged pid %d\n", pid)
			return nil
		},
	}
}

func newSessionsReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <pid> <index>",
		Short: "Move a session to a new position in the display order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePIDArg(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid index %q", args[1])
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Reorder(cmd.Context(), pid, index); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Moved pid %d to position %d\n", pid, index)
			return nil
		},
	}
}
