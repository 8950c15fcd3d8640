package cmd

import (
	"fmt"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/pkg/logging/logutil"
	"github.com/grovetools/canopy/pkg/paths"
)

// NewLogsCmd returns the logs command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		Long: `Print the daemon log, or the latest log file of another
component, optionally following new lines as they are written.

Examples:
  # Print the daemon log
  canopy logs

  # Follow the daemon log
  canopy logs -f

  # Follow the CLI component log instead
  canopy logs -f --component canopy-cli`,
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			component, _ := cmd.Flags().GetString("component")

			logFile := paths.DaemonLogPath()
			if component != "" {
				found, err := logutil.FindComponentLogFile(component)
				if err != nil {
					return err
				}
				logFile = found
			}

			if _, err := os.Stat(logFile); err != nil {
				return fmt.Errorf("no log file at %s", logFile)
			}

			t, err := tail.TailFile(logFile, tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: true,
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("failed to tail %s: %w", logFile, err)
			}
			defer t.Cleanup()

			go func() {
				<-cmd.Context().Done()
				_ = t.Stop()
			}()

			for line := range t.Lines {
				if line.Err != nil {
					return line.Err
				}
				fmt.Println(line.Text)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().String("component", "", "Show the latest log of a named component instead of the daemon log")

	return cmd
}
