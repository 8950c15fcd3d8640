package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/cli"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/util/pathutil"
)

// NewHookCmd returns the hook forwarding command. Agent hook scripts
// invoke it to forward a lifecycle event to the daemon.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook <kind>",
		Short: "Forward a hook event to the daemon",
		Long: `Forward an agent lifecycle event to the daemon's hook listener.

The event body is read from stdin when available, else assembled from
flags. Kinds: pretooluse, posttooluse, stop, notification.

Examples:
  # Typical hook script usage: the agent pipes its payload on stdin
  canopy hook pretooluse < payload.json

  # Hand-rolled event for testing
  canopy hook stop --session-id abc-123 --transcript-path ~/t/abc-123.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseHookKind(args[0])
			if !ok {
				return fmt.Errorf("unknown hook kind %q", args[0])
			}

			body, err := hookBody(cmd)
			if err != nil {
				return err
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("http://127.0.0.1:%d/hook/%s", cfg.Listener.Port, kind)
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to deliver hook event: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("daemon rejected hook event: %s: %s", resp.Status, bytes.TrimSpace(msg))
			}
			return nil
		},
	}

	cmd.Flags().String("session-id", "", "Logical session identifier")
	cmd.Flags().String("transcript-path", "", "Path to the session transcript")
	cmd.Flags().String("tool", "", "Tool name (pretooluse/posttooluse)")

	return cmd
}

// hookBody reads the event payload from stdin when piped, else builds
// one from flags.
func hookBody(cmd *cobra.Command) ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
	}

	sessionID, _ := cmd.Flags().GetString("session-id")
	transcriptPath, _ := cmd.Flags().GetString("transcript-path")
	tool, _ := cmd.Flags().GetString("tool")

	if sessionID == "" {
		return nil, fmt.Errorf("no payload on stdin and --session-id not set")
	}

	if transcriptPath != "" {
		expanded, err := pathutil.Expand(transcriptPath)
		if err != nil {
			return nil, err
		}
		transcriptPath = expanded
	}

	payload := map[string]interface{}{
		"session_id":      sessionID,
		"transcript_path": transcriptPath,
	}
	if tool != "" {
		payload["tool_name"] = tool
	}
	return json.Marshal(payload)
}
