package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/pkg/paths"
)

// PathsOutput represents the XDG-compliant paths used by Canopy.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	CacheDir  string `json:"cache_dir"`
	LogDir    string `json:"log_dir"`
	PidFile   string `json:"pid_file"`
	DaemonLog string `json:"daemon_log"`
}

// NewPathsCmd returns the paths command.
func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by Canopy",
		Long: `Print the XDG-compliant paths used by Canopy.

This command outputs the paths in JSON format, making it easy to parse
from scripts and other tools.

The paths follow the XDG Base Directory Specification:
- config_dir: Configuration files (canopy.yml)
- state_dir: Runtime state (pidfile, logs)
- cache_dir: Temporary/regenerable data
- log_dir: Component and daemon logs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				CacheDir:  paths.CacheDir(),
				LogDir:    paths.LogDir(),
				PidFile:   paths.PidFilePath(),
				DaemonLog: paths.DaemonLogPath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		},
	}

	return cmd
}
