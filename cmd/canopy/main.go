package main

import (
	"os"

	"github.com/grovetools/canopy/cli"
	"github.com/grovetools/canopy/cmd"
	"github.com/grovetools/canopy/pkg/profiling"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"canopy",
		"Session monitor for long-running CLI agents",
	)

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(rootCmd)
	rootCmd.PersistentPreRunE = profiler.PreRun
	rootCmd.PersistentPostRun = profiler.PostRun

	rootCmd.AddCommand(cmd.NewDaemonCmd())
	rootCmd.AddCommand(cmd.NewSessionsCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewHookCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
