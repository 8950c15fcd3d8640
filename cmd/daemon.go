package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/canopy/cli"
	"github.com/grovetools/canopy/config"
	"github.com/grovetools/canopy/internal/daemon/collector"
	"github.com/grovetools/canopy/internal/daemon/correlate"
	"github.com/grovetools/canopy/internal/daemon/engine"
	"github.com/grovetools/canopy/internal/daemon/pidfile"
	"github.com/grovetools/canopy/internal/daemon/server"
	"github.com/grovetools/canopy/internal/daemon/store"
	"github.com/grovetools/canopy/internal/daemon/tracker"
	"github.com/grovetools/canopy/logging"
	daemonclient "github.com/grovetools/canopy/pkg/daemon"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/pkg/paths"
	"github.com/grovetools/canopy/pkg/procscan"
	"github.com/grovetools/canopy/pkg/transcript"
)

// NewDaemonCmd returns the canopyd lifecycle command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the canopy session daemon",
		Long:  "The daemon listens for agent hook events, discovers agent processes, and correlates the two into live session state.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start canopyd in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("canopyd")

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create state directories: %w", err)
			}

			// 1. Acquire lock
			pidPath := paths.PidFilePath()
			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Build the tracking pipeline
			rates := transcript.DefaultRates().Merge(rateOverrides(cfg))
			transcripts := transcript.NewStore(rates)

			st := store.New()
			eng := engine.New(st, logger)

			corr := correlate.New(logger)
			trk := tracker.New(logger, corr, transcripts, eng.Enqueue, func(rec *models.SessionRecord) {
				logger.WithFields(map[string]interface{}{
					"pid":        rec.PID,
					"session_id": rec.SessionID,
					"task":       rec.TaskDescription,
				}).Info("Session finished")
			})
			eng.SetTracker(trk)

			// Register collectors
			scanner, err := procscan.New(procscan.Options{
				ProcessName: cfg.Scan.ProcessName,
				IgnoreDirs:  cfg.Scan.Ignore,
			})
			if err != nil {
				return fmt.Errorf("failed to create process scanner: %w", err)
			}
			eng.Register(collector.NewProcessCollector(scanner, cfg.ScanInterval(), logger))

			// 3. Setup server with engine
			srv := server.New(logger)
			srv.SetEngine(eng)
			srv.SetRunningConfig(&server.RunningConfig{
				ListenPort:   cfg.Listener.Port,
				ScanInterval: cfg.ScanInterval(),
				ProcessName:  cfg.Scan.ProcessName,
				StartedAt:    time.Now(),
			})

			// 4. Watch for config file changes
			watcher, err := daemonclient.NewConfigWatcher(500, func(file string) {
				st.BroadcastConfigReload(file)
			})
			if err != nil {
				logger.Warnf("Config watcher unavailable: %v", err)
			}

			// 5. Handle signals
			ctx, cancel := context.WithCancel(context.Background())
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}

				if watcher != nil {
					_ = watcher.Close()
				}

				// Explicitly release pidfile before exit in signal handler
				_ = pidfile.Release(pidPath)
				os.Exit(0)
			}()

			// 6. Start engine and watcher in background
			go eng.Start(ctx)
			if watcher != nil {
				go watcher.Start(ctx)
			}

			// 7. Start server (blocking)
			logger.WithField("pid", os.Getpid()).WithField("port", cfg.Listener.Port).Info("Starting daemon")
			if err := srv.ListenAndServe(cfg.Listener.Port); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

// rateOverrides converts configured pricing into transcript rates.
func rateOverrides(cfg *config.Config) map[string]transcript.Rate {
	if len(cfg.Pricing.Models) == 0 {
		return nil
	}
	overrides := make(map[string]transcript.Rate, len(cfg.Pricing.Models))
	for family, r := range cfg.Pricing.Models {
		overrides[family] = transcript.Rate{
			InputPerMTok:  r.InputPerMTok,
			OutputPerMTok: r.OutputPerMTok,
		}
	}
	return overrides
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()
			running, pid, err := pidfile.IsRunning(pidPath)

			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if running {
				fmt.Printf("Running (PID: %d)\n", pid)
			} else {
				fmt.Println("Stopped")
				os.Exit(1) // Non-zero for stopped state (useful for scripts)
			}
			return nil
		},
	}
}
