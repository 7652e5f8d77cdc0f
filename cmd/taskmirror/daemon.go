package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskmirror/taskmirror/internal/config"
	"github.com/taskmirror/taskmirror/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sync (foreground)",
	Long: `Run the sync engine continuously in the foreground.

The daemon performs a sync pass on a fixed interval (daemon.interval) and
watches the data directory: deleting the property cache file triggers an
immediate pass, so a schema invalidation takes effect without waiting for
the next tick.

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		logger := daemon.NewLogger(cfg.LogFile)

		d, err := daemon.New(&passRunner{cfg: cfg, logger: logger}, daemon.Config{
			Interval:  cfg.DaemonInterval,
			DataDir:   cfg.DataDir,
			CacheFile: filepath.Base(cfg.PropCachePath()),
			Logger:    logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Starting sync daemon (interval %s)\n", cfg.DaemonInterval)
		fmt.Printf("   Data dir: %s\n", cfg.DataDir)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Run(ctx); err != nil && err != context.Canceled {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

// passRunner adapts the sync pipeline to the daemon's Runner interface.
type passRunner struct {
	cfg    *config.Config
	logger *log.Logger
}

func (r *passRunner) RunPass(ctx context.Context) error {
	_, err := runSyncPass(ctx, r.cfg, r.logger)
	return err
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
