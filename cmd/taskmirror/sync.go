package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskmirror/taskmirror/internal/config"
	"github.com/taskmirror/taskmirror/internal/cursor"
	"github.com/taskmirror/taskmirror/internal/engine"
	"github.com/taskmirror/taskmirror/internal/hydrate"
	"github.com/taskmirror/taskmirror/internal/pace"
	"github.com/taskmirror/taskmirror/internal/propcache"
	"github.com/taskmirror/taskmirror/internal/remote"
	"github.com/taskmirror/taskmirror/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the remote source",
	Long: `Run a single sync pass:

  1. Load (or fetch and cache) the source's property map
  2. Page through the listing, newest first
  3. Hydrate each record with a restricted detail fetch
  4. Upsert records and relation links into the local mirror
  5. Checkpoint the cursor after each committed page

If a previous pass was interrupted, this resumes from its saved cursor.
A fresh pass clears the mirror first and writes a scan manifest on
completion.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)

		start := time.Now()
		report, err := runSyncPass(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Pages: %d\n", report.Pages)
		fmt.Printf("   Listed: %d\n", report.Listed)
		fmt.Printf("   Hydrated: %d\n", report.Hydrated)
		if report.Retries > 0 {
			fmt.Printf("   Retries: %d\n", report.Retries)
		}
		if report.Resumed {
			fmt.Printf("   Resumed from checkpoint\n")
		}
	},
}

// runSyncPass wires the sync pipeline together and executes one pass.
// Shared by the sync command and the daemon.
func runSyncPass(ctx context.Context, cfg *config.Config, logger *log.Logger) (*engine.Report, error) {
	client := remote.New(remote.Config{
		BaseURL:  cfg.BaseURL,
		Token:    cfg.Token,
		SourceID: cfg.SourceID,
	}, logger)

	props, err := propcache.NewManager(cfg.PropCachePath(), logger).Ensure(ctx, client)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return nil, err
	}

	writer, err := db.NewRunWriter(ctx)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	hydrator := hydrate.New(client, writer, pace.NewInterval(cfg.RecordInterval), props, logger)
	lister := remote.NewSubResourceLister(client, props.SubResourceID, cfg.PageSize)
	cursors := cursor.NewStore(cfg.CursorPath())

	eng := engine.New(lister, hydrator, cursors, db, pace.NewInterval(cfg.PageInterval), engine.Options{
		RetryDelay:   cfg.RetryDelay,
		MaxRetries:   cfg.MaxRetries,
		ManifestPath: cfg.ManifestPath(),
		Logger:       logger,
	})

	return eng.Run(ctx)
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
