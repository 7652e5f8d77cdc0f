package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskmirror/taskmirror/internal/cursor"
	"github.com/taskmirror/taskmirror/internal/manifest"
	"github.com/taskmirror/taskmirror/internal/propcache"
	"github.com/taskmirror/taskmirror/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror and checkpoint status",
	Long: `Display the current state of the local mirror.

Shows:
  - Task and relation link counts
  - Whether a sync pass is in progress (cursor present)
  - Property cache age
  - Last completed scan manifest`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()

		fmt.Printf("\nMirror status (%s)\n\n", cfg.DataDir)

		if _, err := os.Stat(cfg.DBPath()); os.IsNotExist(err) {
			fmt.Printf("Mirror not initialized\n")
			fmt.Printf("Run 'taskmirror sync' to create it\n\n")
			return
		}

		db, err := store.Open(cfg.DBPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening mirror: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		taskCount, err := db.TaskCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting tasks: %v\n", err)
			os.Exit(1)
		}
		linkCount, err := db.LinkCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting relation links: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Tasks: %d\n", taskCount)
		fmt.Printf("Relation links: %d\n", linkCount)

		if _, present, err := cursor.NewStore(cfg.CursorPath()).Load(); err != nil {
			fmt.Printf("Checkpoint: unreadable (%v)\n", err)
		} else if present {
			fmt.Printf("Checkpoint: sync pass in progress, next run resumes\n")
		} else {
			fmt.Printf("Checkpoint: none, next run is a fresh pass\n")
		}

		if cache, ok, err := propcache.NewManager(cfg.PropCachePath(), nil).Load(); err != nil {
			fmt.Printf("Property cache: unreadable (%v)\n", err)
		} else if ok {
			fmt.Printf("Property cache: %d properties, fetched %s ago\n",
				len(cache.Properties), time.Since(cache.FetchedAt).Round(time.Minute))
		} else {
			fmt.Printf("Property cache: absent, next run fetches the schema\n")
		}

		if header, entries, err := manifest.Read(cfg.ManifestPath()); err == nil {
			fmt.Printf("Last completed pass: %s (%d records, run %s)\n",
				header.CompletedAt.Format("2006-01-02 15:04:05"), len(entries), header.RunID)
		} else {
			fmt.Printf("Last completed pass: none recorded\n")
		}

		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
