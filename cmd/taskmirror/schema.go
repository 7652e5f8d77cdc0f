package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskmirror/taskmirror/internal/propcache"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect or invalidate the cached property map",
	Long: `Manage the property cache.

The remote schema is fetched once and cached; the engine never detects
schema drift on its own. After the remote source's properties change, run
'taskmirror schema invalidate' so the next sync refetches the schema.`,
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached property map",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		cache, ok, err := propcache.NewManager(cfg.PropCachePath(), nil).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading property cache: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Printf("No property cache at %s\n", cfg.PropCachePath())
			fmt.Printf("Run 'taskmirror sync' to fetch the schema\n")
			return
		}

		fmt.Printf("\nProperty cache (%s)\n\n", cfg.PropCachePath())
		fmt.Printf("Sub-resource: %s\n", cache.SubResourceID)
		fmt.Printf("Fetched: %s\n\n", cache.FetchedAt.Format(time.RFC3339))
		for _, p := range cache.Properties {
			fmt.Printf("  %-30s %s\n", p.Name, p.ID)
		}
		fmt.Println()
	},
}

var schemaInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Delete the property cache so the next sync refetches the schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if err := propcache.NewManager(cfg.PropCachePath(), nil).Invalidate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error invalidating property cache: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Property cache removed; next sync will refetch the schema\n")
	},
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaInvalidateCmd)
	rootCmd.AddCommand(schemaCmd)
}
