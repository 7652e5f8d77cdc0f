// taskmirror mirrors a remote task database into a local SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskmirror/taskmirror/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "taskmirror",
	Short: "Incremental sync of a remote task database into local SQLite",
	Long: `taskmirror keeps a local SQLite mirror of a remote, paginated task
database. Runs are incremental and resumable: an interrupted sync picks up
from its last committed page, and a completed sync starts the next pass
fresh.

Configuration comes from taskmirror.yaml (or --config) plus TASKMIRROR_*
environment variables. At minimum the API token and source id must be set.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./taskmirror.yaml, then ~/.config/taskmirror/config.yaml)")
}

// loadConfig reads configuration for a subcommand, exiting on failure.
func loadConfig() *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
