package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamsim",
		Short: "Daily social-network data simulator",
		Long: `streamsim grows a synthetic social network one simulated day at a time.

Each run reads the audit ledger, simulates the next day (updates and
soft-deletes, new users and posts, viewing sessions with likes) and commits
every write together with the day's ledger rows. The result is a realistic,
reproducible dataset for exercising incremental ingestion pipelines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default <root>/.streamsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newVerifyCmd(),
		newExportCmd(),
		newBackupCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
