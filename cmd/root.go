package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobfeed",
	Short: "Job feed import service",
	Long:  `jobfeed ingests job postings from RSS feed providers, normalizes them and persists them with deduplication.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
