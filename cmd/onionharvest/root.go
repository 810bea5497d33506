package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionharvest",
		Short: "Fetch and ingest content from Tor hidden services",
		Long: `onionharvest is a content harvester for Tor hidden services.

It fetches .onion pages through Tor with circuit rotation and per-request
client fingerprints, retries transient failures with exponential backoff,
optionally escalates persistently failing targets to an I2P fallback proxy,
and ingests the sanitized page text as overlapping chunks into a local
SQLite database for later retrieval.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("verbose", "v", false,
		"Enable verbose output with detailed logging")

	// Add subcommands
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
