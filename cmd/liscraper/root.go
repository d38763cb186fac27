package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information, overridden at build time.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "liscraper",
	Short: "Extract recent posts from a LinkedIn profile's activity feed",
	Long: `liscraper drives a real browser session against a LinkedIn profile's
activity feed, scrolls until the requested number of posts has rendered,
and writes the extracted posts to a JSON file.

Features:
  - Secure credential storage using the system keychain
  - Authenticated browser sessions via the li_at cookie
  - Scroll pacing and automatic retry with exponential backoff
  - Deduplicated, order-stable post collection
  - Atomic output files that merge with previous runs`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.liscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
