// Package cli provides the atlantis CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is injected during build.
var Version = "dev"

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "atlantis",
	Short: "atlantis serves deterministic mock HTTP responses from a declarative catalog",
	Long: `atlantis is a local mock HTTP server. It answers requests from a declarative
catalog of request templates, reproducing configured network characteristics
(headers, latency, throughput throttling, redirect behavior), and can fall
back to a real server when no template matches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
