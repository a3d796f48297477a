// Package main is the entry point for the flux CLI.
//
// flux is usually embedded as a library. This CLI builds a registry from
// YAML configuration and serves the devtools inspection endpoints for it.
//
// Usage:
//
//	flux serve -c flux.yaml     # Build the registry and serve devtools
//	flux validate -c flux.yaml  # Validate configuration
//	flux constants -c flux.yaml # Print generated action type constants
//	flux version                # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "flux",
	Short: "Unidirectional state management runtime",
	Long: `flux wires stores, HTTP APIs and action creators to a shared dispatcher.

The standalone binary builds a registry from a YAML file, records every
dispatched action and exposes them over HTTP for inspection.

Quick start:
  1. Create a config file (flux.yaml)
  2. Run: flux serve -c flux.yaml
  3. curl http://localhost:8080/api/stores

Example config:
  port: 8080
  stores:
    - name: users
  apis:
    - name: users-api
      base_url: https://api.example.com
  constants:
    users: [RECEIVE_USER]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this flux binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flux %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
