package main

import (
	"fmt"

	"github.com/jpalmerr/flux/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a flux configuration file without building anything.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  flux validate -c flux.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	names := 0
	for _, group := range cfg.Constants {
		names += len(group)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Log level:       %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "  Stores:          %d\n", len(cfg.Stores))
	fmt.Fprintf(out, "  APIs:            %d\n", len(cfg.APIs))
	fmt.Fprintf(out, "  Constants:       %d groups, %d names = %d constants\n",
		len(cfg.Constants), names, names*4)

	return nil
}
