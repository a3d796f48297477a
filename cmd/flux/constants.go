package main

import (
	"fmt"

	"github.com/jpalmerr/flux"
	"github.com/jpalmerr/flux/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var constantsCmd = &cobra.Command{
	Use:   "constants",
	Short: "Print generated action type constants",
	Long: `Print the action type constants generated from the config file.

Every name N expands to N, N_STARTING, N_DONE and N_FAILED. Output is YAML,
one sorted list per group.

Example:
  flux constants -c flux.yaml`,
	RunE: runConstants,
}

func init() {
	rootCmd.AddCommand(constantsCmd)

	constantsCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = constantsCmd.MarkFlagRequired("config")
}

func runConstants(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	groups := flux.CreateConstantGroups(cfg.Constants)
	out := make(map[string][]string, len(groups))
	for group, c := range groups {
		out[group] = c.Names()
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode constants: %w", err)
	}
	return enc.Close()
}
