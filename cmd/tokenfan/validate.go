package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/tokenfan"
	"github.com/jpalmerr/tokenfan/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a tokenfan configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields, including the envelope keys. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  tokenfan validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// catch key sizes and family conflicts the YAML layer cannot see
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	families, err := config.BuildFamilies(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	shim, err := tokenfan.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	shim.Close()

	targets := 0
	fallback := "none"
	for _, f := range families {
		targets += len(f.Targets())
		if f.Fallback() {
			fallback = f.Name()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Release:         %s\n", cfg.Release)
	fmt.Fprintf(out, "  Batch size:      %d\n", cfg.BatchSize)
	fmt.Fprintf(out, "  Request timeout: %s\n", cfg.RequestTimeout.Duration())
	fmt.Fprintf(out, "  Families:        %d (%d targets, fallback: %s)\n", len(families), targets, fallback)

	return nil
}
