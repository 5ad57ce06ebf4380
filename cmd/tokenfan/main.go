// Package main is the entry point for the tokenfan CLI.
//
// tokenfan can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	tokenfan serve -c config.yaml                  # Start the HTTP service
//	tokenfan validate -c config.yaml               # Validate configuration
//	tokenfan pools -c config.yaml                  # Show pool sizes per target
//	tokenfan like -c config.yaml --uid 1 --target IND  # Run one reconciliation
//	tokenfan version                               # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "tokenfan",
	Short: "Fan one request out over a batch of stored credentials",
	Long: `tokenfan sends one encrypted request per stored credential to a
remote service, concurrently, and reports how far the remote counter moved.

Quick start:
  1. Create a config file (tokenfan.yaml)
  2. Put credential pools in pool_dir (token_<family>.json, token_<family>_visit.json)
  3. Run: tokenfan serve -c tokenfan.yaml
  4. GET http://localhost:5001/like?uid=123&server_name=IND

Example config:
  port: 5001
  envelope:
    key: ${TOKENFAN_KEY}
    iv: ${TOKENFAN_IV}
  families:
    - name: ind
      targets: [IND]
      action_url: https://ind.example.com/like
      status_url: https://ind.example.com/info`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this tokenfan binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tokenfan %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
}
