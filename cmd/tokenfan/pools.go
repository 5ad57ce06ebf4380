package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// poolsCmd prints the credential pool sizes per target.
var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Show credential pool sizes per target",
	Long: `Load every configured pool file and print how many credentials each
target has for the fan-out (action) and for counter reads (status).

This is the offline counterpart of GET /token_info. No network calls are made.

Example:
  tokenfan pools -c config.yaml`,
	RunE: runPools,
}

func init() {
	rootCmd.AddCommand(poolsCmd)
}

func runPools(cmd *cobra.Command, args []string) error {
	// load failures are reported as empty pools; keep warnings off the table
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	shim, _, err := loadShim(cmd, logger)
	if err != nil {
		return err
	}
	defer shim.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tACTION\tSTATUS")
	for _, ps := range shim.PoolSizes(cmd.Context()) {
		fmt.Fprintf(w, "%s\t%d\t%d\n", ps.Target, ps.Action, ps.Status)
	}
	return w.Flush()
}
