package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/tokenfan"
)

// likeCmd runs a single reconciliation from the command line.
var likeCmd = &cobra.Command{
	Use:   "like",
	Short: "Run one reconciliation and print the summary",
	Long: `Run one reconciliation for a subject on a target without starting
the HTTP service, and print the summary as JSON.

Example:
  tokenfan like -c config.yaml --uid 123456 --target IND
  tokenfan like -c config.yaml --uid 123456 --target BR --policy random`,
	RunE: runLike,
}

func init() {
	rootCmd.AddCommand(likeCmd)

	likeCmd.Flags().String("uid", "", "subject id (required)")
	likeCmd.Flags().String("target", "", "target identifier, e.g. IND (required)")
	likeCmd.Flags().String("policy", "rotating", "batch policy: rotating or random")
	_ = likeCmd.MarkFlagRequired("uid")
	_ = likeCmd.MarkFlagRequired("target")
}

func runLike(cmd *cobra.Command, args []string) error {
	uid, _ := cmd.Flags().GetString("uid")
	target, _ := cmd.Flags().GetString("target")
	policyName, _ := cmd.Flags().GetString("policy")

	policy, err := tokenfan.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
	shim, _, err := loadShim(cmd, logger)
	if err != nil {
		return err
	}
	defer shim.Close()

	summary, err := shim.Like(cmd.Context(), uid, target, policy)
	if err != nil {
		return fmt.Errorf("like failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
