package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/tokenfan"
	"github.com/jpalmerr/tokenfan/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the tokenfan HTTP service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Start the tokenfan HTTP service.

The server will:
  - Load configuration from the specified YAML file
  - Watch the pool directory if watch_pools is set
  - Serve /like, /token_info, /api/results, /api/sse and /healthz

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  tokenfan serve -c config.yaml
  tokenfan serve --config /etc/tokenfan/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadShim loads the config file named by the --config flag and builds a Shim.
func loadShim(cmd *cobra.Command, logger *slog.Logger) (*tokenfan.Shim, *config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, tokenfan.WithLogger(logger))

	shim, err := tokenfan.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tokenfan: %w", err)
	}
	return shim, cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	shim, cfg, err := loadShim(cmd, logger)
	if err != nil {
		return err
	}
	defer shim.Close()

	logger.Info("config loaded",
		"families", len(cfg.Families),
		"pool_dir", cfg.PoolDir,
		"watch_pools", cfg.WatchPools,
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- shim.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
