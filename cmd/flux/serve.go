package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/flux"
	"github.com/jpalmerr/flux/config"
	"github.com/jpalmerr/flux/internal/actionlog"
	"github.com/jpalmerr/flux/internal/devtools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the registry and serve devtools",
	Long: `Build a flux registry from the config file and serve devtools.

The server will:
  - Create every configured store and HTTP API on one dispatcher
  - Record dispatched actions in a bounded in-memory log
  - Serve /api/stores, /api/actions, /api/actions/stream and /metrics
  - Accept POST /api/actions {"type": ..., "arguments": [...]} and dispatch
    it (types are limited to the configured constants, if any)

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  flux serve -c flux.yaml
  flux serve --config /etc/flux/flux.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.SlogLevel())
	logger.Info("config loaded",
		"stores", len(cfg.Stores),
		"apis", len(cfg.APIs),
		"constant_groups", len(cfg.Constants),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg, err := flux.New(
		flux.WithLogger(logger),
		flux.WithMetricsRegisterer(promReg),
	)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	actions := actionlog.NewMemoryLog(cfg.ActionLogSize)
	token := actions.Attach(reg.Dispatcher())
	defer reg.Dispatcher().Unregister(token)

	built, err := config.Build(cfg, reg)
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer built.Close()

	// POST /api/actions dispatches through these, limited to configured constants
	creators, err := reg.CreateActionCreators(flux.ActionCreatorsConfig{Name: "devtools"})
	if err != nil {
		return fmt.Errorf("failed to create action creators: %w", err)
	}

	srv := devtools.NewServer(reg, actions, promReg, cfg.Port, logger)
	srv.EnableDispatch(creators, built.Constants)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting devtools server", "port", cfg.Port)

	// Start blocks until ctx is cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
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
