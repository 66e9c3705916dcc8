// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/havenchat/haven/internal/chat"
	chatpg "github.com/havenchat/haven/internal/chat/postgres"
	"github.com/havenchat/haven/internal/config"
	"github.com/havenchat/haven/internal/httpapi"
	"github.com/havenchat/haven/internal/logging"
	"github.com/havenchat/haven/internal/observability"
	"github.com/havenchat/haven/internal/store"
	userpg "github.com/havenchat/haven/internal/user/postgres"
	"github.com/samber/oops"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long: `Start the chat server: the HTTP API with its event stream,
and the observability endpoints when a metrics address is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	defaults := config.Default()
	// Flag names mirror config keys so posflag can merge them directly.
	cmd.Flags().String("http_addr", defaults.HTTPAddr, "HTTP listen address")
	cmd.Flags().String("metrics_addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection string (default: DATABASE_URL env)")
	cmd.Flags().String("log_format", defaults.LogFormat, "log format (json or text)")
	cmd.Flags().Duration("stream.keepalive_interval", defaults.Stream.KeepaliveInterval, "stream keepalive ping interval")
	cmd.Flags().Duration("stream.cycle_after", defaults.Stream.CycleAfter, "stream proactive reconnect deadline")
	cmd.Flags().Int("stream.recent_capacity", defaults.Stream.RecentCapacity, "replay buffer capacity")
	cmd.Flags().Int("stream.buffer_size", defaults.Stream.BufferSize, "per-connection event buffer size")
	cmd.Flags().Int("list.max_limit", defaults.List.MaxLimit, "hard cap on list page size")
	cmd.Flags().Duration("list.timeout", defaults.List.Timeout, "list read time budget")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, cmd *cobra.Command) error {
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logging.SetDefault("haven", version, cfg.LogFormat)
	log := slog.Default()

	log.Info("starting chat server",
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info("connected to database")

	bus := chat.NewBus(log, cfg.Stream.RecentCapacity)
	svc := chat.NewService(
		chatpg.NewMessageRepository(pool),
		userpg.NewProfileRepository(pool),
		bus,
		log,
	)
	svc.ListCap = cfg.List.MaxLimit
	svc.ListTimeout = cfg.List.Timeout

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := httpapi.NewServer(cfg.HTTPAddr, svc, bus, cfg.Stream, log)
	apiErrCh, err := api.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "chat-api")

	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		// Readiness means the database connected and the API listener is
		// bound, both true once we get here.
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopServer(api.Stop, "chat API")
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Chat server started")
	log.Info("chat server ready", "addr", api.Addr())

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
	}

	log.Info("shutting down...")

	if obsServer != nil {
		stopServer(obsServer.Stop, "observability")
	}
	stopServer(api.Stop, "chat API")

	log.Info("shutdown complete")
	return nil
}

// stopServer stops a server with a bounded grace period.
func stopServer(stop func(context.Context) error, name string) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := stop(shutdownCtx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// context on error so a failed server triggers graceful shutdown of the
// whole process. It exits on error, channel close, or context cancel.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
