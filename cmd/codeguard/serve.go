package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/codesearch"
	"github.com/dshills/codeguard-mcp/internal/config"
	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
	"github.com/dshills/codeguard-mcp/internal/mcp"
	"github.com/dshills/codeguard-mcp/internal/storage"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools on stdio",
		Long: `Serve the code search tools over the Model Context Protocol on stdio.

Configuration is read from the optional --config YAML file and then from
SRC_ENDPOINT, SRC_ACCESS_TOKEN and the CODEGUARD_* environment variables.
Logs go to stderr; stdout is reserved for the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("codeguard starting",
		zap.String("version", version),
		zap.String("buildMode", storage.BuildMode),
		zap.String("driver", storage.DriverName),
	)

	reporter := incident.Reporter(incident.NewLogReporter(logger))
	var incidents storage.Incidents
	if cfg.Incidents.Enabled {
		store, err := openIncidentStore(ctx, cfg.Incidents, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		incidents = store
		reporter = incident.Multi(reporter, storage.NewReporter(store, logger))
	}

	client, err := codesearch.New(cfg, logger,
		codesearch.WithReporter(reporter),
		codesearch.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	server := mcp.NewServer(client, incidents, logger, version)
	err = server.Serve(ctx)

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		logger.Info("server stopped")
		return nil
	default:
		logger.Error("server error", zap.Error(err))
		return err
	}
}

// openIncidentStore opens the store and applies the retention window
func openIncidentStore(ctx context.Context, cfg config.IncidentsConfig, logger *zap.Logger) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open incident store: %w", err)
	}

	if cfg.Retention > 0 {
		purged, err := store.PurgeBefore(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("purge incidents: %w", err)
		}
		logger.Info("incident retention applied",
			zap.Duration("retention", cfg.Retention),
			zap.Int64("incidents", purged.Incidents),
			zap.Int64("breadcrumbs", purged.Breadcrumbs),
		)
	}
	return store, nil
}
