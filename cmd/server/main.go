package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ay01sec/labor-admin-sub000/internal/app"
	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/logging"
	"github.com/ay01sec/labor-admin-sub000/internal/metrics"
	"github.com/ay01sec/labor-admin-sub000/internal/metrics/promexport"
	"github.com/ay01sec/labor-admin-sub000/internal/web"
)

const drainTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"chunk_size", cfg.Import.ChunkSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"require_api_key", cfg.Security.RequireAPIKey,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	st, closeStore, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		backend, err := promexport.NewBackend()
		if err != nil {
			slog.Error("failed to set up metrics", "error", err)
			os.Exit(1)
		}
		metrics.SetBackend(backend)
		metricsHandler = backend.Handler()
	}

	service := app.NewService(st, cfg.Import)
	for _, e := range service.Entities() {
		slog.Debug("entity registered", "key", e.Key, "collection", e.Collection, "columns", len(e.Columns()))
	}

	server, err := web.NewServer(service, cfg, metricsHandler)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Progress streams end with their imports, so drain imports first.
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time, cancelling", "error", err)
				service.CancelAll()
				// Cancelled imports still commit their current chunk.
				drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
				_ = service.WaitForImports(drainCtx)
				drainCancel()
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		closeStore()
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
