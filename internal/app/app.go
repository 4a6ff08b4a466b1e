// Package app wires configuration into a store and an import service. It is
// shared by the HTTP server and laborctl.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/core"
	"github.com/ay01sec/labor-admin-sub000/internal/core/entities"
	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"github.com/ay01sec/labor-admin-sub000/internal/store/mongostore"
	"github.com/ay01sec/labor-admin-sub000/internal/store/pgstore"
)

// OpenStore connects to the configured document store. The returned close
// function is never nil.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		slog.Warn("using in-memory store; data is lost on exit")
		return store.NewMemory(), func() {}, nil

	case config.DriverMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ConnectTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		slog.Info("connected to mongo", "database", cfg.MongoDatabase)
		return st, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := st.Close(closeCtx); err != nil {
				slog.Warn("close mongo", "error", err)
			}
		}, nil

	case config.DriverPostgres:
		st, err := pgstore.Connect(ctx, pgstore.Options{
			URL:            cfg.PostgresURL,
			MaxConns:       cfg.MaxConns,
			MinConns:       cfg.MinConns,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		slog.Info("connected to postgres", "max_conns", cfg.MaxConns)
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// ServiceOptions maps import settings to service options.
func ServiceOptions(cfg config.ImportConfig) core.Options {
	return core.Options{
		ChunkSize:     cfg.ChunkSize,
		MaxFileSize:   cfg.MaxFileSize,
		MaxConcurrent: cfg.MaxConcurrent,
		MaxWait:       cfg.MaxWaitTime,
		Timeout:       cfg.Timeout,
		SessionTTL:    cfg.SessionTTL,
		ResultTTL:     cfg.ResultTTL,
	}
}

// NewService builds an import service over st with the built-in entities.
func NewService(st store.Store, cfg config.ImportConfig) *core.Service {
	return core.NewService(st, entities.Default(), ServiceOptions(cfg))
}
