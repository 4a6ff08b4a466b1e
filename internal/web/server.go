// Package web provides the HTTP API for CSV imports.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/core"
	mw "github.com/ay01sec/labor-admin-sub000/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *ipRateLimiter
}

// NewServer creates a new Server. metricsHandler is mounted at the
// configured metrics path when metrics are enabled; it may be nil.
func NewServer(service *core.Service, cfg *config.Config, metricsHandler http.Handler) (*Server, error) {
	keys, err := cfg.Security.ParseAPIKeys()
	if err != nil {
		return nil, err
	}

	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes(keys, metricsHandler)
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.RequestMetadata)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = newIPRateLimiter(s.cfg.Rate.RPS, s.cfg.Rate.Burst)
		s.router.Use(s.limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(keys []config.APIKey, metricsHandler http.Handler) {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled && metricsHandler != nil {
		s.router.Handle(s.cfg.Metrics.Path, metricsHandler)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(keys, s.cfg.Security.RequireAPIKey))

		// Progress streams outlive the request timeout.
		r.Get("/imports/{importID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/entities", s.handleListEntities)
			r.Get("/entities/{entity}/template", s.handleTemplate)
			r.Get("/entities/{entity}/export", s.handleExport)
			r.Get("/entities/{entity}/history", s.handleHistory)
			r.Post("/entities/{entity}/imports", s.handleCreateImport)

			r.Get("/imports/{importID}", s.handleGetImport)
			r.Delete("/imports/{importID}", s.handleDiscardImport)
			r.Post("/imports/{importID}/start", s.handleStartImport)
			r.Get("/imports/{importID}/result", s.handleImportResult)
			r.Post("/imports/{importID}/cancel", s.handleCancelImport)
			r.Get("/imports/{importID}/errors", s.handleImportErrors)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		// Responses are JSON or CSV; nothing should ever be loaded from them.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
