// Package web provides the HTTP server for the copy-out export API.
package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/pgcopy/internal/config"
	"github.com/JonMunkholm/pgcopy/internal/export"
	wmiddleware "github.com/JonMunkholm/pgcopy/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ExportService is the part of the export service the handlers use.
// It is an interface so handler tests can run against a stub.
type ExportService interface {
	ListTables(ctx context.Context) ([]export.TableInfo, error)
	ExportTable(ctx context.Context, table string, fn export.RowFunc) (int64, error)
	ExportQuery(ctx context.Context, query string, fn export.RowFunc) (int64, error)
	ActiveStreams() int
}

// Server is the HTTP server for the export application.
type Server struct {
	service ExportService
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service ExportService, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(wmiddleware.Logger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Get("/export/{table}", s.handleExportTable)
		r.Post("/export/query", s.handleExportQuery)
	})
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
