// Package core provides the API chassis for the Psyche storefront.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, and error handling -- before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"psyche/internal/config"
)

// RouteRegistrar registers a domain handler's routes on the v1 router group.
// The application entry point populates Server.V1RouteRegistrars with one
// registrar per handler; this indirection avoids import cycles between core
// and the handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the Psyche API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Authenticator resolves bearer tokens to Actors; injected for testability.
	Authenticator Authenticator

	// HealthProbes are checked concurrently by the /health endpoint.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount the domain handlers under /v1.
	V1RouteRegistrars []RouteRegistrar

	// Closers are shut down in order during Shutdown (e.g., the pgx pool).
	Closers []func()

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources: it runs the
// registered closers (database pools and the like) and flushes logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, closeFn := range s.Closers {
		closeFn()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
