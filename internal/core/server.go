// Package core provides the HTTP chassis of the service: a chi router with
// the cross-cutting middleware (panic recovery, request ids, timeouts,
// logging, shared-secret auth) and the JSON response helpers that domain
// handlers use.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinicremind/internal/config"
)

// Server encapsulates the dependencies of the HTTP surface, allowing easy
// injection during testing.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are supplied
	// by the entry point so that core does not import handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Closers are released on Shutdown in order.
	Closers []func()

	router *chi.Mux
}

// NewServer prepares a server for route mounting.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, c := range s.Closers {
		c()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
