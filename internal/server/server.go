// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package server exposes the watchdog over HTTP: heartbeat ingestion plus a
// small read/ops API. Monitored services push heartbeats here; everything
// else is for operators poking at the daemon.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ApplyDefaults fills in zero-valued timeouts.
func (c *Config) ApplyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
}

// Validate checks the configuration before the server starts.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return vigilerr.New(vigilerr.CodeServerConfigInvalid, "listen address is required")
	}
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return vigilerr.New(vigilerr.CodeServerConfigInvalid, "CORS origin wildcard is not allowed")
		}
	}
	return nil
}

// Server wraps a chi router with a huma API and an HTTP server.
type Server struct {
	router  chi.Router
	api     huma.API
	cfg     Config
	deps    Deps
	nowFunc func() time.Time
}

// New creates a Server with chi router, huma API, health endpoint, and CORS.
func New(cfg Config, deps Deps) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	// go-chi/cors treats an empty origin list as a wildcard, so only mount
	// it when origins are configured.
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSOrigins))
	}

	humaConfig := huma.DefaultConfig("Vigil", "0.1.0")
	humaConfig.Info.Description = "External watchdog API"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router:  r,
		api:     api,
		cfg:     cfg,
		deps:    deps,
		nowFunc: time.Now,
	}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// SetNowFunc overrides the time source (for testing).
func (s *Server) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return vigilerr.Wrap(err, vigilerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Health status"`
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
