// Package server exposes the gateway over HTTP: per-route ingress
// endpoints in each dialect's native shape, plus health, metrics, and
// configuration schema endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/switchyard-ai/switchyard/pkg/bridge"
	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/observability"
)

const shutdownGrace = 10 * time.Second

// HTTPServer serves the gateway's ingress endpoints.
type HTTPServer struct {
	cfg    *config.Config
	engine *bridge.Engine
	server *http.Server
	obs    *observability.Manager
	log    *slog.Logger
}

// Option configures the HTTP server.
type Option func(*HTTPServer)

// WithObservability sets the observability manager; its middleware and
// metrics endpoint mount when present.
func WithObservability(obs *observability.Manager) Option {
	return func(s *HTTPServer) { s.obs = obs }
}

// WithLogger sets the server's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *HTTPServer) { s.log = log }
}

// New creates an HTTP server bound per the configuration.
func New(cfg *config.Config, engine *bridge.Engine, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		cfg:    cfg,
		engine: engine,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var handler http.Handler = s.buildMux()
	if s.obs != nil {
		handler = observability.HTTPMiddleware(s.obs.Tracer("switchyard/http"))(handler)
	}

	s.server = &http.Server{
		Addr:              cfg.Global.Server.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then drains connections
// gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("gateway listening",
			"addr", s.server.Addr,
			"routes", len(s.engine.Routes()))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ApplyConfig swaps the engine's route table for a reloaded
// configuration. Server bind address and metrics mount points are
// fixed at startup; changing them takes a restart.
func (s *HTTPServer) ApplyConfig(cfg *config.Config) error {
	if err := s.engine.Reload(cfg); err != nil {
		return err
	}
	s.log.Info("configuration reloaded", "routes", len(s.engine.Routes()))
	return nil
}
