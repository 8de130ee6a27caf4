package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/bridge"
	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/config/provider"
	"github.com/switchyard-ai/switchyard/pkg/observability"
	"github.com/switchyard-ai/switchyard/pkg/server"
)

// ServeCmd starts the gateway.
type ServeCmd struct {
	Host  string `help:"Bind host (overrides config)."`
	Port  int    `help:"Bind port (overrides config)."`
	Watch bool   `help:"Watch the config file and hot-reload routes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := provider.New(provider.Options{Type: provider.TypeFile, Path: cli.Config})
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	var srv *server.HTTPServer
	loader := config.NewLoader(p, config.WithOnChange(func(next *config.Config) {
		if srv == nil {
			return
		}
		if err := srv.ApplyConfig(next); err != nil {
			slog.Error("config reload rejected", "error", err)
		}
	}))
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanup, err := initLogger(cli, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Host != "" {
		cfg.Global.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Global.Server.Port = c.Port
	}

	obs := observability.NewManager(observability.Options{
		MetricsEnabled: cfg.Global.Observability.Metrics.IsEnabled(),
		Tracing: observability.TracerOptions{
			Enabled:     cfg.Global.Observability.Tracing.Enabled,
			Exporter:    cfg.Global.Observability.Tracing.Exporter,
			Endpoint:    cfg.Global.Observability.Tracing.Endpoint,
			ServiceName: "switchyard",
		},
	})
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	engine, err := bridge.NewEngine(cfg, adapters.NewRegistry(),
		bridge.WithMetrics(obs.Metrics()))
	if err != nil {
		return fmt.Errorf("failed to build routes: %w", err)
	}

	srv = server.New(cfg, engine, server.WithObservability(obs))

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("config watch error", "error", err)
			}
		}()
	}

	fmt.Printf("switchyard listening on http://%s\n", cfg.Global.Server.Address())
	for _, route := range engine.Routes() {
		fmt.Printf("  - /%s  (%s dialect)\n", route.ProxyPath, route.Inbound.Name())
	}
	if cfg.Global.Observability.Metrics.IsEnabled() {
		fmt.Printf("  metrics: http://%s%s\n", cfg.Global.Server.Address(), cfg.Global.Observability.Metrics.Path)
	}
	fmt.Println("Press Ctrl+C to stop")

	return srv.Run(ctx)
}
