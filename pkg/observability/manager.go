package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Options configures the observability subsystem.
type Options struct {
	MetricsEnabled bool
	Tracing        TracerOptions
}

// Manager owns the lifecycle of the metrics and tracing providers.
type Manager struct {
	mu             sync.RWMutex
	opts           Options
	tracerProvider trace.TracerProvider
	metrics        *GatewayMetrics
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Initialize sets up metrics and tracing per the options.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.opts.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	if m.opts.MetricsEnabled {
		metrics, err := InitMetrics(ctx)
		if err != nil {
			return err
		}
		m.metrics = metrics
		SetGlobalMetrics(metrics)
	}

	return nil
}

// Metrics returns the gateway metrics recorder, nil when disabled.
func (m *Manager) Metrics() *GatewayMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Tracer returns a tracer from the managed provider.
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return GetTracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes and stops the trace exporter.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return spt.Shutdown(ctx)
	}
	return nil
}
