// Package observability wires OpenTelemetry metrics and tracing for
// the gateway: per-route request counters, latency histograms, token
// counters, and an optional trace exporter. Metrics surface on a
// Prometheus scrape endpoint.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics *GatewayMetrics
	metricsMu     sync.RWMutex
)

// GatewayMetrics records per-request gateway metrics. A nil receiver
// or uninitialized instruments make every record call a no-op.
type GatewayMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	inputTokens     metric.Int64Counter
	outputTokens    metric.Int64Counter
	errorsTotal     metric.Int64Counter
	streamRequests  metric.Int64Counter
}

// InitMetrics builds the gateway meter with a Prometheus reader. The
// exporter registers on the default Prometheus registry, so Handler()
// serves everything recorded here.
func InitMetrics(ctx context.Context) (*GatewayMetrics, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter("switchyard")

	m := &GatewayMetrics{}

	m.requestsTotal, err = meter.Int64Counter(
		"switchyard_requests_total",
		metric.WithDescription("Total proxied requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram(
		"switchyard_request_duration_seconds",
		metric.WithDescription("Proxied request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	m.inputTokens, err = meter.Int64Counter(
		"switchyard_tokens_input_total",
		metric.WithDescription("Total input tokens forwarded upstream"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tokens counter: %w", err)
	}

	m.outputTokens, err = meter.Int64Counter(
		"switchyard_tokens_output_total",
		metric.WithDescription("Total output tokens relayed downstream"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tokens counter: %w", err)
	}

	m.errorsTotal, err = meter.Int64Counter(
		"switchyard_errors_total",
		metric.WithDescription("Total failed requests by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	m.streamRequests, err = meter.Int64Counter(
		"switchyard_stream_requests_total",
		metric.WithDescription("Total streaming requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream requests counter: %w", err)
	}

	return m, nil
}

// RequestSample describes one completed proxied request.
type RequestSample struct {
	RouteID      string
	ProxyPath    string
	SourceModel  string
	TargetModel  string
	StatusCode   int
	Streaming    bool
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	ErrorKind    string
}

// RecordRequest records one request sample.
func (m *GatewayMetrics) RecordRequest(ctx context.Context, sample RequestSample) {
	if m == nil || m.requestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("route", sample.RouteID),
		attribute.Int("status", sample.StatusCode),
	}
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, sample.Duration.Seconds(),
		metric.WithAttributes(attribute.String("route", sample.RouteID)))

	if sample.Streaming && m.streamRequests != nil {
		m.streamRequests.Add(ctx, 1,
			metric.WithAttributes(attribute.String("route", sample.RouteID)))
	}

	tokenAttrs := []attribute.KeyValue{
		attribute.String("route", sample.RouteID),
		attribute.String("model", sample.TargetModel),
	}
	if sample.InputTokens > 0 && m.inputTokens != nil {
		m.inputTokens.Add(ctx, int64(sample.InputTokens), metric.WithAttributes(tokenAttrs...))
	}
	if sample.OutputTokens > 0 && m.outputTokens != nil {
		m.outputTokens.Add(ctx, int64(sample.OutputTokens), metric.WithAttributes(tokenAttrs...))
	}

	if sample.ErrorKind != "" && m.errorsTotal != nil {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("route", sample.RouteID),
			attribute.String("kind", sample.ErrorKind),
		))
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m *GatewayMetrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder, which
// may be nil when metrics are disabled.
func GetGlobalMetrics() *GatewayMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
