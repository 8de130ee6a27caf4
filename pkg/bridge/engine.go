package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
	"github.com/switchyard-ai/switchyard/pkg/observability"
)

// Engine drives the translation pipeline. It owns the active route
// table and executes unary and streaming proxy calls against it.
type Engine struct {
	registry  *adapters.Registry
	table     atomic.Pointer[Table]
	logBodies atomic.Bool

	sink      LogSink
	metrics   *observability.GatewayMetrics
	estimator *Estimator
	log       *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSink sets the request log sink.
func WithSink(sink LogSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMetrics sets the metrics recorder. The engine falls back to the
// process-wide recorder when unset.
func WithMetrics(m *observability.GatewayMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an engine from a configuration snapshot.
func NewEngine(cfg *config.Config, reg *adapters.Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		registry:  reg,
		estimator: NewEstimator(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = NewSlogSink(e.log)
	}
	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload compiles a new route table and swaps it in. In-flight requests
// finish against the table they started with.
func (e *Engine) Reload(cfg *config.Config) error {
	table, err := BuildTable(cfg, e.registry)
	if err != nil {
		return err
	}
	e.table.Store(table)
	e.logBodies.Store(cfg.Global.Proxy.LogBodies)
	return nil
}

// Route looks up the route serving a proxy path.
func (e *Engine) Route(proxyPath string) (*Route, bool) {
	return e.table.Load().ByPath(proxyPath)
}

// Routes returns the active routes ordered by proxy path.
func (e *Engine) Routes() []*Route {
	return e.table.Load().Routes()
}

// Models lists the model names a route advertises: the exact mapping
// sources plus the well-known names of the route's dialect.
func (e *Engine) Models(route *Route) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range route.Mappings {
		if m.Type == config.MappingExact {
			add(m.SourceModel)
		}
	}
	for _, m := range route.Inbound.FamilyModels() {
		add(m)
	}
	return out
}

// callPlan is one fully resolved upstream call: the translated payload
// and where to send it.
type callPlan struct {
	route       *Route
	upstream    *Upstream
	req         *ir.Request
	sourceModel string
	targetModel string
	payload     []byte
	url         string
}

// prepare resolves the route chain, parses the ingress body into the
// neutral form, rewrites the model hop by hop, and renders the upstream
// payload. modelHint supplies the model for dialects that carry it in
// the URL instead of the body.
func (e *Engine) prepare(route *Route, body []byte, modelHint string, stream bool) (*callPlan, *ir.Error) {
	chain, up, err := e.table.Load().ResolveChain(route)
	if err != nil {
		return nil, ir.AsError(err)
	}

	req, err := route.Inbound.ParseRequest(body)
	if err != nil {
		return nil, ir.AsError(err)
	}
	req.Stream = stream
	if req.Model == "" {
		req.Model = modelHint
	}

	sourceModel := req.Model
	for _, hop := range chain {
		req.Model = ResolveModel(req.Model, hop.Mappings,
			req.Generation.ThinkingEnabled(), hop.Inbound.FamilyCatalog())
	}
	targetModel := req.Model
	if targetModel == "" {
		targetModel = up.Adapter.DefaultModel()
	}

	payload, err := up.Adapter.BuildRequest(req)
	if err != nil {
		return nil, ir.AsError(err)
	}

	chatPath := up.ChatPath
	if chatPath == "" {
		chatPath = up.Adapter.ChatPath(targetModel, stream)
	}
	if !strings.HasPrefix(chatPath, "/") {
		chatPath = "/" + chatPath
	}

	return &callPlan{
		route:       route,
		upstream:    up,
		req:         req,
		sourceModel: sourceModel,
		targetModel: targetModel,
		payload:     payload,
		url:         strings.TrimRight(up.BaseURL, "/") + chatPath,
	}, nil
}

// send posts the payload upstream. A returned response may carry a
// non-2xx status; the caller relays it as a dialect error. A nil
// response means the transport itself failed.
func (e *Engine) send(ctx context.Context, client *httpclient.Client, plan *callPlan) (*http.Response, *ir.Error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, plan.url, bytes.NewReader(plan.payload))
	if err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "failed to build upstream request: %v", err)
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(plan.payload)), nil
	}
	for k, v := range plan.upstream.Adapter.Headers(plan.upstream.APIKey) {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if resp == nil {
		return nil, classifyTransportError(ctx, err)
	}
	return resp, nil
}

func classifyTransportError(ctx context.Context, err error) *ir.Error {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
		return ir.NewError(ir.ErrCancelled, "client closed request")
	case errors.Is(err, context.DeadlineExceeded):
		return ir.NewErrorf(ir.ErrTimeout, "upstream request timed out: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ir.NewErrorf(ir.ErrTimeout, "upstream request timed out: %v", err)
	}
	return ir.NewErrorf(ir.ErrNetwork, "upstream unreachable: %v", err)
}

// UnaryResult is the final answer to a non-streaming proxy call.
type UnaryResult struct {
	Status int
	Body   []byte
}

// Unary proxies a non-streaming chat completion. The returned body is
// always in the route's ingress dialect, success and error alike.
// modelHint names the model for dialects whose requests carry it in
// the URL; it is ignored when the body names one.
func (e *Engine) Unary(ctx context.Context, route *Route, body []byte, modelHint string) UnaryResult {
	start := time.Now()
	rec := RequestLog{
		ID:        newRecordID(),
		Time:      start,
		RouteID:   route.ID,
		ProxyPath: route.ProxyPath,
	}
	if e.logBodies.Load() {
		rec.RequestBody = string(body)
	}

	plan, irErr := e.prepare(route, body, modelHint, false)
	if irErr != nil {
		return e.unaryError(ctx, route, rec, start, irErr)
	}
	rec.SourceModel = plan.sourceModel
	rec.TargetModel = plan.targetModel
	rec.Provider = plan.upstream.ProviderID

	resp, irErr := e.send(ctx, plan.upstream.Client, plan)
	if irErr != nil {
		return e.unaryError(ctx, route, rec, start, irErr)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return e.unaryError(ctx, route, rec, start, classifyTransportError(ctx, readErr))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := plan.upstream.Adapter.ParseError(resp.StatusCode, respBody)
		return e.unaryError(ctx, route, rec, start, upErr)
	}

	irResp, err := plan.upstream.Adapter.ParseResponse(respBody)
	if err != nil {
		return e.unaryError(ctx, route, rec, start,
			ir.NewErrorf(ir.ErrServer, "malformed upstream response: %v", err))
	}
	if irResp.Usage == nil {
		irResp.Usage = e.estimator.Estimate(plan.req, responseText(irResp))
	}

	out, err := route.Inbound.BuildResponse(irResp)
	if err != nil {
		return e.unaryError(ctx, route, rec, start,
			ir.NewErrorf(ir.ErrServer, "failed to render response: %v", err))
	}

	rec.StatusCode = http.StatusOK
	rec.InputTokens = irResp.Usage.PromptTokens
	rec.OutputTokens = irResp.Usage.CompletionTokens
	if e.logBodies.Load() {
		rec.ResponseBody = string(out)
	}
	e.emit(ctx, rec, start, "")
	return UnaryResult{Status: http.StatusOK, Body: out}
}

func (e *Engine) unaryError(ctx context.Context, route *Route, rec RequestLog, start time.Time, irErr *ir.Error) UnaryResult {
	status := irErr.Kind.HTTPStatus()
	body, err := route.Inbound.BuildError(irErr)
	if err != nil {
		body = []byte(`{"error":{"message":"internal error"}}`)
	}
	rec.StatusCode = status
	rec.Error = irErr.Message
	e.emit(ctx, rec, start, irErr.Kind)
	return UnaryResult{Status: status, Body: body}
}

// responseText gathers the countable output of a response for usage
// estimation.
func responseText(resp *ir.Response) string {
	choice := resp.First()
	if choice == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(choice.Message.Text())
	b.WriteString(choice.Message.ReasoningContent)
	for _, tc := range choice.Message.ToolCalls {
		b.WriteString(tc.Arguments)
	}
	return b.String()
}

// emit flushes the request record to the log sink and metrics.
func (e *Engine) emit(ctx context.Context, rec RequestLog, start time.Time, kind ir.ErrorKind) {
	rec.LatencyMS = time.Since(start).Milliseconds()
	e.sink.Append(ctx, rec)

	metrics := e.metrics
	if metrics == nil {
		metrics = observability.GetGlobalMetrics()
	}
	metrics.RecordRequest(ctx, observability.RequestSample{
		RouteID:      rec.RouteID,
		ProxyPath:    rec.ProxyPath,
		SourceModel:  rec.SourceModel,
		TargetModel:  rec.TargetModel,
		StatusCode:   rec.StatusCode,
		Streaming:    rec.Streaming,
		Duration:     time.Since(start),
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		ErrorKind:    string(kind),
	})
}
