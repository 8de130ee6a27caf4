package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/config"
)

type frameCollector struct {
	frames []adapters.SSEEvent
	fail   bool
}

func (c *frameCollector) WriteFrame(f adapters.SSEEvent) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *frameCollector) joined() string {
	var b strings.Builder
	for _, f := range c.frames {
		b.Write(f.Data)
		b.WriteByte('\n')
	}
	return b.String()
}

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	cfg.SetDefaults()
	engine, err := NewEngine(cfg, adapters.NewRegistry())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return engine
}

func singleRouteConfig(upstreamURL, dialect, providerType string, mappings []config.ModelMapping) *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"up": {Type: providerType, BaseURL: upstreamURL, APIKey: "sk-test"},
		},
		Routes: map[string]config.RouteConfig{
			"main": {Dialect: dialect, Provider: "up", ModelMappings: mappings},
		},
	}
}

func TestUnaryTranslatesAcrossDialects(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4",
			"content": [{"type": "text", "text": "Hello!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 9, "output_tokens": 3}
		}`))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "anthropic",
		[]config.ModelMapping{{SourceModel: "gpt-4o", TargetModel: "claude-sonnet-4", Type: config.MappingExact}}))

	route, ok := engine.Route("main")
	if !ok {
		t.Fatal("route not found")
	}
	result := engine.Unary(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`), "")

	if result.Status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", result.Status, result.Body)
	}
	if gotPath != "/messages" {
		t.Errorf("upstream path = %q, want /messages", gotPath)
	}
	if gotKey != "sk-test" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotBody["model"] != "claude-sonnet-4" {
		t.Errorf("upstream model = %v, want claude-sonnet-4", gotBody["model"])
	}

	var out struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(result.Body, &out); err != nil {
		t.Fatalf("response not in the ingress dialect: %v", err)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "Hello!" {
		t.Errorf("choices = %+v", out.Choices)
	}
	if out.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", out.Choices[0].FinishReason)
	}
	if out.Usage.PromptTokens != 9 {
		t.Errorf("prompt_tokens = %d, want 9", out.Usage.PromptTokens)
	}
}

func TestUnaryRelaysUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "anthropic", nil))
	route, _ := engine.Route("main")
	result := engine.Unary(context.Background(), route,
		[]byte(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`), "")

	if result.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", result.Status)
	}
	var out struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(result.Body, &out); err != nil {
		t.Fatalf("error body not in the ingress dialect: %v", err)
	}
	if out.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q, want rate_limit_error", out.Error.Type)
	}
	if out.Error.Message != "slow down" {
		t.Errorf("error message = %q", out.Error.Message)
	}
}

func TestUnaryRejectsInvalidRequestWithoutUpstreamCall(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "openai", nil))
	route, _ := engine.Route("main")
	result := engine.Unary(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[]}`), "")

	if result.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", result.Status)
	}
	if calls.Load() != 0 {
		t.Error("invalid request reached the upstream")
	}
}

func TestUnaryEstimatesMissingUsage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01", "type": "message", "role": "assistant",
			"content": [{"type": "text", "text": "Hello there, how can I help?"}],
			"stop_reason": "end_turn"
		}`))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "anthropic", nil))
	route, _ := engine.Route("main")
	result := engine.Unary(context.Background(), route,
		[]byte(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`), "")

	if result.Status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", result.Status, result.Body)
	}
	var out struct {
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	json.Unmarshal(result.Body, &out)
	if out.Usage.TotalTokens == 0 {
		t.Error("usage not synthesized for an upstream that reported none")
	}
}

func TestUnaryChainedRoutesApplyMappingsInOrder(t *testing.T) {
	var gotModel string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01", "type": "message", "role": "assistant",
			"content": [{"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"claude": {Type: "anthropic", BaseURL: upstream.URL},
		},
		Routes: map[string]config.RouteConfig{
			"edge": {Dialect: "openai", Route: "inner", ModelMappings: []config.ModelMapping{
				{SourceModel: "gpt-4o", TargetModel: "claude-3-opus", Type: config.MappingExact},
			}},
			"inner": {Dialect: "anthropic", Provider: "claude", ModelMappings: []config.ModelMapping{
				{SourceModel: "claude-3-opus", TargetModel: "claude-sonnet-4", Type: config.MappingExact},
			}},
		},
	}
	engine := newTestEngine(t, cfg)

	route, _ := engine.Route("edge")
	result := engine.Unary(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`), "")

	if result.Status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", result.Status, result.Body)
	}
	if gotModel != "claude-sonnet-4" {
		t.Errorf("upstream model = %q, want claude-sonnet-4 after two hops", gotModel)
	}
}

func TestStreamTranslatesFrames(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
			`[DONE]`,
		}
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			w.Write([]byte("data: " + c + "\n\n"))
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "anthropic", "openai", nil))
	route, _ := engine.Route("main")

	sink := &frameCollector{}
	result := engine.Stream(context.Background(), route,
		[]byte(`{"model":"gpt-4o","max_tokens":100,"messages":[{"role":"user","content":"hi"}],"stream":true}`),
		"", sink)

	if !result.Started {
		t.Fatalf("stream never started, status = %d body = %s", result.Status, result.Body)
	}
	if len(sink.frames) == 0 {
		t.Fatal("no frames written")
	}
	if sink.frames[0].Event != "message_start" {
		t.Errorf("first frame event = %q, want message_start", sink.frames[0].Event)
	}
	last := sink.frames[len(sink.frames)-1]
	if last.Event != "message_stop" {
		t.Errorf("last frame event = %q, want message_stop", last.Event)
	}
	if !strings.Contains(sink.joined(), "Hello") {
		t.Error("content delta not relayed")
	}
}

func TestStreamSynthesizesStopOnEOF(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"partial"},"finish_reason":null}]}` + "\n\n"))
		// Connection drops without a finish chunk or [DONE].
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "openai", nil))
	route, _ := engine.Route("main")

	sink := &frameCollector{}
	result := engine.Stream(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true}`),
		"", sink)

	if !result.Started {
		t.Fatal("stream never started")
	}
	joined := sink.joined()
	if !strings.Contains(joined, `"finish_reason":"stop"`) {
		t.Error("no synthesized finish chunk after upstream EOF")
	}
	last := sink.frames[len(sink.frames)-1]
	if string(last.Data) != "[DONE]" {
		t.Errorf("last frame = %q, want [DONE]", last.Data)
	}
}

func TestStreamSynthesizedEndKeepsLatchedFinish(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{}"}}]}}]}` + "\n\n"))
		w.Write([]byte(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}` + "\n\n"))
		// Connection drops before [DONE].
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "openai", nil))
	route, _ := engine.Route("main")

	sink := &frameCollector{}
	result := engine.Stream(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true}`),
		"", sink)

	if !result.Started {
		t.Fatal("stream never started")
	}
	joined := sink.joined()
	if !strings.Contains(joined, `"finish_reason":"tool_calls"`) {
		t.Error("synthesized end lost the finish reason the upstream had sent")
	}
	if strings.Contains(joined, `"finish_reason":"stop"`) {
		t.Error("synthesized end replaced tool_calls with stop")
	}
	last := sink.frames[len(sink.frames)-1]
	if string(last.Data) != "[DONE]" {
		t.Errorf("last frame = %q, want [DONE]", last.Data)
	}
}

func TestStreamUpstreamErrorBeforeFirstFrame(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "anthropic", nil))
	route, _ := engine.Route("main")

	sink := &frameCollector{}
	result := engine.Stream(context.Background(), route,
		[]byte(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}],"stream":true}`),
		"", sink)

	if result.Started {
		t.Fatal("stream started despite upstream rejection")
	}
	if result.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", result.Status)
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(result.Body, &out); err != nil {
		t.Fatalf("error body not in the ingress dialect: %v", err)
	}
	if out.Error.Type != "authentication_error" {
		t.Errorf("error type = %q", out.Error.Type)
	}
}

func TestStreamStopsWhenClientDisconnects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"hi"},"finish_reason":null}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer upstream.Close()

	engine := newTestEngine(t, singleRouteConfig(upstream.URL, "openai", "openai", nil))
	route, _ := engine.Route("main")

	sink := &frameCollector{fail: true}
	result := engine.Stream(context.Background(), route,
		[]byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true}`),
		"", sink)

	if result.Started {
		t.Error("Started = true although every write failed")
	}
	if len(sink.frames) != 0 {
		t.Errorf("%d frames written to a dead client", len(sink.frames))
	}
}

func TestEngineReloadSwapsRoutes(t *testing.T) {
	cfg := singleRouteConfig("http://127.0.0.1:1", "openai", "openai", nil)
	engine := newTestEngine(t, cfg)

	if _, ok := engine.Route("main"); !ok {
		t.Fatal("route missing before reload")
	}

	next := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"up": {Type: "openai", BaseURL: "http://127.0.0.1:1"},
		},
		Routes: map[string]config.RouteConfig{
			"renamed": {Dialect: "openai", Provider: "up"},
		},
	}
	next.SetDefaults()
	if err := engine.Reload(next); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	if _, ok := engine.Route("main"); ok {
		t.Error("stale route survived reload")
	}
	if _, ok := engine.Route("renamed"); !ok {
		t.Error("new route missing after reload")
	}
}

func TestEngineModels(t *testing.T) {
	cfg := singleRouteConfig("http://127.0.0.1:1", "openai", "anthropic",
		[]config.ModelMapping{
			{SourceModel: "gpt-4o", TargetModel: "claude-sonnet-4", Type: config.MappingExact},
			{TargetModel: "claude-haiku", Type: config.MappingDefault},
		})
	engine := newTestEngine(t, cfg)
	route, _ := engine.Route("main")

	models := engine.Models(route)
	if len(models) == 0 || models[0] != "gpt-4o" {
		t.Fatalf("models = %v, want exact mapping sources first", models)
	}
	for _, m := range models {
		if m == "claude-haiku" {
			t.Error("default mapping target leaked into the model list")
		}
	}
}
