package adapters

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

func TestOpenAIParseRequest(t *testing.T) {
	adapter := NewOpenAIAdapter()

	body := `{
		"model": "gpt-4o",
		"stream": true,
		"temperature": 0.7,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hello"}
		],
		"tools": [{"type": "function", "function": {"name": "get_weather", "parameters": {"type": "object"}}}],
		"tool_choice": "required"
	}`

	req, err := adapter.ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error: %v", err)
	}
	if req.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", req.Model)
	}
	if !req.Stream {
		t.Error("Stream = false, want true")
	}
	if req.System != "be terse" {
		t.Errorf("System = %q, want promoted system message", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != ir.RoleUser {
		t.Fatalf("Messages = %+v, want single user message", req.Messages)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "get_weather" {
		t.Errorf("Tools = %+v, want get_weather", req.Tools)
	}
	if req.ToolChoice == nil || req.ToolChoice.Mode != ir.ToolChoiceRequired {
		t.Errorf("ToolChoice = %+v, want required", req.ToolChoice)
	}
	if req.Generation == nil || req.Generation.Temperature == nil || *req.Generation.Temperature != 0.7 {
		t.Errorf("Generation = %+v, want temperature 0.7", req.Generation)
	}
}

func TestOpenAIParseRequestContentParts(t *testing.T) {
	adapter := NewOpenAIAdapter()

	body := `{
		"model": "gpt-4o",
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "what is this?"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,aGk="}}
		]}]
	}`

	req, err := adapter.ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error: %v", err)
	}
	parts := req.Messages[0].Parts
	if len(parts) != 2 {
		t.Fatalf("Parts = %+v, want 2 parts", parts)
	}
	if parts[1].Type != ir.ContentPartImage {
		t.Fatalf("second part type = %q, want image", parts[1].Type)
	}
	img := parts[1].Image
	if img.Kind != ir.ImageSourceBase64 || img.MediaType != "image/png" || img.Data != "aGk=" {
		t.Errorf("Image = %+v, want decoded data URI", img)
	}
}

func TestOpenAIParseRequestEmptyMessages(t *testing.T) {
	adapter := NewOpenAIAdapter()
	if _, err := adapter.ParseRequest([]byte(`{"model":"gpt-4o","messages":[]}`)); err == nil {
		t.Fatal("ParseRequest() with no messages succeeded, want validation error")
	}
}

func TestOpenAIBuildRequestDefaults(t *testing.T) {
	adapter := NewOpenAIAdapter()

	body, err := adapter.BuildRequest(&ir.Request{
		Stream:   true,
		Messages: []ir.Message{{Role: ir.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}

	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Model != "gpt-4o" {
		t.Errorf("Model = %q, want default gpt-4o", wire.Model)
	}
	if wire.StreamOptions == nil || !wire.StreamOptions.IncludeUsage {
		t.Error("StreamOptions.IncludeUsage not set for streaming request")
	}
}

func TestOpenAIBuildRequestToolResults(t *testing.T) {
	adapter := NewOpenAIAdapter()

	body, err := adapter.BuildRequest(&ir.Request{
		Model: "gpt-4o",
		Messages: []ir.Message{
			{Role: ir.RoleUser, Content: "weather?"},
			{Role: ir.RoleAssistant, ToolCalls: []ir.ToolCall{
				{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
			}},
			{Role: ir.RoleTool, ToolCallID: "call_1", Content: "rainy"},
		},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}

	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(wire.Messages) != 3 {
		t.Fatalf("Messages = %d, want 3", len(wire.Messages))
	}
	if wire.Messages[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool call = %+v", wire.Messages[1].ToolCalls)
	}
	last := wire.Messages[2]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v, want role tool with call id", last)
	}
}

func TestOpenAIParseResponse(t *testing.T) {
	adapter := NewOpenAIAdapter()

	body := `{
		"id": "chatcmpl-123",
		"object": "chat.completion",
		"model": "gpt-4o",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
		"usage": {
			"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15,
			"prompt_tokens_details": {"cached_tokens": 4},
			"completion_tokens_details": {"reasoning_tokens": 2}
		}
	}`

	resp, err := adapter.ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error: %v", err)
	}
	if got := resp.First(); got == nil || got.Message.Content != "hi" || got.FinishReason != ir.FinishStop {
		t.Fatalf("First() = %+v", got)
	}
	if resp.Usage.CachedTokens != 4 || resp.Usage.ReasoningTokens != 2 {
		t.Errorf("Usage = %+v, want detail tokens mapped", resp.Usage)
	}
}

func TestOpenAIParseError(t *testing.T) {
	adapter := NewOpenAIAdapter()

	irErr := adapter.ParseError(429, []byte(`{"error":{"message":"slow down","type":"rate_limit_error","code":"rate_limited"}}`))
	if irErr.Kind != ir.ErrRateLimit {
		t.Errorf("Kind = %q, want rate_limit", irErr.Kind)
	}
	if irErr.Message != "slow down" || irErr.Code != "rate_limited" {
		t.Errorf("error = %+v", irErr)
	}

	irErr = adapter.ParseError(500, []byte("not json"))
	if irErr.Kind != ir.ErrServer || irErr.Message == "" {
		t.Errorf("fallback error = %+v", irErr)
	}
}

func TestOpenAIStreamDecoder(t *testing.T) {
	decoder := NewOpenAIAdapter().NewStreamDecoder()

	frames := []string{
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		`[DONE]`,
	}

	var events []ir.StreamEvent
	for _, frame := range frames {
		evs, err := decoder.Decode("", []byte(frame))
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", frame, err)
		}
		events = append(events, evs...)
	}

	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = string(ev.Type)
	}
	want := "start content content end"
	if got := strings.Join(types, " "); got != want {
		t.Fatalf("event sequence = %q, want %q", got, want)
	}
	end := events[len(events)-1]
	if end.FinishReason != ir.FinishStop {
		t.Errorf("FinishReason = %q, want stop", end.FinishReason)
	}
	if end.Usage == nil || end.Usage.TotalTokens != 5 {
		t.Errorf("Usage = %+v, want totals from the usage chunk", end.Usage)
	}
}

func TestOpenAIStreamDecoderToolCalls(t *testing.T) {
	decoder := NewOpenAIAdapter().NewStreamDecoder()

	frames := []string{
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Oslo\"}"}}]}}],"usage":null}`,
		`{"id":"c","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	}

	var toolEvents []ir.StreamEvent
	var end *ir.StreamEvent
	for _, frame := range frames {
		evs, err := decoder.Decode("", []byte(frame))
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		for i := range evs {
			switch evs[i].Type {
			case ir.EventToolCall:
				toolEvents = append(toolEvents, evs[i])
			case ir.EventEnd:
				end = &evs[i]
			}
		}
	}

	if len(toolEvents) != 3 {
		t.Fatalf("tool events = %d, want 3", len(toolEvents))
	}
	if toolEvents[0].ToolCallID != "call_a" || toolEvents[0].ToolName != "get_weather" {
		t.Errorf("first fragment = %+v, want id and name", toolEvents[0])
	}
	var args strings.Builder
	for _, ev := range toolEvents {
		if ev.Index != 0 {
			t.Errorf("Index = %d, want 0", ev.Index)
		}
		args.WriteString(ev.ToolArguments)
	}
	if args.String() != `{"city":"Oslo"}` {
		t.Errorf("arguments = %q", args.String())
	}
	if end == nil || end.FinishReason != ir.FinishToolCalls {
		t.Errorf("end = %+v, want tool_calls finish", end)
	}
}

func TestOpenAIStreamBuilder(t *testing.T) {
	builder := NewOpenAIAdapter().NewStreamBuilder("chatcmpl-x", "gpt-4o")

	var frames []SSEEvent
	events := []ir.StreamEvent{
		ir.StartEvent("chatcmpl-x", "gpt-4o"),
		ir.ContentEvent("Hello", 0),
		ir.EndEvent(ir.FinishStop, &ir.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}),
	}
	for _, ev := range events {
		out, err := builder.Build(ev)
		if err != nil {
			t.Fatalf("Build(%v) error: %v", ev.Type, err)
		}
		frames = append(frames, out...)
	}
	frames = append(frames, builder.Finalize()...)

	if len(frames) != 4 {
		t.Fatalf("frames = %d, want role + content + finish + [DONE]", len(frames))
	}

	var first OpenAIStreamChunk
	if err := json.Unmarshal(frames[0].Data, &first); err != nil {
		t.Fatalf("unmarshal opener: %v", err)
	}
	if first.ID != "chatcmpl-x" || first.Choices[0].Delta.Role != "assistant" {
		t.Errorf("opener = %+v", first)
	}

	var last OpenAIStreamChunk
	if err := json.Unmarshal(frames[2].Data, &last); err != nil {
		t.Fatalf("unmarshal finish: %v", err)
	}
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "stop" {
		t.Errorf("finish frame = %+v", last)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 4 {
		t.Errorf("usage = %+v", last.Usage)
	}

	if string(frames[3].Data) != "[DONE]" {
		t.Errorf("terminator = %q, want [DONE]", frames[3].Data)
	}
}

func TestOpenAIStreamBuilderImplicitStart(t *testing.T) {
	builder := NewOpenAIAdapter().NewStreamBuilder("", "gpt-4o")

	frames, err := builder.Build(ir.ContentEvent("hi", 0))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want opener + content", len(frames))
	}

	var opener OpenAIStreamChunk
	if err := json.Unmarshal(frames[0].Data, &opener); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if opener.Choices[0].Delta.Role != "assistant" {
		t.Errorf("opener = %+v, want assistant role delta", opener)
	}
	if !strings.HasPrefix(opener.ID, "chatcmpl-") {
		t.Errorf("ID = %q, want synthesized chatcmpl id", opener.ID)
	}
}

func TestOpenAIStreamBuilderRejectsSecondToolCallAtOpenIndex(t *testing.T) {
	builder := NewOpenAIAdapter().NewStreamBuilder("c", "gpt-4o")

	first := ir.StreamEvent{Type: ir.EventToolCall, Index: 0, ToolCallID: "call_a", ToolName: "alpha", ToolArguments: `{"a":`}
	if _, err := builder.Build(first); err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	second := ir.StreamEvent{Type: ir.EventToolCall, Index: 0, ToolCallID: "call_b", ToolName: "beta", ToolArguments: "{}"}
	_, err := builder.Build(second)
	if err == nil {
		t.Fatal("Build() accepted a second tool call at an open index")
	}
	if irErr := ir.AsError(err); irErr.Kind != ir.ErrValidation {
		t.Errorf("Kind = %q, want validation", irErr.Kind)
	}

	// Fragments without id or name are argument continuations.
	cont := ir.StreamEvent{Type: ir.EventToolCall, Index: 0, ToolArguments: `1}`}
	if _, err := builder.Build(cont); err != nil {
		t.Errorf("continuation Build() error: %v", err)
	}
}

func TestOpenAIStreamBuilderInterrupted(t *testing.T) {
	builder := NewOpenAIAdapter().NewStreamBuilder("c", "gpt-4o")

	if _, err := builder.Build(ir.ContentEvent("partial", 0)); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	// No terminal event arrived; the stream must not fabricate [DONE].
	if frames := builder.Finalize(); len(frames) != 0 {
		t.Errorf("Finalize() = %v, want nothing", frames)
	}
}
