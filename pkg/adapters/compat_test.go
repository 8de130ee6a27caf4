package adapters

import (
	"encoding/json"
	"testing"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

func TestRegistryContainsAllDialects(t *testing.T) {
	registry := NewRegistry()

	want := []string{"openai", "anthropic", "gemini", "deepseek", "moonshot", "qwen", "zhipu"}
	if got := registry.Names(); len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for _, name := range want {
		adapter, err := registry.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", name, err)
		}
		if adapter.Name() != name {
			t.Errorf("Lookup(%q).Name() = %q", name, adapter.Name())
		}
	}

	if _, err := registry.Lookup("unknown"); err == nil {
		t.Error("Lookup(unknown) succeeded, want error")
	}
}

func TestDialectEndpoints(t *testing.T) {
	tests := []struct {
		adapter      Adapter
		baseURL      string
		defaultModel string
	}{
		{NewDeepSeekAdapter(), "https://api.deepseek.com", "deepseek-chat"},
		{NewMoonshotAdapter(), "https://api.moonshot.cn/v1", "moonshot-v1-8k"},
		{NewQwenAdapter(), "https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen-plus"},
		{NewZhipuAdapter(), "https://open.bigmodel.cn/api/paas/v4", "glm-4-plus"},
	}

	for _, tt := range tests {
		t.Run(tt.adapter.Name(), func(t *testing.T) {
			if got := tt.adapter.BaseURL(); got != tt.baseURL {
				t.Errorf("BaseURL() = %q, want %q", got, tt.baseURL)
			}
			if got := tt.adapter.DefaultModel(); got != tt.defaultModel {
				t.Errorf("DefaultModel() = %q, want %q", got, tt.defaultModel)
			}
			if tt.adapter.ChatPath(tt.defaultModel, true) != "/chat/completions" {
				t.Errorf("ChatPath() = %q", tt.adapter.ChatPath(tt.defaultModel, true))
			}
		})
	}
}

func TestMoonshotDegradesRequiredToolChoice(t *testing.T) {
	adapter := NewMoonshotAdapter()

	body, err := adapter.BuildRequest(&ir.Request{
		Model:    "moonshot-v1-8k",
		Messages: []ir.Message{{Role: ir.RoleUser, Content: "hi"}},
		Tools:    []ir.Tool{{Name: "get_weather"}},
		ToolChoice: &ir.ToolChoice{
			Mode: ir.ToolChoiceRequired,
		},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}

	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(wire.ToolChoice) != `"auto"` {
		t.Errorf("tool_choice = %s, want degraded to auto", wire.ToolChoice)
	}
}

func TestMoonshotKeepsFunctionToolChoice(t *testing.T) {
	adapter := NewMoonshotAdapter()

	body, err := adapter.BuildRequest(&ir.Request{
		Messages:   []ir.Message{{Role: ir.RoleUser, Content: "hi"}},
		Tools:      []ir.Tool{{Name: "get_weather"}},
		ToolChoice: &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: "get_weather"},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}

	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(wire.ToolChoice, &obj); err != nil || obj.Function.Name != "get_weather" {
		t.Errorf("tool_choice = %s, want function selector preserved", wire.ToolChoice)
	}
}

func TestQwenExtensions(t *testing.T) {
	adapter := NewQwenAdapter()

	body, err := adapter.BuildRequest(&ir.Request{
		Messages: []ir.Message{{Role: ir.RoleUser, Content: "hi"}},
		Generation: &ir.GenerationParams{
			EnableSearch: true,
			Thinking:     &ir.Thinking{Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}

	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !wire.EnableSearch {
		t.Error("enable_search not set")
	}
	if wire.EnableThinking == nil || !*wire.EnableThinking {
		t.Errorf("enable_thinking = %v, want true", wire.EnableThinking)
	}
}

func TestZhipuThinkingObject(t *testing.T) {
	adapter := NewZhipuAdapter()

	tests := []struct {
		name    string
		enabled bool
		want    string
	}{
		{"enabled", true, "enabled"},
		{"disabled", false, "disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := adapter.BuildRequest(&ir.Request{
				Messages: []ir.Message{{Role: ir.RoleUser, Content: "hi"}},
				Generation: &ir.GenerationParams{
					Thinking: &ir.Thinking{Enabled: tt.enabled},
				},
			})
			if err != nil {
				t.Fatalf("BuildRequest() error: %v", err)
			}
			var wire OpenAIRequest
			if err := json.Unmarshal(body, &wire); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if wire.Thinking == nil || wire.Thinking.Type != tt.want {
				t.Errorf("thinking = %+v, want %q", wire.Thinking, tt.want)
			}
		})
	}
}

func TestDeepSeekParsesReasoningContent(t *testing.T) {
	adapter := NewDeepSeekAdapter()

	body := `{
		"id": "chatcmpl-1",
		"model": "deepseek-reasoner",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "42", "reasoning_content": "thinking it through"}, "finish_reason": "stop"}]
	}`

	resp, err := adapter.ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error: %v", err)
	}
	msg := resp.First().Message
	if msg.Content != "42" || msg.ReasoningContent != "thinking it through" {
		t.Errorf("message = %+v", msg)
	}
}

func TestCapabilitiesDifferByDialect(t *testing.T) {
	if NewDeepSeekAdapter().Capabilities().Vision {
		t.Error("deepseek should not report vision")
	}
	if !NewQwenAdapter().Capabilities().WebSearch {
		t.Error("qwen should report web search")
	}
	if NewMoonshotAdapter().Capabilities().Reasoning {
		t.Error("moonshot should not report reasoning")
	}
	if !NewAnthropicAdapter().Capabilities().Reasoning {
		t.Error("anthropic should report reasoning")
	}
}
