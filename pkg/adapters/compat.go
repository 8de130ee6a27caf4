package adapters

import (
	"bytes"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// NewDeepSeekAdapter returns the adapter for the DeepSeek dialect.
// DeepSeek speaks OpenAI chat completions and surfaces chain-of-thought
// through reasoning_content on deepseek-reasoner.
func NewDeepSeekAdapter() Adapter {
	return &openAICompat{
		name:         "deepseek",
		baseURL:      "https://api.deepseek.com",
		defaultModel: "deepseek-chat",
		models:       []string{"deepseek-chat", "deepseek-reasoner"},
		families: []Family{
			{Name: "reasoner", Keywords: []string{"reasoner", "r1"}},
			{Name: "chat", Keywords: []string{"chat", "v3"}},
		},
		caps: Capabilities{
			Streaming:    true,
			Tools:        true,
			SystemPrompt: true,
			ToolChoice:   true,
			Reasoning:    true,
			JSONMode:     true,
			Logprobs:     true,
		},
	}
}

// NewMoonshotAdapter returns the adapter for the Moonshot (Kimi)
// dialect. Moonshot rejects tool_choice "required", so it degrades to
// "auto".
func NewMoonshotAdapter() Adapter {
	return &openAICompat{
		name:         "moonshot",
		baseURL:      "https://api.moonshot.cn/v1",
		defaultModel: "moonshot-v1-8k",
		models:       []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k", "kimi-latest"},
		families: []Family{
			{Name: "kimi", Keywords: []string{"kimi"}},
			{Name: "moonshot-v1", Keywords: []string{"moonshot"}},
		},
		caps: Capabilities{
			Streaming:    true,
			Tools:        true,
			Vision:       true,
			Multimodal:   true,
			SystemPrompt: true,
			ToolChoice:   true,
			JSONMode:     true,
		},
		customize: func(wire *OpenAIRequest, req *ir.Request) {
			if bytes.Equal(wire.ToolChoice, []byte(`"required"`)) {
				wire.ToolChoice = []byte(`"auto"`)
			}
		},
	}
}

// NewQwenAdapter returns the adapter for the Alibaba Qwen dialect via
// the DashScope OpenAI-compatible endpoint. Web search and thinking
// ride the enable_search and enable_thinking extensions.
func NewQwenAdapter() Adapter {
	return &openAICompat{
		name:         "qwen",
		baseURL:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
		defaultModel: "qwen-plus",
		models:       []string{"qwen-max", "qwen-plus", "qwen-turbo", "qwen-long"},
		families: []Family{
			{Name: "max", Keywords: []string{"max"}},
			{Name: "plus", Keywords: []string{"plus"}},
			{Name: "turbo", Keywords: []string{"turbo"}},
		},
		caps: Capabilities{
			Streaming:    true,
			Tools:        true,
			Vision:       true,
			Multimodal:   true,
			SystemPrompt: true,
			ToolChoice:   true,
			Reasoning:    true,
			WebSearch:    true,
			JSONMode:     true,
		},
		customize: func(wire *OpenAIRequest, req *ir.Request) {
			if req.Generation == nil {
				return
			}
			if req.Generation.EnableSearch {
				wire.EnableSearch = true
			}
			if t := req.Generation.Thinking; t != nil {
				enabled := t.Enabled
				wire.EnableThinking = &enabled
			}
		},
	}
}

// NewZhipuAdapter returns the adapter for the Zhipu GLM dialect. The
// thinking switch is an object-valued extension rather than a boolean.
func NewZhipuAdapter() Adapter {
	return &openAICompat{
		name:         "zhipu",
		baseURL:      "https://open.bigmodel.cn/api/paas/v4",
		defaultModel: "glm-4-plus",
		models:       []string{"glm-4-plus", "glm-4-air", "glm-4-flash", "glm-4v-plus"},
		families: []Family{
			{Name: "glm-4v", Keywords: []string{"glm-4v"}},
			{Name: "glm-4", Keywords: []string{"glm-4"}},
		},
		caps: Capabilities{
			Streaming:    true,
			Tools:        true,
			Vision:       true,
			Multimodal:   true,
			SystemPrompt: true,
			ToolChoice:   true,
			Reasoning:    true,
			WebSearch:    true,
			JSONMode:     true,
		},
		customize: func(wire *OpenAIRequest, req *ir.Request) {
			if req.Generation == nil || req.Generation.Thinking == nil {
				return
			}
			thinking := &ZhipuThinking{Type: "disabled"}
			if req.Generation.Thinking.Enabled {
				thinking.Type = "enabled"
			}
			wire.Thinking = thinking
		},
	}
}
