// Package ir defines the neutral chat-completion data model that every
// dialect adapter lifts its wire format to and lowers it from. The IR is
// purely data: no behavior beyond validation, and it is the only form the
// bridge engine passes between adapters.
package ir

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPartType tags a ContentPart variant.
type ContentPartType string

const (
	ContentPartText       ContentPartType = "text"
	ContentPartImage      ContentPartType = "image"
	ContentPartToolUse    ContentPartType = "tool_use"
	ContentPartToolResult ContentPartType = "tool_result"
)

// ImageSourceKind distinguishes URL-referenced from inline image data.
type ImageSourceKind string

const (
	ImageSourceURL    ImageSourceKind = "url"
	ImageSourceBase64 ImageSourceKind = "base64"
)

// ImageSource carries an image either by URL or as inline base64 data.
type ImageSource struct {
	Kind      ImageSourceKind `json:"kind"`
	URL       string          `json:"url,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// ContentPart is a tagged variant. Exactly the fields belonging to Type
// are set; translation code switches on Type exhaustively.
type ContentPart struct {
	Type ContentPartType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Image *ImageSource `json:"image,omitempty"`

	// tool_use
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// tool_result
	ResultFor string `json:"result_for,omitempty"`
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// ToolCall is a function invocation requested by the assistant. Arguments
// is the raw JSON string exactly as the dialect carried it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn of the conversation. Content holds plain text; when
// the turn carries structured parts (images, tool use blocks) Parts is
// set instead and Content is empty.
type Message struct {
	Role             Role          `json:"role"`
	Content          string        `json:"content,omitempty"`
	Parts            []ContentPart `json:"parts,omitempty"`
	Name             string        `json:"name,omitempty"`
	ToolCallID       string        `json:"tool_call_id,omitempty"`
	ToolCalls        []ToolCall    `json:"tool_calls,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
}

// Text returns the message's textual content, concatenating text parts
// when the message is structured.
func (m *Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == ContentPartText {
			out += p.Text
		}
	}
	return out
}

// Tool describes a function the model may call. Parameters is a JSON
// schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoiceMode is the closed set of tool-choice directives.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceFunction ToolChoiceMode = "function"
)

// ToolChoice directs how the model may use tools. FunctionName is set
// only when Mode is ToolChoiceFunction.
type ToolChoice struct {
	Mode         ToolChoiceMode `json:"mode"`
	FunctionName string         `json:"function_name,omitempty"`
}

// ResponseFormatType is the closed set of response-format selectors.
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// ResponseFormat constrains the model's output shape. JSONSchema must be
// present when Type is ResponseFormatJSONSchema.
type ResponseFormat struct {
	Type       ResponseFormatType `json:"type"`
	Name       string             `json:"name,omitempty"`
	JSONSchema map[string]any     `json:"json_schema,omitempty"`
	Strict     bool               `json:"strict,omitempty"`
}

// Thinking configures extended reasoning on dialects that support it.
type Thinking struct {
	Enabled      bool `json:"enabled"`
	BudgetTokens int  `json:"budget_tokens,omitempty"`
}

// GenerationParams are the sampling and decoding knobs. Pointer fields
// distinguish "unset" from an explicit zero.
type GenerationParams struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	TopK             *int            `json:"top_k,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	StopSequences    []string        `json:"stop_sequences,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	N                *int            `json:"n,omitempty"`
	Seed             *int64          `json:"seed,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Thinking         *Thinking       `json:"thinking,omitempty"`
	EnableSearch     bool            `json:"enable_search,omitempty"`
	Logprobs         bool            `json:"logprobs,omitempty"`
	TopLogprobs      *int            `json:"top_logprobs,omitempty"`
}

// ThinkingEnabled reports whether extended reasoning was requested.
func (g *GenerationParams) ThinkingEnabled() bool {
	return g != nil && g.Thinking != nil && g.Thinking.Enabled
}

// Request is the neutral chat-completion request.
type Request struct {
	Model      string            `json:"model,omitempty"`
	System     string            `json:"system,omitempty"`
	Messages   []Message         `json:"messages"`
	Tools      []Tool            `json:"tools,omitempty"`
	ToolChoice *ToolChoice       `json:"tool_choice,omitempty"`
	Stream     bool              `json:"stream,omitempty"`
	Generation *GenerationParams `json:"generation,omitempty"`

	// Raw preserves the original dialect payload for debugging and
	// opaque pass-through. Adapters never read it back.
	Raw json.RawMessage `json:"-"`
}

// Validate checks the structural invariants: non-empty messages,
// tool-call id references, and parameter ranges.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return NewError(ErrValidation, "messages must not be empty")
	}

	known := make(map[string]bool)
	for i := range r.Messages {
		msg := &r.Messages[i]
		for _, tc := range msg.ToolCalls {
			known[tc.ID] = true
		}
		for _, p := range msg.Parts {
			if p.Type == ContentPartToolUse {
				known[p.ToolUseID] = true
			}
		}
		if msg.Role == RoleTool && msg.ToolCallID != "" && !known[msg.ToolCallID] {
			return NewError(ErrValidation,
				fmt.Sprintf("tool message references unknown tool call id %q", msg.ToolCallID))
		}
		for _, p := range msg.Parts {
			if p.Type == ContentPartToolResult && p.ResultFor != "" && !known[p.ResultFor] {
				return NewError(ErrValidation,
					fmt.Sprintf("tool_result references unknown tool_use id %q", p.ResultFor))
			}
		}
	}

	if g := r.Generation; g != nil {
		if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
			return NewError(ErrValidation, "temperature must be in [0, 2]")
		}
		if g.TopP != nil && (*g.TopP < 0 || *g.TopP > 1) {
			return NewError(ErrValidation, "top_p must be in [0, 1]")
		}
		if g.TopK != nil && *g.TopK < 0 {
			return NewError(ErrValidation, "top_k must be non-negative")
		}
		if g.MaxTokens != nil && *g.MaxTokens < 0 {
			return NewError(ErrValidation, "max_tokens must be non-negative")
		}
		if g.N != nil && *g.N < 0 {
			return NewError(ErrValidation, "n must be non-negative")
		}
		if g.TopLogprobs != nil && *g.TopLogprobs < 0 {
			return NewError(ErrValidation, "top_logprobs must be non-negative")
		}
		if g.PresencePenalty != nil && (*g.PresencePenalty < -2 || *g.PresencePenalty > 2) {
			return NewError(ErrValidation, "presence_penalty must be in [-2, 2]")
		}
		if g.FrequencyPenalty != nil && (*g.FrequencyPenalty < -2 || *g.FrequencyPenalty > 2) {
			return NewError(ErrValidation, "frequency_penalty must be in [-2, 2]")
		}
		if g.ResponseFormat != nil && g.ResponseFormat.Type == ResponseFormatJSONSchema && g.ResponseFormat.JSONSchema == nil {
			return NewError(ErrValidation, "response_format json_schema requires a schema")
		}
	}

	return nil
}
