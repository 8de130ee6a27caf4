package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
)

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
	// Anthropic rejects thinking budgets below this floor.
	anthropicMinThinkingBudget = 1024
)

type AnthropicRequest struct {
	Model         string               `json:"model,omitempty"`
	MaxTokens     int                  `json:"max_tokens"`
	Messages      []AnthropicMessage   `json:"messages"`
	System        json.RawMessage      `json:"system,omitempty"`
	Tools         []AnthropicTool      `json:"tools,omitempty"`
	ToolChoice    *AnthropicToolChoice `json:"tool_choice,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	TopP          *float64             `json:"top_p,omitempty"`
	TopK          *int                 `json:"top_k,omitempty"`
	StopSequences []string             `json:"stop_sequences,omitempty"`
	Thinking      *AnthropicThinking   `json:"thinking,omitempty"`
}

type AnthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type AnthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *AnthropicImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`
}

type AnthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type AnthropicResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model,omitempty"`
	Content      []AnthropicContentBlock `json:"content"`
	StopReason   string                  `json:"stop_reason,omitempty"`
	StopSequence *string                 `json:"stop_sequence,omitempty"`
	Usage        *AnthropicUsage         `json:"usage,omitempty"`
}

type AnthropicUsage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens,omitempty"`
}

type AnthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicErrorEnvelope struct {
	Type  string          `json:"type"`
	Error *AnthropicError `json:"error,omitempty"`
}

type anthropicAdapter struct{}

// NewAnthropicAdapter returns the adapter for the Anthropic messages
// dialect.
func NewAnthropicAdapter() Adapter {
	return &anthropicAdapter{}
}

func (a *anthropicAdapter) Name() string { return "anthropic" }

func (a *anthropicAdapter) Capabilities() Capabilities {
	return Capabilities{
		Streaming:    true,
		Tools:        true,
		Vision:       true,
		Multimodal:   true,
		SystemPrompt: true,
		ToolChoice:   true,
		Reasoning:    true,
	}
}

func (a *anthropicAdapter) StreamFormat() StreamFormat { return StreamSSE }
func (a *anthropicAdapter) DefaultModel() string       { return "claude-3-5-sonnet-20241022" }

func (a *anthropicAdapter) FamilyModels() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

func (a *anthropicAdapter) FamilyCatalog() []Family {
	return []Family{
		{Name: "opus", Keywords: []string{"opus"}},
		{Name: "sonnet", Keywords: []string{"sonnet"}},
		{Name: "haiku", Keywords: []string{"haiku"}},
	}
}

func (a *anthropicAdapter) BaseURL() string    { return "https://api.anthropic.com/v1" }
func (a *anthropicAdapter) ModelsPath() string { return "/models" }

func (a *anthropicAdapter) ChatPath(model string, stream bool) string {
	return "/messages"
}

func (a *anthropicAdapter) Headers(apiKey string) map[string]string {
	headers := map[string]string{
		"Content-Type":      "application/json",
		"anthropic-version": anthropicVersion,
	}
	if apiKey != "" {
		headers["x-api-key"] = apiKey
	}
	return headers
}

func (a *anthropicAdapter) RateLimitParser() httpclient.RateLimitHeaderParser {
	return httpclient.ParseAnthropicHeaders
}

func (a *anthropicAdapter) ParseRequest(body []byte) (*ir.Request, error) {
	var wire AnthropicRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed anthropic request: %v", err)
	}
	if len(wire.Messages) == 0 {
		return nil, ir.NewError(ir.ErrValidation, "messages must not be empty")
	}

	req := &ir.Request{
		Model:  wire.Model,
		System: parseAnthropicSystem(wire.System),
		Stream: wire.Stream,
		Raw:    json.RawMessage(body),
	}

	for _, msg := range wire.Messages {
		irMsg, err := anthropicMessageToIR(msg)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, irMsg)
	}

	for _, tool := range wire.Tools {
		req.Tools = append(req.Tools, ir.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		})
	}

	if tc := wire.ToolChoice; tc != nil {
		switch tc.Type {
		case "auto":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
		case "any":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
		case "none":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceNone}
		case "tool":
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: tc.Name}
		default:
			return nil, ir.NewErrorf(ir.ErrValidation, "unknown tool_choice type %q", tc.Type)
		}
	}

	gen := &ir.GenerationParams{
		Temperature:   wire.Temperature,
		TopP:          wire.TopP,
		TopK:          wire.TopK,
		StopSequences: wire.StopSequences,
	}
	if wire.MaxTokens > 0 {
		maxTokens := wire.MaxTokens
		gen.MaxTokens = &maxTokens
	}
	if wire.Thinking != nil {
		gen.Thinking = &ir.Thinking{
			Enabled:      wire.Thinking.Type == "enabled",
			BudgetTokens: wire.Thinking.BudgetTokens,
		}
	}
	if gen.Temperature != nil || gen.TopP != nil || gen.TopK != nil ||
		gen.MaxTokens != nil || len(gen.StopSequences) > 0 || gen.Thinking != nil {
		req.Generation = gen
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// parseAnthropicSystem accepts the string form and the content-block
// array form of the system field.
func parseAnthropicSystem(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func anthropicMessageToIR(msg AnthropicMessage) (ir.Message, error) {
	irMsg := ir.Message{}
	switch msg.Role {
	case "assistant":
		irMsg.Role = ir.RoleAssistant
	default:
		irMsg.Role = ir.RoleUser
	}

	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		irMsg.Content = text
		return irMsg, nil
	}

	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return ir.Message{}, ir.NewError(ir.ErrValidation, "message content must be a string or an array of blocks")
	}

	var parts []ir.ContentPart
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, ir.TextPart(b.Text))
		case "image":
			if b.Source == nil {
				continue
			}
			src := &ir.ImageSource{}
			if b.Source.Type == "url" {
				src.Kind = ir.ImageSourceURL
				src.URL = b.Source.URL
			} else {
				src.Kind = ir.ImageSourceBase64
				src.MediaType = b.Source.MediaType
				src.Data = b.Source.Data
			}
			parts = append(parts, ir.ContentPart{Type: ir.ContentPartImage, Image: src})
		case "tool_use":
			parts = append(parts, ir.ContentPart{
				Type:      ir.ContentPartToolUse,
				ToolUseID: b.ID,
				ToolName:  b.Name,
				ToolInput: b.Input,
			})
		case "tool_result":
			parts = append(parts, ir.ContentPart{
				Type:      ir.ContentPartToolResult,
				ResultFor: b.ToolUseID,
				Result:    parseAnthropicResultContent(b.Content),
				IsError:   b.IsError,
			})
		case "thinking":
			irMsg.ReasoningContent += b.Thinking
		}
	}

	if len(parts) == 1 && parts[0].Type == ir.ContentPartText {
		irMsg.Content = parts[0].Text
	} else {
		irMsg.Parts = parts
	}
	return irMsg, nil
}

// parseAnthropicResultContent flattens a tool result's string-or-blocks
// content to text.
func parseAnthropicResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return string(raw)
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (a *anthropicAdapter) BuildRequest(req *ir.Request) ([]byte, error) {
	wire := AnthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicDefaultMaxTokens,
		Stream:    req.Stream,
	}
	if wire.Model == "" {
		wire.Model = a.DefaultModel()
	}

	system := req.System
	for i := range req.Messages {
		msg := &req.Messages[i]
		// System-role messages inside the array fold into the top-level
		// system field.
		if msg.Role == ir.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text()
			continue
		}
		role, content, err := irMessageToAnthropic(msg)
		if err != nil {
			return nil, err
		}
		// The messages API requires alternating roles; consecutive
		// same-role turns merge into one content array.
		if n := len(wire.Messages); n > 0 && wire.Messages[n-1].Role == role {
			merged, err := mergeAnthropicContent(wire.Messages[n-1].Content, content)
			if err != nil {
				return nil, err
			}
			wire.Messages[n-1].Content = merged
			continue
		}
		wire.Messages = append(wire.Messages, AnthropicMessage{Role: role, Content: content})
	}
	if system != "" {
		wire.System, _ = json.Marshal(system)
	}

	for _, tool := range req.Tools {
		schema := tool.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		wire.Tools = append(wire.Tools, AnthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	if tc := req.ToolChoice; tc != nil {
		switch tc.Mode {
		case ir.ToolChoiceAuto:
			wire.ToolChoice = &AnthropicToolChoice{Type: "auto"}
		case ir.ToolChoiceRequired:
			wire.ToolChoice = &AnthropicToolChoice{Type: "any"}
		case ir.ToolChoiceNone:
			wire.ToolChoice = &AnthropicToolChoice{Type: "none"}
		case ir.ToolChoiceFunction:
			wire.ToolChoice = &AnthropicToolChoice{Type: "tool", Name: tc.FunctionName}
		}
	}

	if gen := req.Generation; gen != nil {
		wire.Temperature = gen.Temperature
		wire.TopP = gen.TopP
		wire.TopK = gen.TopK
		wire.StopSequences = gen.StopSequences
		if gen.MaxTokens != nil && *gen.MaxTokens > 0 {
			wire.MaxTokens = *gen.MaxTokens
		}
		if gen.Thinking != nil && gen.Thinking.Enabled {
			budget := gen.Thinking.BudgetTokens
			if budget < anthropicMinThinkingBudget {
				budget = anthropicMinThinkingBudget
			}
			wire.Thinking = &AnthropicThinking{Type: "enabled", BudgetTokens: budget}
			// Extended thinking requires the budget to fit under
			// max_tokens.
			if wire.MaxTokens <= budget {
				wire.MaxTokens = budget + anthropicDefaultMaxTokens
			}
		}
		// response_format, penalties, n, seed, and logprobs have no
		// Anthropic equivalent and are dropped.
	}

	return json.Marshal(wire)
}

func irMessageToAnthropic(msg *ir.Message) (string, json.RawMessage, error) {
	role := "user"
	if msg.Role == ir.RoleAssistant {
		role = "assistant"
	}

	// A tool-role message becomes a user turn with a tool_result block.
	if msg.Role == ir.RoleTool {
		content, _ := json.Marshal(msg.Content)
		blocks := []AnthropicContentBlock{{
			Type:      "tool_result",
			ToolUseID: msg.ToolCallID,
			Content:   content,
		}}
		raw, err := json.Marshal(blocks)
		return "user", raw, err
	}

	var blocks []AnthropicContentBlock

	if msg.ReasoningContent != "" && msg.Role == ir.RoleAssistant {
		blocks = append(blocks, AnthropicContentBlock{Type: "thinking", Thinking: msg.ReasoningContent})
	}

	if msg.Content != "" {
		blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: msg.Content})
	}
	for _, p := range msg.Parts {
		switch p.Type {
		case ir.ContentPartText:
			blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: p.Text})
		case ir.ContentPartImage:
			if p.Image == nil {
				continue
			}
			src := &AnthropicImageSource{}
			if p.Image.Kind == ir.ImageSourceURL {
				src.Type = "url"
				src.URL = p.Image.URL
			} else {
				src.Type = "base64"
				src.MediaType = p.Image.MediaType
				src.Data = p.Image.Data
			}
			blocks = append(blocks, AnthropicContentBlock{Type: "image", Source: src})
		case ir.ContentPartToolUse:
			blocks = append(blocks, AnthropicContentBlock{
				Type:  "tool_use",
				ID:    p.ToolUseID,
				Name:  p.ToolName,
				Input: normalizeToolInput(p.ToolInput),
			})
		case ir.ContentPartToolResult:
			content, _ := json.Marshal(p.Result)
			blocks = append(blocks, AnthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: p.ResultFor,
				Content:   content,
				IsError:   p.IsError,
			})
		}
	}

	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, AnthropicContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: normalizeToolInput(json.RawMessage(tc.Arguments)),
		})
	}

	// Plain single text simplifies to the string form.
	if len(blocks) == 1 && blocks[0].Type == "text" {
		raw, err := json.Marshal(blocks[0].Text)
		return role, raw, err
	}
	if len(blocks) == 0 {
		raw, err := json.Marshal("")
		return role, raw, err
	}

	raw, err := json.Marshal(blocks)
	return role, raw, err
}

// normalizeToolInput guarantees tool_use input is a JSON object.
func normalizeToolInput(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if !json.Valid([]byte(trimmed)) {
		escaped, _ := json.Marshal(trimmed)
		return json.RawMessage(fmt.Sprintf(`{"input":%s}`, escaped))
	}
	return json.RawMessage(trimmed)
}

func mergeAnthropicContent(a, b json.RawMessage) (json.RawMessage, error) {
	toBlocks := func(raw json.RawMessage) ([]AnthropicContentBlock, error) {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if text == "" {
				return nil, nil
			}
			return []AnthropicContentBlock{{Type: "text", Text: text}}, nil
		}
		var blocks []AnthropicContentBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, err
		}
		return blocks, nil
	}

	blocksA, err := toBlocks(a)
	if err != nil {
		return nil, err
	}
	blocksB, err := toBlocks(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(append(blocksA, blocksB...))
}

func (a *anthropicAdapter) ParseResponse(body []byte) (*ir.Response, error) {
	var wire AnthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed anthropic response: %v", err)
	}

	msg := ir.Message{Role: ir.RoleAssistant}
	var parts []ir.ContentPart
	for _, b := range wire.Content {
		switch b.Type {
		case "text":
			parts = append(parts, ir.TextPart(b.Text))
		case "thinking":
			msg.ReasoningContent += b.Thinking
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, ir.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(b.Input),
			})
		}
	}
	if len(parts) == 1 && parts[0].Type == ir.ContentPartText {
		msg.Content = parts[0].Text
	} else {
		msg.Parts = parts
	}

	resp := &ir.Response{
		ID:    wire.ID,
		Model: wire.Model,
		Choices: []ir.Choice{{
			Message:      msg,
			FinishReason: finishFromAnthropic(wire.StopReason),
		}},
		Raw: json.RawMessage(body),
	}
	if wire.Usage != nil {
		resp.Usage = &ir.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
			CachedTokens:     wire.Usage.CacheReadInputTokens,
		}
	}
	return resp, nil
}

func (a *anthropicAdapter) BuildResponse(resp *ir.Response) ([]byte, error) {
	wire := AnthropicResponse{
		ID:      resp.ID,
		Type:    "message",
		Role:    "assistant",
		Model:   resp.Model,
		Content: []AnthropicContentBlock{},
	}
	if wire.ID == "" {
		wire.ID = "msg_" + uuid.NewString()
	}

	if choice := resp.First(); choice != nil {
		msg := &choice.Message
		if msg.ReasoningContent != "" {
			wire.Content = append(wire.Content, AnthropicContentBlock{
				Type:     "thinking",
				Thinking: msg.ReasoningContent,
			})
		}
		if msg.Content != "" {
			wire.Content = append(wire.Content, AnthropicContentBlock{Type: "text", Text: msg.Content})
		}
		for _, p := range msg.Parts {
			if p.Type == ir.ContentPartText {
				wire.Content = append(wire.Content, AnthropicContentBlock{Type: "text", Text: p.Text})
			}
		}
		for _, tc := range msg.ToolCalls {
			wire.Content = append(wire.Content, AnthropicContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: normalizeToolInput(json.RawMessage(tc.Arguments)),
			})
		}
		wire.StopReason = finishToAnthropic(choice.FinishReason)
	}

	if resp.Usage != nil {
		wire.Usage = &AnthropicUsage{
			InputTokens:          resp.Usage.PromptTokens,
			OutputTokens:         resp.Usage.CompletionTokens,
			CacheReadInputTokens: resp.Usage.CachedTokens,
		}
	}

	return json.Marshal(wire)
}

func (a *anthropicAdapter) ParseError(status int, body []byte) *ir.Error {
	irErr := &ir.Error{
		Kind:   ir.KindFromStatus(status),
		Status: status,
		Raw:    json.RawMessage(body),
	}

	var envelope anthropicErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		irErr.Message = envelope.Error.Message
		irErr.Code = envelope.Error.Type
		if kind, ok := anthropicErrorTypeToKind(envelope.Error.Type); ok {
			irErr.Kind = kind
		}
	}
	if irErr.Message == "" {
		irErr.Message = fmt.Sprintf("upstream returned HTTP %d", status)
	}
	return irErr
}

func anthropicErrorTypeToKind(errType string) (ir.ErrorKind, bool) {
	switch errType {
	case "invalid_request_error":
		return ir.ErrValidation, true
	case "authentication_error":
		return ir.ErrAuthentication, true
	case "permission_error":
		return ir.ErrPermission, true
	case "not_found_error":
		return ir.ErrNotFound, true
	case "rate_limit_error":
		return ir.ErrRateLimit, true
	case "api_error", "overloaded_error":
		return ir.ErrServer, true
	case "timeout_error":
		return ir.ErrTimeout, true
	default:
		return "", false
	}
}

func kindToAnthropicErrorType(kind ir.ErrorKind) string {
	switch kind {
	case ir.ErrValidation:
		return "invalid_request_error"
	case ir.ErrAuthentication:
		return "authentication_error"
	case ir.ErrPermission:
		return "permission_error"
	case ir.ErrNotFound:
		return "not_found_error"
	case ir.ErrRateLimit:
		return "rate_limit_error"
	case ir.ErrTimeout:
		return "timeout_error"
	default:
		return "api_error"
	}
}

func (a *anthropicAdapter) BuildError(irErr *ir.Error) ([]byte, error) {
	return json.Marshal(anthropicErrorEnvelope{
		Type: "error",
		Error: &AnthropicError{
			Type:    kindToAnthropicErrorType(irErr.Kind),
			Message: irErr.Message,
		},
	})
}

func (a *anthropicAdapter) NewStreamDecoder() StreamDecoder {
	return &anthropicStreamDecoder{}
}

func (a *anthropicAdapter) NewStreamBuilder(id, model string) StreamBuilder {
	return newAnthropicStreamBuilder(id, model)
}

func finishFromAnthropic(reason string) ir.FinishReason {
	switch reason {
	case "end_turn":
		return ir.FinishEndTurn
	case "max_tokens":
		return ir.FinishLength
	case "tool_use":
		return ir.FinishToolCalls
	case "stop_sequence":
		return ir.FinishStop
	case "refusal":
		return ir.FinishContentFilter
	case "":
		return ""
	default:
		return ir.FinishStop
	}
}

func finishToAnthropic(reason ir.FinishReason) string {
	switch reason {
	case ir.FinishLength:
		return "max_tokens"
	case ir.FinishToolCalls:
		return "tool_use"
	case ir.FinishContentFilter:
		return "refusal"
	case "":
		return ""
	default:
		return "end_turn"
	}
}
