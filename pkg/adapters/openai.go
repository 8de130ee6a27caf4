package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// OpenAI chat-completions wire format. DeepSeek, Moonshot, Qwen, and
// Zhipu speak the same shape with provider-specific extensions, so the
// types carry the superset and each adapter sets only its own fields.

type OpenAIRequest struct {
	Model               string                `json:"model,omitempty"`
	Messages            []OpenAIMessage       `json:"messages"`
	MaxTokens           *int                  `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	Temperature         *float64              `json:"temperature,omitempty"`
	TopP                *float64              `json:"top_p,omitempty"`
	N                   *int                  `json:"n,omitempty"`
	Stream              bool                  `json:"stream,omitempty"`
	StreamOptions       *OpenAIStreamOptions  `json:"stream_options,omitempty"`
	Stop                json.RawMessage       `json:"stop,omitempty"`
	PresencePenalty     *float64              `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64              `json:"frequency_penalty,omitempty"`
	Seed                *int64                `json:"seed,omitempty"`
	Logprobs            bool                  `json:"logprobs,omitempty"`
	TopLogprobs         *int                  `json:"top_logprobs,omitempty"`
	Tools               []OpenAITool          `json:"tools,omitempty"`
	ToolChoice          json.RawMessage       `json:"tool_choice,omitempty"`
	ResponseFormat      *OpenAIResponseFormat `json:"response_format,omitempty"`

	// Qwen extensions.
	EnableSearch   bool  `json:"enable_search,omitempty"`
	EnableThinking *bool `json:"enable_thinking,omitempty"`

	// Zhipu extension.
	Thinking *ZhipuThinking `json:"thinking,omitempty"`
}

type OpenAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type ZhipuThinking struct {
	Type string `json:"type"` // "enabled" or "disabled"
}

type OpenAIMessage struct {
	Role             string           `json:"role"`
	Content          json.RawMessage  `json:"content,omitempty"`
	Name             string           `json:"name,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string           `json:"tool_call_id,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
}

type OpenAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *OpenAIImageURL `json:"image_url,omitempty"`
}

type OpenAIImageURL struct {
	URL string `json:"url"`
}

type OpenAITool struct {
	Type     string             `json:"type"`
	Function OpenAIToolFunction `json:"function"`
}

type OpenAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type OpenAIToolCall struct {
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function OpenAIFunctionCall `json:"function"`
}

type OpenAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type OpenAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *OpenAIJSONSchema `json:"json_schema,omitempty"`
}

type OpenAIJSONSchema struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
	Strict      bool           `json:"strict,omitempty"`
}

type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   *OpenAIUsage   `json:"usage,omitempty"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type OpenAIUsage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	PromptTokensDetails     *OpenAIPromptDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *OpenAICompletionDetails `json:"completion_tokens_details,omitempty"`
}

type OpenAIPromptDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type OpenAICompletionDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

type OpenAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created,omitempty"`
	Model   string               `json:"model,omitempty"`
	Choices []OpenAIStreamChoice `json:"choices"`
	Usage   *OpenAIUsage         `json:"usage,omitempty"`
	Error   *OpenAIError         `json:"error,omitempty"`
}

type OpenAIStreamChoice struct {
	Index        int         `json:"index"`
	Delta        OpenAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

type OpenAIDelta struct {
	Role             string           `json:"role,omitempty"`
	Content          string           `json:"content,omitempty"`
	ReasoningContent string           `json:"reasoning_content,omitempty"`
	ToolCalls        []OpenAIToolCall `json:"tool_calls,omitempty"`
}

type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

type openAIErrorEnvelope struct {
	Error *OpenAIError `json:"error,omitempty"`
}

// openAICompat is the shared implementation for every OpenAI-shaped
// dialect. Variants differ only in endpoints, catalogs, capabilities,
// and a request hook applying dialect-specific knobs and degradations.
type openAICompat struct {
	name         string
	baseURL      string
	defaultModel string
	models       []string
	families     []Family
	caps         Capabilities

	// customize mutates the outbound wire request after the common
	// translation, applying the dialect's extensions and degradations.
	customize func(*OpenAIRequest, *ir.Request)
}

// NewOpenAIAdapter returns the adapter for the OpenAI chat completions
// dialect.
func NewOpenAIAdapter() Adapter {
	return &openAICompat{
		name:         "openai",
		baseURL:      "https://api.openai.com/v1",
		defaultModel: "gpt-4o",
		models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3", "o4-mini"},
		families: []Family{
			{Name: "o-series", Keywords: []string{"o1", "o3", "o4"}},
			{Name: "gpt-4o", Keywords: []string{"gpt-4o"}},
			{Name: "gpt-4", Keywords: []string{"gpt-4"}},
			{Name: "gpt-3.5", Keywords: []string{"gpt-3.5", "gpt-35"}},
		},
		caps: Capabilities{
			Streaming:    true,
			Tools:        true,
			Vision:       true,
			Multimodal:   true,
			SystemPrompt: true,
			ToolChoice:   true,
			JSONMode:     true,
			Logprobs:     true,
			Seed:         true,
		},
	}
}

func (a *openAICompat) Name() string               { return a.name }
func (a *openAICompat) Capabilities() Capabilities { return a.caps }
func (a *openAICompat) StreamFormat() StreamFormat { return StreamSSE }
func (a *openAICompat) DefaultModel() string       { return a.defaultModel }
func (a *openAICompat) FamilyModels() []string     { return a.models }
func (a *openAICompat) FamilyCatalog() []Family    { return a.families }
func (a *openAICompat) BaseURL() string            { return a.baseURL }
func (a *openAICompat) ModelsPath() string         { return "/models" }

func (a *openAICompat) ChatPath(model string, stream bool) string {
	return "/chat/completions"
}

func (a *openAICompat) Headers(apiKey string) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return headers
}

func (a *openAICompat) RateLimitParser() httpclient.RateLimitHeaderParser {
	return httpclient.ParseOpenAIHeaders
}

func (a *openAICompat) ParseRequest(body []byte) (*ir.Request, error) {
	var wire OpenAIRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed %s request: %v", a.name, err)
	}
	if len(wire.Messages) == 0 {
		return nil, ir.NewError(ir.ErrValidation, "messages must not be empty")
	}

	req := &ir.Request{
		Model:  wire.Model,
		Stream: wire.Stream,
		Raw:    json.RawMessage(body),
	}

	for _, msg := range wire.Messages {
		// Leading system and developer messages are promoted to the
		// top-level system field.
		if (msg.Role == "system" || msg.Role == "developer") && len(req.Messages) == 0 {
			text, _, err := parseOpenAIContent(msg.Content)
			if err != nil {
				return nil, err
			}
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += text
			continue
		}

		irMsg, err := openAIMessageToIR(msg)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, irMsg)
	}

	for _, tool := range wire.Tools {
		req.Tools = append(req.Tools, ir.Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}

	if len(wire.ToolChoice) > 0 {
		choice, err := parseOpenAIToolChoice(wire.ToolChoice)
		if err != nil {
			return nil, err
		}
		req.ToolChoice = choice
	}

	req.Generation = openAIGenerationToIR(&wire)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func openAIMessageToIR(msg OpenAIMessage) (ir.Message, error) {
	irMsg := ir.Message{
		Name:             msg.Name,
		ToolCallID:       msg.ToolCallID,
		ReasoningContent: msg.ReasoningContent,
	}

	switch msg.Role {
	case "system", "developer":
		irMsg.Role = ir.RoleSystem
	case "assistant":
		irMsg.Role = ir.RoleAssistant
	case "tool", "function":
		irMsg.Role = ir.RoleTool
	default:
		irMsg.Role = ir.RoleUser
	}

	text, parts, err := parseOpenAIContent(msg.Content)
	if err != nil {
		return ir.Message{}, err
	}
	irMsg.Content = text
	irMsg.Parts = parts

	for _, tc := range msg.ToolCalls {
		irMsg.ToolCalls = append(irMsg.ToolCalls, ir.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return irMsg, nil
}

// parseOpenAIContent handles the string-or-array content field. A single
// text part simplifies to a plain string.
func parseOpenAIContent(raw json.RawMessage) (string, []ir.ContentPart, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil, nil
	}

	var wireParts []OpenAIContentPart
	if err := json.Unmarshal(raw, &wireParts); err != nil {
		return "", nil, ir.NewError(ir.ErrValidation, "content must be a string or an array of parts")
	}

	var parts []ir.ContentPart
	for _, p := range wireParts {
		switch p.Type {
		case "text":
			parts = append(parts, ir.TextPart(p.Text))
		case "image_url":
			if p.ImageURL == nil {
				continue
			}
			parts = append(parts, ir.ContentPart{
				Type:  ir.ContentPartImage,
				Image: imageSourceFromURL(p.ImageURL.URL),
			})
		}
	}

	if len(parts) == 1 && parts[0].Type == ir.ContentPartText {
		return parts[0].Text, nil, nil
	}
	return "", parts, nil
}

// imageSourceFromURL decodes data URIs into inline base64 sources and
// passes plain URLs through.
func imageSourceFromURL(url string) *ir.ImageSource {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		if mediaType, data, found := strings.Cut(rest, ";base64,"); found {
			return &ir.ImageSource{
				Kind:      ir.ImageSourceBase64,
				MediaType: mediaType,
				Data:      data,
			}
		}
	}
	return &ir.ImageSource{Kind: ir.ImageSourceURL, URL: url}
}

func imageSourceToURL(src *ir.ImageSource) string {
	if src == nil {
		return ""
	}
	if src.Kind == ir.ImageSourceBase64 {
		return fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)
	}
	return src.URL
}

func parseOpenAIToolChoice(raw json.RawMessage) (*ir.ToolChoice, error) {
	var mode string
	if err := json.Unmarshal(raw, &mode); err == nil {
		switch mode {
		case "auto", "none", "required":
			return &ir.ToolChoice{Mode: ir.ToolChoiceMode(mode)}, nil
		default:
			return nil, ir.NewErrorf(ir.ErrValidation, "unknown tool_choice %q", mode)
		}
	}

	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Function.Name == "" {
		return nil, ir.NewError(ir.ErrValidation, "tool_choice must be a mode string or a function selector")
	}
	return &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: obj.Function.Name}, nil
}

func openAIGenerationToIR(wire *OpenAIRequest) *ir.GenerationParams {
	gen := &ir.GenerationParams{
		Temperature:      wire.Temperature,
		TopP:             wire.TopP,
		MaxTokens:        wire.MaxTokens,
		PresencePenalty:  wire.PresencePenalty,
		FrequencyPenalty: wire.FrequencyPenalty,
		N:                wire.N,
		Seed:             wire.Seed,
		Logprobs:         wire.Logprobs,
		TopLogprobs:      wire.TopLogprobs,
		EnableSearch:     wire.EnableSearch,
	}
	if gen.MaxTokens == nil {
		gen.MaxTokens = wire.MaxCompletionTokens
	}

	if len(wire.Stop) > 0 {
		var single string
		if err := json.Unmarshal(wire.Stop, &single); err == nil {
			gen.StopSequences = []string{single}
		} else {
			_ = json.Unmarshal(wire.Stop, &gen.StopSequences)
		}
	}

	if rf := wire.ResponseFormat; rf != nil {
		irRF := &ir.ResponseFormat{Type: ir.ResponseFormatType(rf.Type)}
		if rf.JSONSchema != nil {
			irRF.Name = rf.JSONSchema.Name
			irRF.JSONSchema = rf.JSONSchema.Schema
			irRF.Strict = rf.JSONSchema.Strict
		}
		gen.ResponseFormat = irRF
	}

	switch {
	case wire.EnableThinking != nil:
		gen.Thinking = &ir.Thinking{Enabled: *wire.EnableThinking}
	case wire.Thinking != nil:
		gen.Thinking = &ir.Thinking{Enabled: wire.Thinking.Type == "enabled"}
	}

	if gen.Temperature == nil && gen.TopP == nil && gen.TopK == nil &&
		gen.MaxTokens == nil && len(gen.StopSequences) == 0 &&
		gen.PresencePenalty == nil && gen.FrequencyPenalty == nil &&
		gen.N == nil && gen.Seed == nil && gen.ResponseFormat == nil &&
		gen.Thinking == nil && !gen.EnableSearch && !gen.Logprobs &&
		gen.TopLogprobs == nil {
		return nil
	}
	return gen
}

func (a *openAICompat) BuildRequest(req *ir.Request) ([]byte, error) {
	wire := OpenAIRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}
	if wire.Model == "" {
		wire.Model = a.defaultModel
	}
	if req.Stream {
		wire.StreamOptions = &OpenAIStreamOptions{IncludeUsage: true}
	}

	if req.System != "" {
		content, _ := json.Marshal(req.System)
		wire.Messages = append(wire.Messages, OpenAIMessage{Role: "system", Content: content})
	}

	for i := range req.Messages {
		msgs, err := irMessageToOpenAI(&req.Messages[i], a.caps)
		if err != nil {
			return nil, err
		}
		wire.Messages = append(wire.Messages, msgs...)
	}

	if a.caps.Tools {
		for _, tool := range req.Tools {
			wire.Tools = append(wire.Tools, OpenAITool{
				Type: "function",
				Function: OpenAIToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		if req.ToolChoice != nil {
			wire.ToolChoice = buildOpenAIToolChoice(req.ToolChoice)
		}
	}

	applyOpenAIGeneration(&wire, req.Generation)

	if a.customize != nil {
		a.customize(&wire, req)
	}

	return json.Marshal(wire)
}

func irMessageToOpenAI(msg *ir.Message, caps Capabilities) ([]OpenAIMessage, error) {
	role := string(msg.Role)

	// Tool results carried as content parts split into separate
	// tool-role messages.
	var toolResults []OpenAIMessage
	var contentParts []OpenAIContentPart

	for _, p := range msg.Parts {
		switch p.Type {
		case ir.ContentPartText:
			contentParts = append(contentParts, OpenAIContentPart{Type: "text", Text: p.Text})
		case ir.ContentPartImage:
			if !caps.Vision {
				// Text-only dialects get the image reference stringified.
				contentParts = append(contentParts, OpenAIContentPart{
					Type: "text",
					Text: fmt.Sprintf("[image: %s]", imageSourceToURL(p.Image)),
				})
				continue
			}
			contentParts = append(contentParts, OpenAIContentPart{
				Type:     "image_url",
				ImageURL: &OpenAIImageURL{URL: imageSourceToURL(p.Image)},
			})
		case ir.ContentPartToolResult:
			content, _ := json.Marshal(p.Result)
			toolResults = append(toolResults, OpenAIMessage{
				Role:       "tool",
				Content:    content,
				ToolCallID: p.ResultFor,
			})
		}
	}

	out := OpenAIMessage{
		Role:             role,
		Name:             msg.Name,
		ToolCallID:       msg.ToolCallID,
		ReasoningContent: msg.ReasoningContent,
	}

	switch {
	case len(contentParts) > 0:
		content, _ := json.Marshal(contentParts)
		out.Content = content
	case msg.Content != "":
		content, _ := json.Marshal(msg.Content)
		out.Content = content
	}

	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, OpenAIToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: OpenAIFunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	for _, p := range msg.Parts {
		if p.Type == ir.ContentPartToolUse {
			out.ToolCalls = append(out.ToolCalls, OpenAIToolCall{
				ID:       p.ToolUseID,
				Type:     "function",
				Function: OpenAIFunctionCall{Name: p.ToolName, Arguments: string(p.ToolInput)},
			})
		}
	}

	// A tool-role IR message maps directly to one tool message.
	if msg.Role == ir.RoleTool {
		return append([]OpenAIMessage{out}, toolResults...), nil
	}

	if out.Content == nil && len(out.ToolCalls) == 0 && len(toolResults) > 0 {
		return toolResults, nil
	}
	return append([]OpenAIMessage{out}, toolResults...), nil
}

func buildOpenAIToolChoice(choice *ir.ToolChoice) json.RawMessage {
	switch choice.Mode {
	case ir.ToolChoiceFunction:
		raw, _ := json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": choice.FunctionName},
		})
		return raw
	default:
		raw, _ := json.Marshal(string(choice.Mode))
		return raw
	}
}

func applyOpenAIGeneration(wire *OpenAIRequest, gen *ir.GenerationParams) {
	if gen == nil {
		return
	}
	wire.Temperature = gen.Temperature
	wire.TopP = gen.TopP
	wire.MaxTokens = gen.MaxTokens
	wire.PresencePenalty = gen.PresencePenalty
	wire.FrequencyPenalty = gen.FrequencyPenalty
	wire.N = gen.N
	wire.Seed = gen.Seed
	wire.Logprobs = gen.Logprobs
	wire.TopLogprobs = gen.TopLogprobs

	if len(gen.StopSequences) == 1 {
		wire.Stop, _ = json.Marshal(gen.StopSequences[0])
	} else if len(gen.StopSequences) > 1 {
		wire.Stop, _ = json.Marshal(gen.StopSequences)
	}

	if rf := gen.ResponseFormat; rf != nil {
		wireRF := &OpenAIResponseFormat{Type: string(rf.Type)}
		if rf.Type == ir.ResponseFormatJSONSchema {
			wireRF.JSONSchema = &OpenAIJSONSchema{
				Name:   rf.Name,
				Schema: rf.JSONSchema,
				Strict: rf.Strict,
			}
		}
		wire.ResponseFormat = wireRF
	}
}

func (a *openAICompat) ParseResponse(body []byte) (*ir.Response, error) {
	var wire OpenAIResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed %s response: %v", a.name, err)
	}

	resp := &ir.Response{
		ID:      wire.ID,
		Model:   wire.Model,
		Created: wire.Created,
		Raw:     json.RawMessage(body),
	}

	for _, choice := range wire.Choices {
		msg, err := openAIMessageToIR(choice.Message)
		if err != nil {
			return nil, err
		}
		resp.Choices = append(resp.Choices, ir.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: finishFromOpenAI(choice.FinishReason),
		})
	}

	resp.Usage = openAIUsageToIR(wire.Usage)
	return resp, nil
}

func openAIUsageToIR(u *OpenAIUsage) *ir.Usage {
	if u == nil {
		return nil
	}
	usage := &ir.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}

func irUsageToOpenAI(u *ir.Usage) *OpenAIUsage {
	if u == nil {
		return nil
	}
	usage := &OpenAIUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.CachedTokens > 0 {
		usage.PromptTokensDetails = &OpenAIPromptDetails{CachedTokens: u.CachedTokens}
	}
	if u.ReasoningTokens > 0 {
		usage.CompletionTokensDetails = &OpenAICompletionDetails{ReasoningTokens: u.ReasoningTokens}
	}
	return usage
}

func (a *openAICompat) BuildResponse(resp *ir.Response) ([]byte, error) {
	wire := OpenAIResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Usage:   irUsageToOpenAI(resp.Usage),
	}

	for i := range resp.Choices {
		choice := &resp.Choices[i]
		msgs, err := irMessageToOpenAI(&choice.Message, a.caps)
		if err != nil {
			return nil, err
		}
		msg := OpenAIMessage{Role: "assistant"}
		if len(msgs) > 0 {
			msg = msgs[0]
			msg.Role = "assistant"
		}
		if msg.Content == nil {
			msg.Content, _ = json.Marshal("")
		}
		wire.Choices = append(wire.Choices, OpenAIChoice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: finishToOpenAI(choice.FinishReason),
		})
	}
	if wire.Choices == nil {
		wire.Choices = []OpenAIChoice{}
	}

	return json.Marshal(wire)
}

func (a *openAICompat) ParseError(status int, body []byte) *ir.Error {
	irErr := &ir.Error{
		Kind:   ir.KindFromStatus(status),
		Status: status,
		Raw:    json.RawMessage(body),
	}

	var envelope openAIErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		irErr.Message = envelope.Error.Message
		if code, ok := envelope.Error.Code.(string); ok {
			irErr.Code = code
		}
		if kind, ok := openAIErrorTypeToKind(envelope.Error.Type); ok {
			irErr.Kind = kind
		}
	}
	if irErr.Message == "" {
		irErr.Message = fmt.Sprintf("upstream returned HTTP %d", status)
	}
	return irErr
}

func openAIErrorTypeToKind(errType string) (ir.ErrorKind, bool) {
	switch errType {
	case "invalid_request_error":
		return ir.ErrValidation, true
	case "authentication_error":
		return ir.ErrAuthentication, true
	case "permission_error", "permission_denied":
		return ir.ErrPermission, true
	case "not_found_error":
		return ir.ErrNotFound, true
	case "rate_limit_error", "insufficient_quota":
		return ir.ErrRateLimit, true
	case "server_error", "api_error":
		return ir.ErrServer, true
	default:
		return "", false
	}
}

func kindToOpenAIErrorType(kind ir.ErrorKind) string {
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
	default:
		return "api_error"
	}
}

func (a *openAICompat) BuildError(irErr *ir.Error) ([]byte, error) {
	return json.Marshal(openAIErrorEnvelope{Error: &OpenAIError{
		Message: irErr.Message,
		Type:    kindToOpenAIErrorType(irErr.Kind),
		Code:    irErr.Code,
	}})
}

func (a *openAICompat) NewStreamDecoder() StreamDecoder {
	return &openAIStreamDecoder{}
}

func (a *openAICompat) NewStreamBuilder(id, model string) StreamBuilder {
	return newOpenAIStreamBuilder(id, model)
}

func finishFromOpenAI(reason string) ir.FinishReason {
	switch reason {
	case "stop":
		return ir.FinishStop
	case "length", "max_tokens":
		return ir.FinishLength
	case "tool_calls", "function_call":
		return ir.FinishToolCalls
	case "content_filter":
		return ir.FinishContentFilter
	case "":
		return ""
	default:
		return ir.FinishStop
	}
}

func finishToOpenAI(reason ir.FinishReason) string {
	switch reason {
	case ir.FinishLength:
		return "length"
	case ir.FinishToolCalls:
		return "tool_calls"
	case ir.FinishContentFilter:
		return "content_filter"
	case "":
		return ""
	default:
		// stop and end_turn both render as stop.
		return "stop"
	}
}
