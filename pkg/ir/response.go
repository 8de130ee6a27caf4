package ir

import "encoding/json"

// FinishReason is the closed set of completion termination causes.
// Dialect-specific codes map onto this set; unknown codes become
// FinishStop.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishEndTurn       FinishReason = "end_turn"
)

// Usage reports token accounting for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Detail fields populated when the dialect reports them.
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	CachedTokens    int `json:"cached_tokens,omitempty"`

	// Estimated marks usage synthesized by the gateway rather than
	// reported by the upstream.
	Estimated bool `json:"estimated,omitempty"`
}

// Choice is one candidate completion.
type Choice struct {
	Index        int          `json:"index"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
}

// Response is the neutral chat-completion response.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// First returns the first choice, or nil when the response is empty.
func (r *Response) First() *Choice {
	if len(r.Choices) == 0 {
		return nil
	}
	return &r.Choices[0]
}
