package bridge

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// Estimator synthesizes token usage when the upstream does not report
// it. Counts come from the cl100k_base encoding; if the encoding is
// unavailable a characters/4 heuristic stands in.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewEstimator returns an Estimator. The encoding loads lazily on
// first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) encoding() *tiktoken.Tiktoken {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.enc = enc
		}
	})
	return e.enc
}

// Count returns the token count of a text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := e.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// CountRequest sums the countable text of a request: system prompt,
// message content, and tool-call arguments.
func (e *Estimator) CountRequest(req *ir.Request) int {
	if req == nil {
		return 0
	}
	total := e.Count(req.System)
	for i := range req.Messages {
		msg := &req.Messages[i]
		total += e.Count(msg.Text())
		for _, tc := range msg.ToolCalls {
			total += e.Count(tc.Name) + e.Count(tc.Arguments)
		}
	}
	return total
}

// Estimate builds a synthesized Usage for a request/output pair. The
// Estimated flag marks it as gateway-derived rather than
// upstream-reported.
func (e *Estimator) Estimate(req *ir.Request, output string) *ir.Usage {
	prompt := e.CountRequest(req)
	completion := e.Count(output)
	return &ir.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}
