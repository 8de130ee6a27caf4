// Package adapters implements the dialect adapters that translate
// provider wire formats to and from the neutral request/response model.
// Each adapter covers one provider dialect: parsing inbound payloads,
// building outbound payloads, decoding upstream streams, and rebuilding
// the dialect's own stream framing from neutral events.
package adapters

import (
	"fmt"

	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
	"github.com/switchyard-ai/switchyard/pkg/registry"
)

// StreamFormat describes how a dialect frames its streaming responses.
type StreamFormat string

const (
	// StreamSSE is server-sent events, used by every dialect except
	// Gemini's non-alt endpoint.
	StreamSSE StreamFormat = "sse"
	// StreamJSONArray is Gemini's default streaming shape: a single JSON
	// array of response objects delivered incrementally.
	StreamJSONArray StreamFormat = "json_array"
)

// Capabilities reports which features a dialect can express. The bridge
// consults it to degrade requests that cross dialect boundaries.
type Capabilities struct {
	Streaming    bool
	Tools        bool
	Vision       bool
	Multimodal   bool
	SystemPrompt bool
	ToolChoice   bool
	Reasoning    bool
	WebSearch    bool
	JSONMode     bool
	Logprobs     bool
	Seed         bool
}

// Family is one model family in a dialect's catalog. A family matches a
// model name when any keyword is a case-insensitive substring of it;
// catalog order decides ties.
type Family struct {
	Name     string
	Keywords []string
}

// SSEEvent is one outbound server-sent event. Data is the marshaled
// payload; Event is the optional event name ("" for unnamed events).
type SSEEvent struct {
	Event string
	Data  []byte
}

// StreamDecoder turns one upstream stream frame at a time into neutral
// events. Decoders are stateful: dialects spread tool metadata and usage
// across frames.
type StreamDecoder interface {
	// Decode processes one frame. event is the SSE event name when the
	// dialect uses named events. A nil slice means the frame produced
	// nothing relayable (pings, keepalives, structural envelopes).
	Decode(event string, data []byte) ([]ir.StreamEvent, error)
	// Finish returns the finish reason held back so far, or empty when
	// the upstream never sent one. Dialects spread the finish reason
	// and the terminal frame across chunks; when the connection drops
	// in between, the held reason is all that survives.
	Finish() ir.FinishReason
}

// StreamBuilder re-emits a dialect's stream framing from neutral events.
// Builders are stateful: they own message envelopes, content block
// lifecycles, and synthesized identifiers.
type StreamBuilder interface {
	// Build renders the frames for one neutral event.
	Build(ev ir.StreamEvent) ([]SSEEvent, error)
	// Finalize emits any trailing frames after the terminal event.
	Finalize() []SSEEvent
}

// Adapter is one dialect's translation surface. Implementations are
// stateless; per-stream state lives in decoders and builders.
type Adapter interface {
	Name() string
	Capabilities() Capabilities
	StreamFormat() StreamFormat

	// DefaultModel is substituted when an outbound request carries no
	// model at all.
	DefaultModel() string
	// FamilyModels lists the models this dialect is known to serve,
	// for model listings.
	FamilyModels() []string
	// FamilyCatalog declares the dialect's model families for
	// family-based mapping resolution.
	FamilyCatalog() []Family

	// BaseURL is the documented default upstream base URL.
	BaseURL() string
	// ModelsPath is the model-listing path relative to the base URL.
	ModelsPath() string
	// ChatPath is the URL path (relative to the provider base URL) for
	// a chat completion with the given model. Gemini encodes the model
	// and streaming mode in the path; everyone else ignores them.
	ChatPath(model string, stream bool) string
	// Headers returns the authentication and protocol headers for an
	// upstream request.
	Headers(apiKey string) map[string]string
	// RateLimitParser parses the dialect's rate limit headers.
	RateLimitParser() httpclient.RateLimitHeaderParser

	ParseRequest(body []byte) (*ir.Request, error)
	BuildRequest(req *ir.Request) ([]byte, error)
	ParseResponse(body []byte) (*ir.Response, error)
	BuildResponse(resp *ir.Response) ([]byte, error)

	// ParseError classifies an upstream error response.
	ParseError(status int, body []byte) *ir.Error
	// BuildError renders a neutral error in the dialect's error shape.
	BuildError(irErr *ir.Error) ([]byte, error)

	NewStreamDecoder() StreamDecoder
	NewStreamBuilder(id, model string) StreamBuilder
}

// Registry holds the closed set of dialect adapters.
type Registry struct {
	*registry.BaseRegistry[Adapter]
}

// NewRegistry builds a registry with every supported dialect registered.
func NewRegistry() *Registry {
	r := &Registry{BaseRegistry: registry.NewBaseRegistry[Adapter]()}
	for _, a := range []Adapter{
		NewOpenAIAdapter(),
		NewAnthropicAdapter(),
		NewGeminiAdapter(),
		NewDeepSeekAdapter(),
		NewMoonshotAdapter(),
		NewQwenAdapter(),
		NewZhipuAdapter(),
	} {
		if err := r.Register(a.Name(), a); err != nil {
			panic(fmt.Sprintf("adapter registration: %v", err))
		}
	}
	return r
}

// Lookup returns the adapter for a dialect name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, ir.NewErrorf(ir.ErrValidation, "unknown dialect %q", name)
	}
	return a, nil
}
