package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// Anthropic stream frame payload. The same shape serves decoding and
// rebuilding; the type field selects which members are present.
type anthropicStreamEvent struct {
	Type         string                 `json:"type"`
	Message      *AnthropicResponse     `json:"message,omitempty"`
	Index        *int                   `json:"index,omitempty"`
	ContentBlock *AnthropicContentBlock `json:"content_block,omitempty"`
	Delta        *anthropicStreamDelta  `json:"delta,omitempty"`
	Usage        *AnthropicUsage        `json:"usage,omitempty"`
	Error        *AnthropicError        `json:"error,omitempty"`
}

type anthropicStreamDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// anthropicStreamDecoder lifts Anthropic's event-typed SSE stream to
// neutral events. Input tokens arrive on message_start and output
// tokens on message_delta, so usage is accumulated until message_stop.
type anthropicStreamDecoder struct {
	started bool
	ended   bool
	finish  ir.FinishReason
	usage   ir.Usage
}

func (d *anthropicStreamDecoder) Decode(event string, data []byte) ([]ir.StreamEvent, error) {
	var frame anthropicStreamEvent
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed stream event: %v", err)
	}

	switch frame.Type {
	case "message_start":
		if frame.Message == nil {
			return nil, nil
		}
		d.started = true
		if frame.Message.Usage != nil {
			d.usage.PromptTokens = frame.Message.Usage.InputTokens
			d.usage.CachedTokens = frame.Message.Usage.CacheReadInputTokens
		}
		return []ir.StreamEvent{ir.StartEvent(frame.Message.ID, frame.Message.Model)}, nil

	case "content_block_start":
		if frame.ContentBlock != nil && frame.ContentBlock.Type == "tool_use" {
			return []ir.StreamEvent{{
				Type:       ir.EventToolCall,
				Index:      indexOrZero(frame.Index),
				ToolCallID: frame.ContentBlock.ID,
				ToolName:   frame.ContentBlock.Name,
			}}, nil
		}
		return nil, nil

	case "content_block_delta":
		if frame.Delta == nil {
			return nil, nil
		}
		switch frame.Delta.Type {
		case "text_delta":
			return []ir.StreamEvent{ir.ContentEvent(frame.Delta.Text, 0)}, nil
		case "thinking_delta":
			return []ir.StreamEvent{ir.ReasoningEvent(frame.Delta.Thinking)}, nil
		case "input_json_delta":
			return []ir.StreamEvent{{
				Type:          ir.EventToolCall,
				Index:         indexOrZero(frame.Index),
				ToolArguments: frame.Delta.PartialJSON,
			}}, nil
		}
		return nil, nil

	case "message_delta":
		if frame.Delta != nil && frame.Delta.StopReason != "" {
			d.finish = finishFromAnthropic(frame.Delta.StopReason)
		}
		if frame.Usage != nil {
			d.usage.CompletionTokens = frame.Usage.OutputTokens
		}
		return nil, nil

	case "message_stop":
		if d.ended {
			return nil, nil
		}
		d.ended = true
		finish := d.finish
		if finish == "" {
			finish = ir.FinishEndTurn
		}
		usage := d.usage
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		return []ir.StreamEvent{ir.EndEvent(finish, &usage)}, nil

	case "error":
		d.ended = true
		msg := "upstream stream error"
		code := ""
		if frame.Error != nil {
			msg = frame.Error.Message
			code = frame.Error.Type
		}
		kind := ir.ErrServer
		if k, ok := anthropicErrorTypeToKind(code); ok {
			kind = k
		}
		return []ir.StreamEvent{ir.ErrorEvent(&ir.Error{Kind: kind, Message: msg, Code: code})}, nil

	default:
		// ping and unknown event types carry nothing relayable.
		return nil, nil
	}
}

// Finish reports the stop reason latched from message_delta, empty
// when none has arrived yet.
func (d *anthropicStreamDecoder) Finish() ir.FinishReason {
	return d.finish
}

func indexOrZero(index *int) int {
	if index == nil {
		return 0
	}
	return *index
}

// anthropicStreamBuilder re-emits Anthropic's event-typed framing from
// neutral events. Content blocks open lazily: the first content,
// reasoning, or tool_call event decides the block type, and a type
// switch closes the open block and starts the next index.
type anthropicStreamBuilder struct {
	id      string
	model   string
	started bool
	done    bool

	nextIndex  int
	curIndex   int
	curType    string // "", "text", "thinking", "tool_use"
	curToolIR  int    // neutral index of the open tool block
	curTool    openToolCall
	nextToolID int
}

func newAnthropicStreamBuilder(id, model string) *anthropicStreamBuilder {
	if id == "" {
		id = "msg_" + uuid.NewString()
	}
	return &anthropicStreamBuilder{id: id, model: model, curToolIR: -1}
}

func anthropicFrame(name string, payload anthropicStreamEvent) (SSEEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{Event: name, Data: data}, nil
}

func (b *anthropicStreamBuilder) opener() ([]SSEEvent, error) {
	b.started = true
	start, err := anthropicFrame("message_start", anthropicStreamEvent{
		Type: "message_start",
		Message: &AnthropicResponse{
			ID:      b.id,
			Type:    "message",
			Role:    "assistant",
			Model:   b.model,
			Content: []AnthropicContentBlock{},
			Usage:   &AnthropicUsage{},
		},
	})
	if err != nil {
		return nil, err
	}
	ping, err := anthropicFrame("ping", anthropicStreamEvent{Type: "ping"})
	if err != nil {
		return nil, err
	}
	return []SSEEvent{start, ping}, nil
}

// closeBlock emits content_block_stop for the open block, if any.
func (b *anthropicStreamBuilder) closeBlock() ([]SSEEvent, error) {
	if b.curType == "" {
		return nil, nil
	}
	index := b.curIndex
	frame, err := anthropicFrame("content_block_stop", anthropicStreamEvent{
		Type:  "content_block_stop",
		Index: &index,
	})
	if err != nil {
		return nil, err
	}
	b.curType = ""
	b.curToolIR = -1
	return []SSEEvent{frame}, nil
}

// openBlock closes any open block and starts a new one of the given type.
func (b *anthropicStreamBuilder) openBlock(block AnthropicContentBlock) ([]SSEEvent, error) {
	frames, err := b.closeBlock()
	if err != nil {
		return nil, err
	}
	index := b.nextIndex
	b.nextIndex++
	b.curIndex = index
	b.curType = block.Type

	frame, err := anthropicFrame("content_block_start", anthropicStreamEvent{
		Type:         "content_block_start",
		Index:        &index,
		ContentBlock: &block,
	})
	if err != nil {
		return nil, err
	}
	return append(frames, frame), nil
}

func (b *anthropicStreamBuilder) delta(delta anthropicStreamDelta) (SSEEvent, error) {
	index := b.curIndex
	return anthropicFrame("content_block_delta", anthropicStreamEvent{
		Type:  "content_block_delta",
		Index: &index,
		Delta: &delta,
	})
}

func (b *anthropicStreamBuilder) Build(ev ir.StreamEvent) ([]SSEEvent, error) {
	if b.done {
		return nil, nil
	}

	var frames []SSEEvent
	if !b.started && ev.Type != ir.EventStart {
		opened, err := b.opener()
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)
	}

	switch ev.Type {
	case ir.EventStart:
		if b.started {
			return frames, nil
		}
		if ev.Model != "" {
			b.model = ev.Model
		}
		opened, err := b.opener()
		if err != nil {
			return nil, err
		}
		frames = append(frames, opened...)

	case ir.EventContent:
		if b.curType != "text" {
			opened, err := b.openBlock(AnthropicContentBlock{Type: "text", Text: ""})
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
		}
		frame, err := b.delta(anthropicStreamDelta{Type: "text_delta", Text: ev.Delta})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventReasoning:
		if b.curType != "thinking" {
			opened, err := b.openBlock(AnthropicContentBlock{Type: "thinking", Thinking: ""})
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
		}
		frame, err := b.delta(anthropicStreamDelta{Type: "thinking_delta", Thinking: ev.Delta})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventToolCall:
		if b.curType == "tool_use" && b.curToolIR == ev.Index {
			if toolCallCollision(&b.curTool, ev) {
				return nil, ir.NewErrorf(ir.ErrValidation,
					"conflicting tool call at index %d: a different call is already open", ev.Index)
			}
		} else {
			id := ev.ToolCallID
			if id == "" {
				b.nextToolID++
				id = fmt.Sprintf("toolu_%d", b.nextToolID)
			}
			opened, err := b.openBlock(AnthropicContentBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  ev.ToolName,
				Input: json.RawMessage("{}"),
			})
			if err != nil {
				return nil, err
			}
			frames = append(frames, opened...)
			b.curToolIR = ev.Index
			b.curTool = openToolCall{srcID: ev.ToolCallID, name: ev.ToolName}
		}
		if ev.ToolArguments != "" {
			frame, err := b.delta(anthropicStreamDelta{Type: "input_json_delta", PartialJSON: ev.ToolArguments})
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame)
		}

	case ir.EventEnd:
		b.done = true
		closed, err := b.closeBlock()
		if err != nil {
			return nil, err
		}
		frames = append(frames, closed...)

		stopReason := finishToAnthropic(ev.FinishReason)
		if stopReason == "" {
			stopReason = "end_turn"
		}
		var usage *AnthropicUsage
		if ev.Usage != nil {
			usage = &AnthropicUsage{
				InputTokens:  ev.Usage.PromptTokens,
				OutputTokens: ev.Usage.CompletionTokens,
			}
		}
		deltaFrame, err := anthropicFrame("message_delta", anthropicStreamEvent{
			Type:  "message_delta",
			Delta: &anthropicStreamDelta{StopReason: stopReason},
			Usage: usage,
		})
		if err != nil {
			return nil, err
		}
		stopFrame, err := anthropicFrame("message_stop", anthropicStreamEvent{Type: "message_stop"})
		if err != nil {
			return nil, err
		}
		frames = append(frames, deltaFrame, stopFrame)

	case ir.EventError:
		b.done = true
		frame, err := anthropicFrame("error", anthropicStreamEvent{
			Type: "error",
			Error: &AnthropicError{
				Type:    kindToAnthropicErrorType(ev.Err.Kind),
				Message: ev.Err.Message,
			},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

// Finalize emits nothing: the dialect has no trailing sentinel, and an
// interrupted stream must not fabricate a message_stop.
func (b *anthropicStreamBuilder) Finalize() []SSEEvent {
	return nil
}
