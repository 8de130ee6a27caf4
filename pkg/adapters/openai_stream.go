package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

var doneSentinel = []byte("[DONE]")

// openAIStreamDecoder lifts OpenAI-family SSE chunks to neutral events.
// finish_reason and usage arrive on different chunks, so both are held
// until the [DONE] sentinel closes the stream.
type openAIStreamDecoder struct {
	started      bool
	ended        bool
	finish       ir.FinishReason
	usage        *ir.Usage
	curToolIndex int
	seenTool     bool
}

func (d *openAIStreamDecoder) Decode(event string, data []byte) ([]ir.StreamEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if bytes.Equal(data, doneSentinel) {
		if d.ended {
			return nil, nil
		}
		d.ended = true
		finish := d.finish
		if finish == "" {
			finish = ir.FinishStop
		}
		return []ir.StreamEvent{ir.EndEvent(finish, d.usage)}, nil
	}

	var chunk OpenAIStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed stream chunk: %v", err)
	}

	if chunk.Error != nil {
		d.ended = true
		return []ir.StreamEvent{ir.ErrorEvent(&ir.Error{
			Kind:    ir.ErrServer,
			Message: chunk.Error.Message,
		})}, nil
	}

	var events []ir.StreamEvent
	if !d.started {
		d.started = true
		events = append(events, ir.StartEvent(chunk.ID, chunk.Model))
	}

	if chunk.Usage != nil {
		d.usage = openAIUsageToIR(chunk.Usage)
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.ReasoningContent != "" {
			events = append(events, ir.ReasoningEvent(choice.Delta.ReasoningContent))
		}
		if choice.Delta.Content != "" {
			events = append(events, ir.ContentEvent(choice.Delta.Content, choice.Index))
		}
		for _, tc := range choice.Delta.ToolCalls {
			index := d.toolIndex(tc)
			events = append(events, ir.StreamEvent{
				Type:          ir.EventToolCall,
				Index:         index,
				ToolCallID:    tc.ID,
				ToolName:      tc.Function.Name,
				ToolArguments: tc.Function.Arguments,
			})
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			d.finish = finishFromOpenAI(*choice.FinishReason)
		}
	}

	return events, nil
}

// Finish reports the finish reason latched so far, empty when none
// has arrived yet.
func (d *openAIStreamDecoder) Finish() ir.FinishReason {
	return d.finish
}

// toolIndex returns the wire index when present, falling back to a
// counter advanced on each fragment that opens a new call.
func (d *openAIStreamDecoder) toolIndex(tc OpenAIToolCall) int {
	if tc.Index != nil {
		return *tc.Index
	}
	if tc.ID != "" && d.seenTool {
		d.curToolIndex++
	}
	d.seenTool = true
	return d.curToolIndex
}

// openToolCall is the identity established by the first fragment at a
// tool index. srcID is the id as received, which may be empty when the
// builder synthesized one.
type openToolCall struct {
	srcID string
	name  string
}

// toolCallCollision reports whether a tool_call event names a different
// call than the one already open at its index. Fragments carrying no id
// and no name are argument continuations and never collide.
func toolCallCollision(open *openToolCall, ev ir.StreamEvent) bool {
	if ev.ToolCallID != "" && open.srcID != "" && ev.ToolCallID != open.srcID {
		return true
	}
	if ev.ToolName != "" && open.name != "" && ev.ToolName != open.name {
		return true
	}
	return false
}

// openAIStreamBuilder re-emits OpenAI chat.completion.chunk framing from
// neutral events.
type openAIStreamBuilder struct {
	id      string
	model   string
	created int64
	started bool
	done    bool
	// tracks the identity established per tool index
	openedTools map[int]*openToolCall
	nextToolID  int
}

func newOpenAIStreamBuilder(id, model string) *openAIStreamBuilder {
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	return &openAIStreamBuilder{
		id:          id,
		model:       model,
		created:     time.Now().Unix(),
		openedTools: make(map[int]*openToolCall),
	}
}

func (b *openAIStreamBuilder) chunk(choices []OpenAIStreamChoice, usage *OpenAIUsage) (SSEEvent, error) {
	data, err := json.Marshal(OpenAIStreamChunk{
		ID:      b.id,
		Object:  "chat.completion.chunk",
		Created: b.created,
		Model:   b.model,
		Choices: choices,
		Usage:   usage,
	})
	if err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{Data: data}, nil
}

func (b *openAIStreamBuilder) opener() ([]SSEEvent, error) {
	b.started = true
	frame, err := b.chunk([]OpenAIStreamChoice{
		{Delta: OpenAIDelta{Role: "assistant"}},
	}, nil)
	if err != nil {
		return nil, err
	}
	return []SSEEvent{frame}, nil
}

func (b *openAIStreamBuilder) Build(ev ir.StreamEvent) ([]SSEEvent, error) {
	if b.done {
		return nil, nil
	}

	var frames []SSEEvent

	// Content before start implies a start with empty id and model.
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
		if ev.ID != "" {
			b.id = ev.ID
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
		frame, err := b.chunk([]OpenAIStreamChoice{
			{Index: ev.Index, Delta: OpenAIDelta{Content: ev.Delta}},
		}, nil)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventReasoning:
		frame, err := b.chunk([]OpenAIStreamChoice{
			{Delta: OpenAIDelta{ReasoningContent: ev.Delta}},
		}, nil)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventToolCall:
		index := ev.Index
		tc := OpenAIToolCall{Index: &index}
		if open := b.openedTools[index]; open == nil {
			b.openedTools[index] = &openToolCall{srcID: ev.ToolCallID, name: ev.ToolName}
			tc.ID = ev.ToolCallID
			if tc.ID == "" {
				b.nextToolID++
				tc.ID = fmt.Sprintf("call_%d", b.nextToolID)
			}
			tc.Type = "function"
			tc.Function.Name = ev.ToolName
		} else if toolCallCollision(open, ev) {
			return nil, ir.NewErrorf(ir.ErrValidation,
				"conflicting tool call at index %d: a different call is already open", index)
		}
		tc.Function.Arguments = ev.ToolArguments
		frame, err := b.chunk([]OpenAIStreamChoice{
			{Delta: OpenAIDelta{ToolCalls: []OpenAIToolCall{tc}}},
		}, nil)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventEnd:
		b.done = true
		finish := finishToOpenAI(ev.FinishReason)
		if finish == "" {
			finish = "stop"
		}
		frame, err := b.chunk([]OpenAIStreamChoice{
			{Delta: OpenAIDelta{}, FinishReason: &finish},
		}, irUsageToOpenAI(ev.Usage))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)

	case ir.EventError:
		b.done = true
		data, err := json.Marshal(openAIErrorEnvelope{Error: &OpenAIError{
			Message: ev.Err.Message,
			Type:    kindToOpenAIErrorType(ev.Err.Kind),
			Code:    ev.Err.Code,
		}})
		if err != nil {
			return nil, err
		}
		frames = append(frames, SSEEvent{Data: data})
	}

	return frames, nil
}

// Finalize emits the [DONE] sentinel after a terminal event. A stream
// cut off mid-flight emits nothing further.
func (b *openAIStreamBuilder) Finalize() []SSEEvent {
	if !b.done {
		return nil
	}
	b.done = true
	return []SSEEvent{{Data: doneSentinel}}
}
