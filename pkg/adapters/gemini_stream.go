package adapters

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// geminiStreamDecoder lifts Gemini's streamed JSON objects to neutral
// events. Each Decode call receives one complete object; functionCall
// parts arrive whole, so tool_call events carry full arguments.
type geminiStreamDecoder struct {
	started  bool
	ended    bool
	finish   ir.FinishReason
	usage    *ir.Usage
	toolSeen int
}

func (d *geminiStreamDecoder) Decode(event string, data []byte) ([]ir.StreamEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var envelope geminiErrorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		d.ended = true
		status := envelope.Error.Code
		if status == 0 {
			status = 500
		}
		return []ir.StreamEvent{ir.ErrorEvent(&ir.Error{
			Kind:    ir.KindFromStatus(status),
			Message: envelope.Error.Message,
			Code:    envelope.Error.Status,
			Status:  status,
		})}, nil
	}

	var chunk GeminiResponse
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, ir.NewErrorf(ir.ErrValidation, "malformed stream chunk: %v", err)
	}

	var events []ir.StreamEvent
	if !d.started {
		d.started = true
		events = append(events, ir.StartEvent(chunk.ResponseID, chunk.ModelVersion))
	}

	if chunk.UsageMetadata != nil {
		d.usage = geminiUsageToIR(chunk.UsageMetadata)
	}

	sawTool := false
	for _, candidate := range chunk.Candidates {
		if candidate.Content != nil {
			for _, p := range candidate.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					sawTool = true
					args, _ := json.Marshal(p.FunctionCall.Args)
					events = append(events, ir.StreamEvent{
						Type:          ir.EventToolCall,
						Index:         d.toolSeen,
						ToolCallID:    p.FunctionCall.Name,
						ToolName:      p.FunctionCall.Name,
						ToolArguments: string(args),
					})
					d.toolSeen++
				case p.Thought:
					events = append(events, ir.ReasoningEvent(p.Text))
				case p.Text != "":
					events = append(events, ir.ContentEvent(p.Text, candidate.Index))
				}
			}
		}
		if candidate.FinishReason != "" {
			d.finish = finishFromGemini(candidate.FinishReason)
			if sawTool || d.toolSeen > 0 {
				d.finish = ir.FinishToolCalls
			}
		}
	}

	// The final object carries finishReason and usageMetadata together.
	if d.finish != "" && !d.ended {
		d.ended = true
		events = append(events, ir.EndEvent(d.finish, d.usage))
	}

	return events, nil
}

// Finish reports the finish reason latched so far, empty when none has
// arrived yet.
func (d *geminiStreamDecoder) Finish() ir.FinishReason {
	return d.finish
}

type geminiPendingTool struct {
	srcID string
	name  string
	args  []byte
}

// geminiStreamBuilder re-emits Gemini's streamed-object framing from
// neutral events. The dialect has no incremental tool-argument frames,
// so tool fragments accumulate until the end event and flush as whole
// functionCall parts on the terminal object.
type geminiStreamBuilder struct {
	id      string
	model   string
	done    bool
	pending map[int]*geminiPendingTool
}

func newGeminiStreamBuilder(id, model string) *geminiStreamBuilder {
	return &geminiStreamBuilder{
		id:      id,
		model:   model,
		pending: make(map[int]*geminiPendingTool),
	}
}

func (b *geminiStreamBuilder) frame(chunk GeminiResponse) (SSEEvent, error) {
	chunk.ResponseID = b.id
	chunk.ModelVersion = b.model
	data, err := json.Marshal(chunk)
	if err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{Data: data}, nil
}

func (b *geminiStreamBuilder) textFrame(part GeminiPart) (SSEEvent, error) {
	return b.frame(GeminiResponse{
		Candidates: []GeminiCandidate{{
			Content: &GeminiContent{Role: "model", Parts: []GeminiPart{part}},
		}},
	})
}

func (b *geminiStreamBuilder) Build(ev ir.StreamEvent) ([]SSEEvent, error) {
	if b.done {
		return nil, nil
	}

	switch ev.Type {
	case ir.EventStart:
		if ev.ID != "" {
			b.id = ev.ID
		}
		if ev.Model != "" {
			b.model = ev.Model
		}
		// No opener frame: the first content-bearing object starts
		// the stream.
		return nil, nil

	case ir.EventContent:
		frame, err := b.textFrame(GeminiPart{Text: ev.Delta})
		if err != nil {
			return nil, err
		}
		return []SSEEvent{frame}, nil

	case ir.EventReasoning:
		frame, err := b.textFrame(GeminiPart{Text: ev.Delta, Thought: true})
		if err != nil {
			return nil, err
		}
		return []SSEEvent{frame}, nil

	case ir.EventToolCall:
		tool := b.pending[ev.Index]
		if tool == nil {
			tool = &geminiPendingTool{srcID: ev.ToolCallID, name: ev.ToolName}
			b.pending[ev.Index] = tool
		} else if toolCallCollision(&openToolCall{srcID: tool.srcID, name: tool.name}, ev) {
			return nil, ir.NewErrorf(ir.ErrValidation,
				"conflicting tool call at index %d: a different call is already open", ev.Index)
		} else if ev.ToolName != "" {
			tool.name = ev.ToolName
		}
		tool.args = append(tool.args, ev.ToolArguments...)
		return nil, nil

	case ir.EventEnd:
		b.done = true
		chunk := GeminiResponse{
			Candidates: []GeminiCandidate{{
				FinishReason: finishToGemini(ev.FinishReason),
			}},
			UsageMetadata: irUsageToGemini(ev.Usage),
		}
		if parts := b.flushTools(); len(parts) > 0 {
			chunk.Candidates[0].Content = &GeminiContent{Role: "model", Parts: parts}
		}
		if chunk.Candidates[0].FinishReason == "" {
			chunk.Candidates[0].FinishReason = "STOP"
		}
		frame, err := b.frame(chunk)
		if err != nil {
			return nil, err
		}
		return []SSEEvent{frame}, nil

	case ir.EventError:
		b.done = true
		status := ev.Err.Kind.HTTPStatus()
		data, err := json.Marshal(geminiErrorEnvelope{Error: &GeminiError{
			Code:    status,
			Message: ev.Err.Message,
			Status:  geminiStatusString(ev.Err.Kind),
		}})
		if err != nil {
			return nil, err
		}
		return []SSEEvent{{Data: data}}, nil
	}

	return nil, nil
}

func (b *geminiStreamBuilder) flushTools() []GeminiPart {
	if len(b.pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(b.pending))
	for i := range b.pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	parts := make([]GeminiPart, 0, len(indexes))
	for _, i := range indexes {
		tool := b.pending[i]
		parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{
			Name: tool.name,
			Args: argsToObject(string(tool.args)),
		}})
	}
	b.pending = make(map[int]*geminiPendingTool)
	return parts
}

// Finalize emits nothing: the dialect closes on the finishReason object
// and an interrupted stream must not fabricate one.
func (b *geminiStreamBuilder) Finalize() []SSEEvent {
	return nil
}
