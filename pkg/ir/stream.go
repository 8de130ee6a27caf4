package ir

// EventType tags a StreamEvent variant.
type EventType string

const (
	// EventStart opens a response. Emitted once.
	EventStart EventType = "start"
	// EventContent carries an incremental text delta.
	EventContent EventType = "content"
	// EventReasoning carries an incremental hidden chain-of-thought delta.
	EventReasoning EventType = "reasoning"
	// EventToolCall carries an incremental tool-call fragment. The name
	// arrives with the first fragment for a given index; argument
	// fragments append.
	EventToolCall EventType = "tool_call"
	// EventEnd terminates a response normally. Emitted once.
	EventEnd EventType = "end"
	// EventError terminates a response abnormally. Mutually exclusive
	// with EventEnd.
	EventError EventType = "error"
)

// StreamEvent is one element of a response's event sequence. A valid
// sequence matches start (content | reasoning | tool_call)* (end | error).
type StreamEvent struct {
	Type EventType `json:"type"`

	// start
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`

	// content / reasoning
	Delta string `json:"delta,omitempty"`

	// content / tool_call block index
	Index int `json:"index,omitempty"`

	// tool_call
	ToolCallID    string `json:"tool_call_id,omitempty"`
	ToolName      string `json:"tool_name,omitempty"`
	ToolArguments string `json:"tool_arguments,omitempty"`

	// end
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`

	// error
	Err *Error `json:"error,omitempty"`
}

// Terminal reports whether the event ends the sequence.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventEnd || e.Type == EventError
}

// StartEvent builds a start event.
func StartEvent(id, model string) StreamEvent {
	return StreamEvent{Type: EventStart, ID: id, Model: model}
}

// ContentEvent builds a content delta event.
func ContentEvent(delta string, index int) StreamEvent {
	return StreamEvent{Type: EventContent, Delta: delta, Index: index}
}

// ReasoningEvent builds a reasoning delta event.
func ReasoningEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventReasoning, Delta: delta}
}

// EndEvent builds a terminal end event.
func EndEvent(reason FinishReason, usage *Usage) StreamEvent {
	return StreamEvent{Type: EventEnd, FinishReason: reason, Usage: usage}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(err *Error) StreamEvent {
	return StreamEvent{Type: EventError, Err: err}
}
