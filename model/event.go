package model

// EventType identifies a stream event sent to the browser over SSE.
type EventType string

const (
	EventStart      EventType = "start"
	EventChunk      EventType = "chunk"
	EventToolNotice EventType = "tool_notice"
	EventToolResult EventType = "tool_result"
	EventEnd        EventType = "end"
	EventError      EventType = "error"
)

// StreamEvent is one SSE-framed JSON object emitted during response
// generation. Ordering contract: exactly one start event first, then zero or
// more chunk/tool_notice/tool_result events in emission order, then exactly
// one terminal end or error event, with nothing after it.
type StreamEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Terminal reports whether the event closes the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventEnd || e.Type == EventError
}
