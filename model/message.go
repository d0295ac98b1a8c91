package model

import "time"

// Message roles. Only user and assistant messages are retained in session
// history; system and tool messages exist transiently inside a completion
// exchange.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message represents a chat message in a conversation.
//
// Context carries the page-state snapshot the browser attached to a user
// message (current node, selected program, visible panels). It is stored with
// the message but stripped before submission to the completion API and before
// returning history to clients.
//
// ToolCalls and ToolResults are only populated on the synthetic messages a
// completion exchange builds while resolving tool use; such messages are
// never appended to session history.
type Message struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	ToolCalls   []ToolCall     `json:"-"`
	ToolResults []ToolResult   `json:"-"`
}

// ToolCall is a completed tool-invocation request assembled from a provider's
// streaming events. Arguments is the parsed argument object; an unparseable
// argument payload yields an empty (never nil) map.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult carries the outcome of one resolved tool call back into the
// completion exchange.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}
