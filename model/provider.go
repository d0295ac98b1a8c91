package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM completion backends (Anthropic, OpenAI-compatible,
// Ollama) using provider-agnostic types from the model layer.
//
// The interface lives in the model package rather than the provider package
// to avoid import cycles: provider implementations import model, and the chat
// layer can consume Provider without importing any vendor SDK.
type Provider interface {
	// Chat sends messages and streams the response back via callback.
	Chat(ctx context.Context, messages []Message, callback StreamCallback) error

	// ChatWithTools sends messages together with the available tool
	// descriptors. Text deltas arrive through the callback in emission
	// order; a completed tool-invocation request arrives as a ToolCall
	// once its argument payload has been fully assembled.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) error

	// GetModel returns the active model name.
	GetModel() string

	// Ping checks whether the provider is reachable.
	Ping(ctx context.Context) error
}

// StreamCallback is invoked for each streamed chunk. Exactly one of chunk and
// toolCalls is meaningful per invocation. Returning a non-nil error aborts
// the stream; the provider surfaces that error from ChatWithTools.
type StreamCallback func(chunk string, toolCalls []ToolCall) error
