// Package provider implements completion backends behind the model.Provider
// interface.
//
// The server supports several LLM backends (Anthropic, OpenAI, OpenRouter,
// local Ollama) through a common interface so the chat layer stays
// provider-agnostic. Each implementation handles its own type conversions
// between the model package's provider-agnostic types and the vendor SDK
// types; see conversions.go.
//
// Tool names are namespaced with a dot ("providerID.toolName") inside the
// server, but several completion APIs restrict function names to
// ^[a-zA-Z0-9_-]{1,64}$. SanitizeToolName/RestoreToolName translate between
// the two forms at the API boundary; see sanitize.go.
package provider

// Note: the Provider interface and StreamCallback live in the model package
// (model/provider.go) to avoid import cycles. This package implements
// model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type      ProviderType
	BaseURL   string
	Model     string
	APIKey    string // unused for Ollama
	MaxTokens int    // response token cap; 0 uses the provider default
}
