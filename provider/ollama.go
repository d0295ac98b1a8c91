package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"atlasd/mcp"
	"atlasd/model"
	"atlasd/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider. It converts
// between the model package's provider-agnostic types and the Ollama API
// types on each call.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates an Ollama provider. An empty baseURL defaults to
// the local server.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	ollamaMessages := ConvertToOllamaMessages(messages)

	var ollamaTools []api.Tool
	if len(tools) > 0 {
		ollamaTools = mcp.ConvertMCPToolsToOllama(sanitizeTools(tools))
	}

	ollamaCallback := func(chunk string, ollamaCalls []api.ToolCall) error {
		if callback == nil {
			return nil
		}
		return callback(chunk, ConvertToProviderToolCalls(ollamaCalls))
	}

	return p.client.ChatWithTools(ctx, ollamaMessages, ollamaTools, ollamaCallback)
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// Ping implements Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
