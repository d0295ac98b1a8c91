package provider

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"atlasd/mcp"
	"atlasd/model"
)

// OpenRouterProvider implements model.Provider against OpenRouter's
// OpenAI-compatible API, reusing the OpenAI SDK with a custom base URL.
type OpenRouterProvider struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenRouterProvider creates an OpenRouter provider. The API key is
// required.
func NewOpenRouterProvider(baseURL, apiKey, model string) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if model == "" {
		model = "meta-llama/llama-3.2-90b-instruct"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenRouterProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OpenRouterProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
func (p *OpenRouterProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	openaiMessages := ConvertToOpenAIMessages(messages)

	params := openai.ChatCompletionNewParams{
		Messages: openaiMessages,
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToOpenAIFormat(sanitizeTools(tools))
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var apiToolCallsDetected bool
	var contentBuilder strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			apiToolCallsDetected = true
			if callback != nil {
				toolCall := model.ToolCall{
					ID:        tool.ID,
					Name:      RestoreToolName(tool.Name),
					Arguments: ParseToolArguments(tool.Arguments),
				}
				if err := callback("", []model.ToolCall{toolCall}); err != nil {
					return err
				}
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content := chunk.Choices[0].Delta.Content
			contentBuilder.WriteString(content)
			if callback != nil {
				if err := callback(content, nil); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("OpenRouter streaming error: %w", err)
	}

	if !apiToolCallsDetected && callback != nil {
		if leaked := ParseLeakedJSONToolCalls(contentBuilder.String()); len(leaked) > 0 {
			for i := range leaked {
				leaked[i].Name = RestoreToolName(leaked[i].Name)
			}
			return callback("", leaked)
		}
	}

	return nil
}

// GetModel implements Provider.GetModel. Returns the full model name with
// vendor prefix, e.g. "meta-llama/llama-3.2-90b-instruct".
func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// Ping implements Provider.Ping by listing models.
func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}
