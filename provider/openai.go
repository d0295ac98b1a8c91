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

// OpenAIProvider implements model.Provider on the official OpenAI SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenAIProvider creates an OpenAI provider. The API key is required.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
// Tool calls are accumulated by the SDK and surfaced through the callback as
// each one finishes assembling.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
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
		return fmt.Errorf("OpenAI streaming error: %w", err)
	}

	// Some models emit the tool call as literal JSON in the content instead
	// of using the function-calling API.
	if !apiToolCallsDetected && callback != nil {
		if leaked := ParseLeakedJSONToolCalls(contentBuilder.String()); len(leaked) > 0 {
			return callback("", leaked)
		}
	}

	return nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// Ping implements Provider.Ping by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}
