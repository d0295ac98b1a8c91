package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"atlasd/mcp"
	"atlasd/model"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements model.Provider on the official Anthropic SDK.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	baseURL   string
}

// NewAnthropicProvider creates an Anthropic provider. The API key is
// required; baseURL and model fall back to sensible defaults.
func NewAnthropicProvider(baseURL, apiKey, model string, maxTokens int) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:    &client,
		model:     anthropicModel,
		maxTokens: int64(maxTokens),
		baseURL:   baseURL,
	}, nil
}

// Chat implements Provider.Chat by delegating to ChatWithTools with no tools.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools implements Provider.ChatWithTools with streaming support.
//
// Tool-use blocks arrive as a block-start event naming the tool, a run of
// input-JSON deltas, and a block-stop event. The deltas are buffered and the
// argument object is parsed once the block completes; completed calls are
// delivered through the callback after the stream ends, in block order.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	anthropicMessages, systemBlocks := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: p.maxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToAnthropicFormat(sanitizeTools(tools))
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	var toolCalls []model.ToolCall
	var inputBuf strings.Builder
	var curID, curName string
	inToolBlock := false

	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := eventVariant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				inToolBlock = true
				curID = block.ID
				curName = block.Name
				inputBuf.Reset()
			}

		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if callback != nil {
					if err := callback(deltaVariant.Text, nil); err != nil {
						return err
					}
				}
			case anthropic.InputJSONDelta:
				if inToolBlock {
					inputBuf.WriteString(deltaVariant.PartialJSON)
				}
			}

		case anthropic.ContentBlockStopEvent:
			if inToolBlock {
				toolCalls = append(toolCalls, model.ToolCall{
					ID:        curID,
					Name:      RestoreToolName(curName),
					Arguments: ParseToolArguments(inputBuf.String()),
				})
				inToolBlock = false
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}

	if callback != nil && len(toolCalls) > 0 {
		return callback("", toolCalls)
	}
	return nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// Ping implements Provider.Ping. Anthropic has no health endpoint, so a
// minimal one-token request stands in.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
