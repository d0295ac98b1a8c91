package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"atlasd/model"
)

// ParseToolArguments parses a JSON arguments payload into a map. An empty or
// unparseable payload yields an empty map rather than an error: the call
// still reaches the dispatcher, which substitutes placeholder arguments.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// convertToAnthropicMessages converts model messages to the Anthropic format.
// System messages become system blocks (Anthropic keeps them out of the
// messages array). Synthetic tool-exchange messages map to tool_use and
// tool_result content blocks so a follow-up completion round can continue
// from a resolved tool call.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})

		case msg.Role == model.RoleAssistant && len(msg.ToolCalls) > 0:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  SanitizeToolName(call.Name),
						Input: call.Arguments,
					},
				})
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case msg.Role == model.RoleUser && len(msg.ToolResults) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: res.CallID,
						IsError:   anthropic.Bool(res.IsError),
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{OfText: &anthropic.TextBlockParam{Text: res.Content}},
						},
					},
				})
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(blocks...))

		case msg.Role == model.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return anthropicMsgs, systemBlocks
}

// ConvertToOpenAIMessages converts model messages to the OpenAI format,
// shared by the OpenAI and OpenRouter providers. Tool results are folded
// into user messages; the OpenAI-compatible backends here accept that form
// for continuation rounds.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleUser:
			result[i] = openai.UserMessage(toolResultsAsText(msg))
		case model.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(toolResultsAsText(msg))
		}
	}
	return result
}

// ConvertToOllamaMessages converts model messages to the Ollama API format.
// Timestamps and context are dropped; the Ollama API has no fields for them.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role == model.RoleSystem || role == model.RoleUser || role == model.RoleAssistant {
			result[i] = api.Message{Role: role, Content: toolResultsAsText(msg)}
			continue
		}
		result[i] = api.Message{Role: model.RoleUser, Content: toolResultsAsText(msg)}
	}
	return result
}

// toolResultsAsText renders a message's tool results as plain text for
// backends without a structured tool_result form.
func toolResultsAsText(msg model.Message) string {
	if len(msg.ToolResults) == 0 {
		return msg.Content
	}
	text := msg.Content
	for _, res := range msg.ToolResults {
		if text != "" {
			text += "\n\n"
		}
		text += "Result of " + res.Name + ":\n" + res.Content
	}
	return text
}

// ConvertToProviderToolCalls converts Ollama tool calls to the
// provider-agnostic form. Returns nil for empty input.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}
	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      RestoreToolName(call.Function.Name),
			Arguments: call.Function.Arguments,
		}
	}
	return result
}
