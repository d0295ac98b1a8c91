package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ConvertMCPToolsToAnthropicFormat converts MCP tool descriptors to the
// Anthropic tool-use format. MCP's inputSchema and Anthropic's input_schema
// are both JSON Schema, so this is a structural re-wrap.
func ConvertMCPToolsToAnthropicFormat(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		inputSchema := anthropic.ToolInputSchemaParam{
			// Type defaults to "object" when omitted
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}

// ConvertMCPToolsToOpenAIFormat converts MCP tool descriptors to the OpenAI
// function-calling format, shared by OpenAI and OpenRouter.
func ConvertMCPToolsToOpenAIFormat(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// ConvertMCPToolsToOllama converts MCP tool descriptors to the Ollama API
// tool format.
func ConvertMCPToolsToOllama(mcpTools []mcptypes.Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(mcpTools))
	for _, mcpTool := range mcpTools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  convertInputSchemaToParameters(mcpTool.InputSchema),
			},
		})
	}
	return ollamaTools
}

func convertInputSchemaToParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}
	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}
	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = convertPropertyValue(propValue)
	}
	return params
}

func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// "type" may be a single string or a list of types
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enumVal, ok := propMap["enum"]; ok {
		if enumSlice, ok := enumVal.([]any); ok {
			toolProp.Enum = enumSlice
		}
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOfVal, ok := propMap["anyOf"]; ok {
		if anyOfSlice, ok := anyOfVal.([]any); ok {
			anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
			for _, item := range anyOfSlice {
				anyOfProps = append(anyOfProps, convertPropertyValue(item))
			}
			toolProp.AnyOf = anyOfProps
		}
	}

	return toolProp
}
