package provider

import (
	"encoding/json"
	"strings"

	"atlasd/model"
)

// ParseLeakedJSONToolCalls detects a tool call a model emitted as literal
// JSON in its text output instead of through the function-calling API. Some
// models do this when they understand tools natively but ignore the calling
// convention. Recognizes a bare or fenced object of the form
// {"name": ..., "arguments": {...}}.
func ParseLeakedJSONToolCalls(content string) []model.ToolCall {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}

	var payload struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload.Name == "" {
		return nil
	}

	args := payload.Arguments
	if args == nil {
		args = make(map[string]any)
	}
	return []model.ToolCall{{Name: payload.Name, Arguments: args}}
}
