package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// SanitizeToolName converts a namespaced tool name to the underscore form
// completion APIs accept. Function names must match ^[a-zA-Z0-9_-]{1,64}$,
// which excludes the dot used for provider namespacing.
// "perplexity-ask.search" → "perplexity-ask__search"
func SanitizeToolName(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

// RestoreToolName reverses SanitizeToolName.
// "perplexity-ask__search" → "perplexity-ask.search"
func RestoreToolName(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}

// sanitizeTools returns a copy of tools with API-safe names.
func sanitizeTools(tools []mcptypes.Tool) []mcptypes.Tool {
	sanitized := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		sanitized[i] = tool
		sanitized[i].Name = SanitizeToolName(tool.Name)
	}
	return sanitized
}
