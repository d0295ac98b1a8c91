package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func geneSearchTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "search_programs_by_gene",
		Description: "Find expression programs containing a gene",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"gene": map[string]any{
					"type":        "string",
					"description": "Gene symbol, e.g. IL7R",
				},
				"max_results": map[string]any{
					"type":        "number",
					"description": "Maximum number of programs to return",
				},
			},
			Required: []string{"gene"},
		},
	}
}

func TestConvertMCPToolsToAnthropicFormat(t *testing.T) {
	result := ConvertMCPToolsToAnthropicFormat([]mcptypes.Tool{geneSearchTool()})
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	tool := result[0].OfTool
	if tool == nil {
		t.Fatal("expected OfTool variant")
	}
	if tool.Name != "search_programs_by_gene" {
		t.Errorf("name mismatch: %q", tool.Name)
	}
	if tool.Description.Value != "Find expression programs containing a gene" {
		t.Errorf("description mismatch: %q", tool.Description.Value)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "gene" {
		t.Errorf("required mismatch: %v", tool.InputSchema.Required)
	}
	props, ok := tool.InputSchema.Properties.(map[string]any)
	if !ok {
		t.Fatalf("properties type: %T", tool.InputSchema.Properties)
	}
	if len(props) != 2 {
		t.Errorf("expected 2 properties, got %d", len(props))
	}
}

func TestConvertMCPToolsToAnthropicFormatEmpty(t *testing.T) {
	if got := ConvertMCPToolsToAnthropicFormat(nil); got != nil {
		t.Errorf("expected nil for no tools, got %v", got)
	}
}

func TestConvertMCPToolsToOpenAIFormat(t *testing.T) {
	result := ConvertMCPToolsToOpenAIFormat([]mcptypes.Tool{geneSearchTool()})
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	fn := result[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool variant")
	}
	if fn.Function.Name != "search_programs_by_gene" {
		t.Errorf("name mismatch: %q", fn.Function.Name)
	}
	params := fn.Function.Parameters
	if params["type"] != "object" {
		t.Errorf("parameters type mismatch: %v", params["type"])
	}
	required, ok := params["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "gene" {
		t.Errorf("required mismatch: %v", params["required"])
	}
}

func TestConvertMCPToolsToOllama(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int
		validate func(t *testing.T, result []api.Tool)
	}{
		{
			name:     "empty tools",
			input:    []mcptypes.Tool{},
			expected: 0,
		},
		{
			name:     "gene search tool",
			input:    []mcptypes.Tool{geneSearchTool()},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				if result[0].Type != "function" {
					t.Errorf("expected type 'function', got %q", result[0].Type)
				}
				if result[0].Function.Name != "search_programs_by_gene" {
					t.Errorf("name mismatch: %q", result[0].Function.Name)
				}
				params := result[0].Function.Parameters
				if len(params.Required) != 1 {
					t.Errorf("expected 1 required field, got %d", len(params.Required))
				}
				geneProp, ok := params.Properties["gene"]
				if !ok {
					t.Fatal("gene property not found")
				}
				if len(geneProp.Type) != 1 || geneProp.Type[0] != "string" {
					t.Errorf("gene type mismatch: %v", geneProp.Type)
				}
			},
		},
		{
			name: "multiple tools keep order",
			input: []mcptypes.Tool{
				{Name: "first", InputSchema: mcptypes.ToolInputSchema{Type: "object"}},
				{Name: "second", InputSchema: mcptypes.ToolInputSchema{Type: "object"}},
			},
			expected: 2,
			validate: func(t *testing.T, result []api.Tool) {
				if result[0].Function.Name != "first" || result[1].Function.Name != "second" {
					t.Error("tool order not preserved")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertMCPToolsToOllama(tt.input)
			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestConvertPropertyValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		validate func(t *testing.T, result api.ToolProperty)
	}{
		{
			name: "string type",
			input: map[string]any{
				"type":        "string",
				"description": "A gene symbol",
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 1 || result.Type[0] != "string" {
					t.Errorf("expected type [string], got %v", result.Type)
				}
				if result.Description != "A gene symbol" {
					t.Error("description mismatch")
				}
			},
		},
		{
			name: "multi-type property",
			input: map[string]any{
				"type": []any{"string", "number"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 2 {
					t.Errorf("expected 2 types, got %d", len(result.Type))
				}
			},
		},
		{
			name: "enum property",
			input: map[string]any{
				"type": "string",
				"enum": []any{"summary", "full"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Enum) != 2 {
					t.Errorf("expected 2 enum values, got %d", len(result.Enum))
				}
			},
		},
		{
			name: "array property with items",
			input: map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if result.Items == nil {
					t.Error("expected items to be set")
				}
			},
		},
		{
			name: "anyOf property",
			input: map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "number"},
				},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.AnyOf) != 2 {
					t.Errorf("expected 2 anyOf options, got %d", len(result.AnyOf))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertPropertyValue(tt.input)
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}
