package provider

import (
	"testing"
	"time"

	"github.com/ollama/ollama/api"

	"atlasd/model"
)

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]any
	}{
		{
			name:     "valid arguments",
			input:    `{"gene": "IL7R"}`,
			expected: map[string]any{"gene": "IL7R"},
		},
		{
			name:     "empty string yields empty map",
			input:    "",
			expected: map[string]any{},
		},
		{
			name:     "malformed JSON yields empty map",
			input:    `{"gene": `,
			expected: map[string]any{},
		},
		{
			name:     "null yields empty map",
			input:    "null",
			expected: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolArguments(tt.input)
			if got == nil {
				t.Fatal("arguments map must never be nil")
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(got), len(tt.expected))
			}
			for k, want := range tt.expected {
				if got[k] != want {
					t.Errorf("argument %q: got %v, want %v", k, got[k], want)
				}
			}
		})
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "You are an atlas assistant."},
		{Role: model.RoleUser, Content: "Which programs contain IL7R?"},
		{Role: model.RoleAssistant, Content: "Checking."},
	}

	anthropicMsgs, systemBlocks := convertToAnthropicMessages(messages)

	if len(systemBlocks) != 1 {
		t.Fatalf("expected 1 system block, got %d", len(systemBlocks))
	}
	if systemBlocks[0].Text != "You are an atlas assistant." {
		t.Errorf("system text mismatch: %q", systemBlocks[0].Text)
	}
	// System messages move to the system parameter, not the messages array.
	if len(anthropicMsgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(anthropicMsgs))
	}
	if anthropicMsgs[0].Role != "user" || anthropicMsgs[1].Role != "assistant" {
		t.Errorf("unexpected roles: %s, %s", anthropicMsgs[0].Role, anthropicMsgs[1].Role)
	}
}

func TestConvertToAnthropicMessagesToolExchange(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleUser, Content: "Search for IL7R"},
		{
			Role:    model.RoleAssistant,
			Content: "Let me look that up.",
			ToolCalls: []model.ToolCall{
				{ID: "toolu_01", Name: "finngen.query_credible_sets", Arguments: map[string]any{"query": "IL7R"}},
			},
		},
		{
			Role: model.RoleUser,
			ToolResults: []model.ToolResult{
				{CallID: "toolu_01", Name: "finngen.query_credible_sets", Content: "3 credible sets found"},
			},
		},
	}

	anthropicMsgs, _ := convertToAnthropicMessages(messages)
	if len(anthropicMsgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(anthropicMsgs))
	}

	assistant := anthropicMsgs[1]
	if len(assistant.Content) != 2 {
		t.Fatalf("expected text + tool_use blocks, got %d blocks", len(assistant.Content))
	}
	toolUse := assistant.Content[1].OfToolUse
	if toolUse == nil {
		t.Fatal("expected tool_use block")
	}
	if toolUse.ID != "toolu_01" {
		t.Errorf("tool_use id mismatch: %q", toolUse.ID)
	}
	if toolUse.Name != "finngen__query_credible_sets" {
		t.Errorf("tool name should be sanitized for the API: %q", toolUse.Name)
	}

	resultMsg := anthropicMsgs[2]
	if len(resultMsg.Content) != 1 {
		t.Fatalf("expected 1 tool_result block, got %d", len(resultMsg.Content))
	}
	toolResult := resultMsg.Content[0].OfToolResult
	if toolResult == nil {
		t.Fatal("expected tool_result block")
	}
	if toolResult.ToolUseID != "toolu_01" {
		t.Errorf("tool_result must reference the tool_use id: %q", toolResult.ToolUseID)
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: "system prompt"},
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "hi"},
	}

	result := ConvertToOpenAIMessages(messages)
	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}
	if result[0].OfSystem == nil {
		t.Error("expected system message variant")
	}
	if result[1].OfUser == nil {
		t.Error("expected user message variant")
	}
	if result[2].OfAssistant == nil {
		t.Error("expected assistant message variant")
	}
}

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Message
		expected []api.Message
	}{
		{
			name:     "empty slice",
			input:    []model.Message{},
			expected: []api.Message{},
		},
		{
			name: "roles and content preserved",
			input: []model.Message{
				{Role: model.RoleUser, Content: "Hello", Timestamp: time.Now()},
				{Role: model.RoleAssistant, Content: "Hi there", Timestamp: time.Now()},
			},
			expected: []api.Message{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi there"},
			},
		},
		{
			name: "unknown role becomes user",
			input: []model.Message{
				{Role: "observer", Content: "note"},
			},
			expected: []api.Message{
				{Role: "user", Content: "note"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}
			for i, msg := range result {
				if msg.Role != tt.expected[i].Role {
					t.Errorf("message %d role: got %q, want %q", i, msg.Role, tt.expected[i].Role)
				}
				if msg.Content != tt.expected[i].Content {
					t.Errorf("message %d content: got %q, want %q", i, msg.Content, tt.expected[i].Content)
				}
			}
		})
	}
}

func TestToolResultsAsText(t *testing.T) {
	msg := model.Message{
		Role: model.RoleUser,
		ToolResults: []model.ToolResult{
			{Name: "perplexity-ask.search", Content: "answer text"},
		},
	}
	got := toolResultsAsText(msg)
	if got != "Result of perplexity-ask.search:\nanswer text" {
		t.Errorf("unexpected rendering: %q", got)
	}
}

func TestConvertToProviderToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		input    []api.ToolCall
		expected []model.ToolCall
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name: "sanitized name restored",
			input: []api.ToolCall{
				{
					Function: api.ToolCallFunction{
						Name:      "atlas__search_programs_by_gene",
						Arguments: map[string]any{"gene": "ACTA2"},
					},
				},
			},
			expected: []model.ToolCall{
				{
					Name:      "atlas.search_programs_by_gene",
					Arguments: map[string]any{"gene": "ACTA2"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToProviderToolCalls(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}
			for i, call := range result {
				if call.Name != tt.expected[i].Name {
					t.Errorf("tool call %d name: got %q, want %q", i, call.Name, tt.expected[i].Name)
				}
				if len(call.Arguments) != len(tt.expected[i].Arguments) {
					t.Errorf("tool call %d arguments length mismatch", i)
				}
			}
		})
	}
}
