package provider

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestSanitizeToolName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		sanitized string
	}{
		{"namespaced name", "perplexity-ask.search", "perplexity-ask__search"},
		{"no namespace", "search", "search"},
		{"nested dots", "a.b.c", "a__b__c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeToolName(tt.input)
			if got != tt.sanitized {
				t.Errorf("SanitizeToolName(%q) = %q, want %q", tt.input, got, tt.sanitized)
			}
			if restored := RestoreToolName(got); restored != tt.input {
				t.Errorf("round trip: RestoreToolName(%q) = %q, want %q", got, restored, tt.input)
			}
		})
	}
}

func TestSanitizeToolsDoesNotMutateInput(t *testing.T) {
	tools := []mcptypes.Tool{{Name: "finngen.query_credible_sets"}}
	sanitized := sanitizeTools(tools)

	if sanitized[0].Name != "finngen__query_credible_sets" {
		t.Errorf("unexpected sanitized name: %q", sanitized[0].Name)
	}
	if tools[0].Name != "finngen.query_credible_sets" {
		t.Errorf("input slice was mutated: %q", tools[0].Name)
	}
}
