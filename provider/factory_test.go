package provider

import (
	"testing"

	"atlasd/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "ollama provider with defaults",
			config: Config{Type: ProviderTypeOllama},
		},
		{
			name: "anthropic provider",
			config: Config{
				Type:   ProviderTypeAnthropic,
				Model:  "claude-sonnet-4-5-20250929",
				APIKey: "test-key",
			},
		},
		{
			name: "openai provider",
			config: Config{
				Type:   ProviderTypeOpenAI,
				Model:  "gpt-4o-mini",
				APIKey: "test-key",
			},
		},
		{
			name: "openrouter provider",
			config: Config{
				Type:   ProviderTypeOpenRouter,
				APIKey: "test-key",
			},
		},
		{
			name:        "anthropic without API key",
			config:      Config{Type: ProviderTypeAnthropic},
			expectError: true,
		},
		{
			name:        "unknown provider type",
			config:      Config{Type: ProviderType("bedrock")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("expected non-nil provider")
			}
			var _ model.Provider = p
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := []struct {
		id       string
		expected ProviderType
	}{
		{"ollama", ProviderTypeOllama},
		{"openrouter", ProviderTypeOpenRouter},
		{"openai", ProviderTypeOpenAI},
		{"anthropic", ProviderTypeAnthropic},
		{"something-else", ProviderType("something-else")},
	}

	for _, tt := range tests {
		if got := MapProviderIDToType(tt.id); got != tt.expected {
			t.Errorf("MapProviderIDToType(%q) = %q, want %q", tt.id, got, tt.expected)
		}
	}
}
