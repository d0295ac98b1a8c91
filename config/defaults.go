package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSystemPrompt is the backend-controlled system prompt for the chat
// assistant. It is never accepted from clients.
const DefaultSystemPrompt = `You are an AI assistant helping researchers explore a hierarchical single-cell atlas. The atlas organizes cells into a tree of nodes; each node carries gene-expression programs with gene lists, loadings, UMAP visualizations, and cell type distributions.

You can help users:
- Understand what they're seeing in visualizations
- Interpret gene programs and their biological significance
- Navigate and explore the data effectively
- Answer questions about cell types, genes, and programs

When external tools are available, use them to look up current research, recent publications, or genetic association data. Always extract the specific search terms from the user's request and pass them as the tool's query argument; never call a tool with empty arguments.

Be concise but informative. Reference specific data when relevant. If you're unsure about something, say so rather than guessing.`

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDirectory: "~/.local/share/atlasd",
		Server: ServerConfig{
			ListenAddr: "0.0.0.0:12534",
		},
		Atlas: AtlasConfig{
			ProgramsFile:   "display/programs.json",
			TreeFile:       "display/tree.json",
			AssetsDir:      "display/assets",
			NodeSummaryDir: "display/node_summary_figures",
		},
		Chat: ChatConfig{
			Enabled:                  true,
			Provider:                 "anthropic",
			Model:                    "",
			MaxTokens:                4096,
			MaxHistory:               50,
			SessionTTLMinutes:        60,
			SweepIntervalMinutes:     15,
			CompletionTimeoutSeconds: 300,
			MaxToolRounds:            5,
		},
		Security: SecurityConfig{
			CredentialStorage: "plaintext",
		},
	}
}

// WriteDefaultConfig writes a commented config template to path, creating
// parent directories as needed.
func WriteDefaultConfig(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// 0600 - the config may reference credential files and tool env vars
	return os.WriteFile(path, []byte(GenerateConfigTemplate()), 0600)
}

// GenerateConfigTemplate returns the first-run config file content.
func GenerateConfigTemplate() string {
	return `# atlasd configuration
# Location: ~/.config/atlasd/config.toml
# This file uses TOML format: https://toml.io

# Directory for runtime data (gene index, credentials)
data_directory = "~/.local/share/atlasd"

[server]
listen_addr = "0.0.0.0:12534"

[atlas]
# Precomputed artifacts produced by the report pipeline
programs_file = "display/programs.json"
tree_file = "display/tree.json"
assets_dir = "display/assets"
node_summary_dir = "display/node_summary_figures"

[chat]
enabled = true
# Completion provider: "anthropic", "openai", "openrouter", or "ollama"
provider = "anthropic"
# Model name; empty selects the provider default
model = ""
max_tokens = 4096
max_history = 50
session_ttl_minutes = 60
sweep_interval_minutes = 15
completion_timeout_seconds = 300
max_tool_rounds = 5

[security]
# "plaintext" stores API keys as-is in <data_directory>/credentials.toml;
# "ssh_key" encrypts them with a key derived from an SSH key signature
credential_storage = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"

# External tool providers (Model Context Protocol)
# [[tool_providers]]
# id = "perplexity-ask"
# enabled = true
# transport = "stdio"
# command = "npx"
# args = ["-y", "server-perplexity-ask"]
# placeholder_query = "Please provide a search query"
# timeout_seconds = 60
#   [tool_providers.env]
#   PERPLEXITY_API_KEY = ""

# [[tool_providers]]
# id = "finngen"
# enabled = true
# transport = "streamable-http"
# url = "http://localhost:17235/mcp"
# placeholder_query = "Please provide a gene name or search query"
# timeout_seconds = 60
`
}
