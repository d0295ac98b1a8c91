package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// AtlasConfig locates the precomputed atlas artifacts on disk.
type AtlasConfig struct {
	ProgramsFile   string `toml:"programs_file"`
	TreeFile       string `toml:"tree_file"`
	AssetsDir      string `toml:"assets_dir"`
	NodeSummaryDir string `toml:"node_summary_dir"`
	GeneIndexPath  string `toml:"gene_index_path"`
}

// ChatConfig controls the chat assistant.
type ChatConfig struct {
	Enabled                  bool   `toml:"enabled"`
	Provider                 string `toml:"provider"` // "anthropic", "openai", "openrouter", "ollama"
	Model                    string `toml:"model"`
	BaseURL                  string `toml:"base_url,omitempty"`
	MaxTokens                int    `toml:"max_tokens"`
	SystemPrompt             string `toml:"system_prompt,omitempty"`
	MaxHistory               int    `toml:"max_history"`
	SessionTTLMinutes        int    `toml:"session_ttl_minutes"`
	SweepIntervalMinutes     int    `toml:"sweep_interval_minutes"`
	CompletionTimeoutSeconds int    `toml:"completion_timeout_seconds"`
	MaxToolRounds            int    `toml:"max_tool_rounds"`
}

// Tool provider transports.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// ToolProviderConfig declares one external tool provider. Stdio providers are
// spawned as subprocesses speaking JSON-RPC over stdin/stdout; streamable-http
// providers are reached over the network.
type ToolProviderConfig struct {
	ID               string            `toml:"id"`
	Enabled          bool              `toml:"enabled"`
	Transport        string            `toml:"transport"` // "stdio" or "streamable-http"
	Command          string            `toml:"command,omitempty"`
	Args             []string          `toml:"args,omitempty"`
	URL              string            `toml:"url,omitempty"`
	Env              map[string]string `toml:"env,omitempty"`
	PlaceholderQuery string            `toml:"placeholder_query,omitempty"`
	TimeoutSeconds   int               `toml:"timeout_seconds,omitempty"`
}

// SecurityConfig controls how API credentials are stored at rest.
type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"` // "plaintext" or "ssh_key"
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

// Config is the resolved server configuration.
type Config struct {
	DataDirectory string               `toml:"data_directory"`
	Debug         bool                 `toml:"debug"`
	Server        ServerConfig         `toml:"server"`
	Atlas         AtlasConfig          `toml:"atlas"`
	Chat          ChatConfig           `toml:"chat"`
	Security      SecurityConfig       `toml:"security"`
	ToolProviders []ToolProviderConfig `toml:"tool_providers"`
}

// SessionTTL returns the configured session TTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Chat.SessionTTLMinutes) * time.Minute
}

// SweepInterval returns the configured sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Chat.SweepIntervalMinutes) * time.Minute
}

// CompletionTimeout returns the overall completion-call timeout. Zero means
// no timeout.
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Chat.CompletionTimeoutSeconds) * time.Second
}

// Timeout returns the per-call timeout for this provider, defaulting to 60s
// when unset.
func (t ToolProviderConfig) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// DataDir returns the data directory with ~ expanded.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Load reads the config file (creating a commented template on first run),
// then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := ConfigFilePath()
	if !FileExists(path) {
		if err := WriteDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFromPath reads the config from a specific file, applying environment
// overrides afterwards. The file must exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("ATLASD_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}
	if dataDir := os.Getenv("ATLASD_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if prov := os.Getenv("ATLASD_CHAT_PROVIDER"); prov != "" {
		c.Chat.Provider = prov
	}
	if mdl := os.Getenv("ATLASD_CHAT_MODEL"); mdl != "" {
		c.Chat.Model = mdl
	}
	if enabled := os.Getenv("ATLASD_CHAT_ENABLED"); enabled != "" {
		c.Chat.Enabled = enabled == "true" || enabled == "1"
	}
	if maxTokens := os.Getenv("ATLASD_CHAT_MAX_TOKENS"); maxTokens != "" {
		if n, err := strconv.Atoi(maxTokens); err == nil && n > 0 {
			c.Chat.MaxTokens = n
		}
	}
}

// CheckDebug reports whether debug mode is requested via environment.
func CheckDebug() bool {
	debug := os.Getenv("ATLASD_DEBUG")
	return debug == "true" || debug == "1"
}
