package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// SecurityMethod defines the credential storage method.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

const (
	credentialsFile          = "credentials.toml"
	encryptedCredentialsFile = "credentials.enc"
)

// envKeyOverrides maps provider IDs to the conventional environment variable
// carrying their API key. Environment always wins over the on-disk store so
// containerized deployments need no credential file at all.
var envKeyOverrides = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// CredentialStore manages API keys for completion providers, either as a
// plain TOML file or encrypted at rest with an SSH-key-derived AES key.
type CredentialStore struct {
	method      SecurityMethod
	credentials map[string]string // providerID → API key
	encManager  *EncryptionManager
}

// NewCredentialStore creates a credential store for the given method. For
// SecuritySSHKey, enc must be non-nil.
func NewCredentialStore(method SecurityMethod, enc *EncryptionManager) (*CredentialStore, error) {
	if method == SecuritySSHKey && enc == nil {
		return nil, fmt.Errorf("ssh_key credential storage requires an encryption manager")
	}
	return &CredentialStore{
		method:      method,
		credentials: make(map[string]string),
		encManager:  enc,
	}, nil
}

// Load reads credentials from dataDir. A missing file is not an error; the
// store is simply empty and environment overrides still apply.
func (c *CredentialStore) Load(dataDir string) error {
	switch c.method {
	case SecurityPlainText:
		path := filepath.Join(dataDir, credentialsFile)
		if !FileExists(path) {
			return nil
		}
		creds := make(map[string]string)
		if _, err := toml.DecodeFile(path, &creds); err != nil {
			return fmt.Errorf("failed to parse credentials: %w", err)
		}
		c.credentials = creds
		return nil

	case SecuritySSHKey:
		path := filepath.Join(dataDir, encryptedCredentialsFile)
		if !FileExists(path) {
			return nil
		}
		ciphertext, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read encrypted credentials: %w", err)
		}
		plaintext, err := c.encManager.Decrypt(ciphertext)
		if err != nil {
			return fmt.Errorf("failed to decrypt credentials: %w", err)
		}
		creds := make(map[string]string)
		if err := toml.Unmarshal(plaintext, &creds); err != nil {
			return fmt.Errorf("failed to parse decrypted credentials: %w", err)
		}
		c.credentials = creds
		return nil

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// Save writes the credentials to dataDir using the configured method.
func (c *CredentialStore) Save(dataDir string) error {
	if err := EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c.credentials); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	switch c.method {
	case SecurityPlainText:
		path := filepath.Join(dataDir, credentialsFile)
		// 0600 - contains API keys
		return os.WriteFile(path, []byte(sb.String()), 0600)

	case SecuritySSHKey:
		ciphertext, err := c.encManager.Encrypt([]byte(sb.String()))
		if err != nil {
			return fmt.Errorf("failed to encrypt credentials: %w", err)
		}
		path := filepath.Join(dataDir, encryptedCredentialsFile)
		return os.WriteFile(path, ciphertext, 0600)

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// Get retrieves the API key for a provider. Environment variables take
// precedence over the on-disk store.
func (c *CredentialStore) Get(providerID string) string {
	if envVar, ok := envKeyOverrides[providerID]; ok {
		if key := os.Getenv(envVar); key != "" {
			return key
		}
	}
	return c.credentials[providerID]
}

// Set stores an API key for a provider in memory; call Save to persist.
func (c *CredentialStore) Set(providerID, apiKey string) {
	c.credentials[providerID] = apiKey
}
