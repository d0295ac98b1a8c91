package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir returns the configuration directory (~/.config/atlasd).
func GetConfigDir() string {
	if dir := os.Getenv("ATLASD_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "atlasd")
}

// ConfigFilePath returns the path to config.toml, honoring ATLASD_CONFIG.
func ConfigFilePath() string {
	if path := os.Getenv("ATLASD_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(GetConfigDir(), "config.toml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDir creates dir (and parents) with user-only permissions.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
