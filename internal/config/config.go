// Package config holds runtime configuration for the memsched CLI and
// server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds configuration shared by the CLI commands and the server.
type Config struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.memsched/memsched.db, ":memory:" for testing)
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// ResolveDBPath expands the configured database path, defaulting to
// ~/.memsched/memsched.db and creating the parent directory when needed.
func (c Config) ResolveDBPath() (string, error) {
	path := c.DBPath
	if path == ":memory:" {
		return path, nil
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".memsched", "memsched.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	return path, nil
}
