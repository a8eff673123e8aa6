package config

import (
	"path/filepath"
	"testing"
)

func TestResolveDBPath_Explicit(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DBPath = filepath.Join(dir, "nested", "runs.db")

	path, err := cfg.ResolveDBPath()
	if err != nil {
		t.Fatalf("ResolveDBPath: %v", err)
	}
	if path != cfg.DBPath {
		t.Errorf("path = %q, want %q", path, cfg.DBPath)
	}
}

func TestResolveDBPath_Memory(t *testing.T) {
	cfg := Default()
	cfg.DBPath = ":memory:"
	path, err := cfg.ResolveDBPath()
	if err != nil {
		t.Fatalf("ResolveDBPath: %v", err)
	}
	if path != ":memory:" {
		t.Errorf("path = %q, want :memory:", path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Default() = %+v", cfg)
	}
}
