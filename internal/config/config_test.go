package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Addr() == "" {
		t.Error("expected non-empty addr")
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"name": "demo",
		"server": {"host": "0.0.0.0", "port": 9000, "allowAnyOrigin": true},
		"metrics": {"enabled": true, "namespace": "demo"},
		"logLevel": "debug"
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Name != "demo" {
		t.Errorf("expected name demo, got %q", cfg.Name)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("expected addr 0.0.0.0:9000, got %q", cfg.Addr())
	}
	if !cfg.Server.AllowAnyOrigin {
		t.Error("expected allowAnyOrigin true")
	}
	if cfg.Metrics.Namespace != "demo" {
		t.Errorf("expected namespace demo, got %q", cfg.Metrics.Namespace)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected logLevel debug, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{not json`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"server": {"port": 123456}}`)
	if _, err := Load(dir); err == nil {
		t.Error("expected error for out-of-range port")
	}

	writeConfig(t, dir, `{"logLevel": "loud"}`)
	if _, err := Load(dir); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"server": {"port": 8080}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("expected default host filled in, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
}
