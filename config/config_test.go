package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warp/subsidy-engine/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Database != "subsidy.db" {
		t.Errorf("Database = %q, want subsidy.db", cfg.Database)
	}
	if len(cfg.CORSOrigins) == 0 {
		t.Error("default CORS origins missing")
	}
}

func TestLoad_OverridesAndKeepsDefaults(t *testing.T) {
	// GIVEN: a file that sets the database only
	// WHEN: loading
	// THEN: the database changes, the address keeps its default

	path := writeFile(t, "database: \"/tmp/engine.db\"\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database != "/tmp/engine.db" {
		t.Errorf("Database = %q, want /tmp/engine.db", cfg.Database)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want default :8080", cfg.Addr)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeFile(t, `
addr: ":9090"
database: ":memory:"
cors_origins:
  - "https://reports.example.org"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Database != ":memory:" {
		t.Errorf("loaded %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://reports.example.org" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	path := writeFile(t, "addr: [broken\n")
	if _, err := config.Load(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
