/*
Package config loads server configuration from YAML.

PURPOSE:
  One small struct for everything the server binary needs: listen
  address, database path, CORS origins. Flags in cmd/server override
  whatever the file says, so a config file is optional.

FILE FORMAT (YAML):
  addr: ":8080"
  database: "./data/subsidy.db"
  cors_origins:
    - "http://localhost:5173"

USAGE:
  cfg := config.Default()
  if path != "" {
      cfg, err = config.Load(path)
  }
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// Database is the SQLite path; ":memory:" for an in-memory database.
	Database string `yaml:"database"`

	// CORSOrigins are the allowed cross-origin hosts.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:     ":8080",
		Database: "subsidy.db",
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
}

// Load reads a YAML config file on top of the defaults: absent keys keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = Default().Addr
	}
	if cfg.Database == "" {
		cfg.Database = Default().Database
	}
	return cfg, nil
}
