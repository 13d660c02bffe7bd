// Package config provides configuration file and environment variable
// support for the ticketd reference host.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Config file (~/.ticketd/config.toml)
//  4. Built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents the ticketd configuration.
type Config struct {
	// Listen is the HTTP listen address.
	// Default: "localhost:8400"
	Listen string `toml:"listen"`

	// DatabaseURL is the Postgres connection string.
	// Default: "postgres://localhost:5432/ticketd?sslmode=disable"
	DatabaseURL string `toml:"database_url"`

	// DefaultProject is used when a request names no project.
	DefaultProject string `toml:"default_project"`

	// SchemaPrefix is prepended to project names to form schema names.
	// Default: "proj_"
	SchemaPrefix string `toml:"schema_prefix"`

	// MigrationOffset is the ID of the first migration record.
	// Zero uses the built-in default.
	MigrationOffset int `toml:"migration_offset"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "localhost:8400",
		DatabaseURL:    "postgres://localhost:5432/ticketd?sslmode=disable",
		DefaultProject: "default",
		SchemaPrefix:   "proj_",
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ticketd", "config.toml")
}

// Load loads configuration from the default config file and environment
// variables. Environment variables take precedence over file settings.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path. A missing file
// is not an error; defaults apply.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("TICKETD_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TICKETD_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("TICKETD_DEFAULT_PROJECT"); v != "" {
		c.DefaultProject = v
	}
	if v := os.Getenv("TICKETD_SCHEMA_PREFIX"); v != "" {
		c.SchemaPrefix = v
	}
	if v := os.Getenv("TICKETD_MIGRATION_OFFSET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MigrationOffset = n
		}
	}
}
