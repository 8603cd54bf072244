// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Aegis server.
//
// Configuration is loaded from a single file passed on the command
// line (default aegis.json). There are no fallbacks or automatic
// discovery beyond that one path. JSON files may contain comments and
// trailing commas (parsed as JSONC); files ending in .yaml or .yml are
// parsed as YAML. A missing file yields the defaults; a malformed file
// is a fatal configuration error (the process exits with code 2).
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/aegis-foundation/aegis/lib/plugin"
)

// Config is the master configuration for the Aegis server.
type Config struct {
	// ServerName is reported in serverInfo during initialization.
	ServerName string `json:"server_name" yaml:"server_name"`

	// ServerVersion is reported in serverInfo. Empty means the
	// build's version.
	ServerVersion string `json:"server_version" yaml:"server_version"`

	// Host and Port are the HTTP bind address for serve mode.
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// LogLevel is the slog level name: debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Security configures the filesystem and command tools.
	Security SecurityConfig `json:"security" yaml:"security"`

	// Auth configures API-key authentication on the HTTP transport.
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// RateLimit configures per-client token-bucket limiting on the
	// HTTP transport.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// DatabasePath is the SQLite file for the memory store. Empty
	// means aegis.db in the working directory; ":memory:" keeps
	// the store in RAM.
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// SecretsPath is the secrets store file. Empty derives it from
	// DatabasePath.
	SecretsPath string `json:"secrets_path" yaml:"secrets_path"`

	// JobsPath is an optional YAML file of scheduled tool
	// invocations.
	JobsPath string `json:"jobs_path" yaml:"jobs_path"`

	// Plugins declares the declarative plugin tools.
	Plugins []plugin.Descriptor `json:"plugins" yaml:"plugins"`

	// ExtrasEnabled loads the optional tool set (conversation tools)
	// in addition to the core tools.
	ExtrasEnabled bool `json:"extras_enabled" yaml:"extras_enabled"`
}

// SecurityConfig is the envelope for the filesystem and command tools.
type SecurityConfig struct {
	// AllowedReadPaths are the directory prefixes fs.read_file may
	// touch (after canonicalization).
	AllowedReadPaths []string `json:"allowed_read_paths" yaml:"allowed_read_paths"`

	// AllowedWritePaths are the prefixes fs.write_file may touch.
	AllowedWritePaths []string `json:"allowed_write_paths" yaml:"allowed_write_paths"`

	// AllowedCommands are the program names cmd.exec may run, by
	// exact match. The single entry "*" allows every command.
	AllowedCommands []string `json:"allowed_commands" yaml:"allowed_commands"`

	// RedactedEnv lists environment variable names stripped from
	// every subprocess environment.
	RedactedEnv []string `json:"redacted_env" yaml:"redacted_env"`

	// ToolTimeoutSecs bounds each command-executing tool invocation.
	ToolTimeoutSecs int `json:"tool_timeout_secs" yaml:"tool_timeout_secs"`
}

// AuthConfig configures API-key authentication (HTTP only).
type AuthConfig struct {
	// Enabled turns the check on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// APIKeys holds hex-encoded SHA-256 hashes of valid keys, never
	// plaintext. Generate with: echo -n "the-key" | sha256sum.
	APIKeys []string `json:"api_keys" yaml:"api_keys"`

	// APIKeyHeader is the header carrying the key.
	APIKeyHeader string `json:"api_key_header" yaml:"api_key_header"`

	// AllowHealthUnauthenticated exempts GET /health.
	AllowHealthUnauthenticated bool `json:"allow_health_unauthenticated" yaml:"allow_health_unauthenticated"`
}

// RateLimitConfig configures the HTTP token bucket.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// RequestsPerSecond is the sustained refill rate per client.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// BurstSize is the bucket capacity per client.
	BurstSize int `json:"burst_size" yaml:"burst_size"`
}

// Default returns the configuration used when no file is present:
// read access to the current directory, no write access, a small set
// of read-only commands, auth and rate limiting off.
func Default() *Config {
	return &Config{
		ServerName: "aegis",
		Host:       "127.0.0.1",
		Port:       9000,
		LogLevel:   "info",
		Security: SecurityConfig{
			AllowedReadPaths: []string{"."},
			AllowedCommands: []string{
				"echo", "date", "whoami", "pwd", "ls",
				"cat", "head", "tail", "wc",
			},
			ToolTimeoutSecs: 30,
		},
		Auth: AuthConfig{
			APIKeyHeader:               "X-API-Key",
			AllowHealthUnauthenticated: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			BurstSize:         50,
		},
		DatabasePath:  "aegis.db",
		ExtrasEnabled: true,
	}
}

// Load reads and validates the configuration file at path. A missing
// file returns the defaults without error; everything else that goes
// wrong is a configuration error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		// JSONC: comments and trailing commas are stripped before
		// the strict JSON parse.
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural invariants the rest of the server
// relies on. Called by Load; callers constructing a Config in code
// (tests) should call it themselves.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.Security.ToolTimeoutSecs <= 0 {
		return fmt.Errorf("config: security.tool_timeout_secs must be positive, got %d", c.Security.ToolTimeoutSecs)
	}

	for _, key := range c.Auth.APIKeys {
		if len(key) != 64 {
			return fmt.Errorf("config: auth.api_keys entries must be hex SHA-256 hashes (64 characters), got %d", len(key))
		}
		if _, err := hex.DecodeString(key); err != nil {
			return fmt.Errorf("config: auth.api_keys entry is not hex: %w", err)
		}
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("config: auth.enabled requires at least one entry in auth.api_keys")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("config: rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("config: rate_limit.burst_size must be positive")
		}
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i := range c.Plugins {
		descriptor := &c.Plugins[i]
		if err := descriptor.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if seen[descriptor.Name] {
			return fmt.Errorf("config: duplicate plugin name %q", descriptor.Name)
		}
		seen[descriptor.Name] = true
	}
	return nil
}

// EffectiveSecretsPath returns the secrets file location, deriving it
// from the database path when unset.
func (c *Config) EffectiveSecretsPath() string {
	if c.SecretsPath != "" {
		return c.SecretsPath
	}
	if c.DatabasePath == "" || c.DatabasePath == ":memory:" {
		return "aegis.secrets"
	}
	ext := filepath.Ext(c.DatabasePath)
	return c.DatabasePath[:len(c.DatabasePath)-len(ext)] + ".secrets"
}
