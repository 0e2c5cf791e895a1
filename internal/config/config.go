// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// lingualens.
//
// Supports both TOML and JSON configuration formats, with sensible
// defaults, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.lingualens/config.toml
//   - ~/.lingualens/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lingualens/lingualens-tui/internal/models"
	"github.com/lingualens/lingualens-tui/internal/util"
)

// ============================================================================
// CONFIG STRUCTURES
// ============================================================================

// Config is the complete lingualens configuration.
type Config struct {
	// DefaultModel is the model id used when none is selected yet.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Locale forces the UI locale (BCP 47 tag). Empty means detect from
	// the environment.
	Locale string `toml:"locale" json:"locale"`

	API     APIConfig     `toml:"api" json:"api"`
	History HistoryConfig `toml:"history" json:"history"`
	Server  ServerConfig  `toml:"server" json:"server"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// APIConfig contains Gemini backend settings.
type APIConfig struct {
	// Key is the Gemini API key.
	Key string `toml:"key" json:"key"`
	// BaseURL overrides the API endpoint, e.g. for a local proxy.
	BaseURL string `toml:"base_url" json:"base_url"`
	// MaxRetries bounds retry attempts for transient errors.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// HistoryConfig contains chat history settings.
type HistoryConfig struct {
	// RetentionDays is how long sessions are kept. Sessions untouched for
	// longer are pruned on every save.
	RetentionDays int `toml:"retention_days" json:"retention_days"`
	// StoreDir overrides the store directory (default ~/.lingualens/store).
	StoreDir string `toml:"store_dir" json:"store_dir"`
}

// ServerConfig contains the local HTTP proxy settings.
type ServerConfig struct {
	// Addr is the listen address for `lingualens serve`.
	Addr string `toml:"addr" json:"addr"`
	// RateLimit is requests per second per client, 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the token bucket burst for the rate limiter.
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// UIConfig contains TUI settings.
type UIConfig struct {
	// Theme is "dark", "light", or "auto".
	Theme string `toml:"theme" json:"theme"`
	// EnglishNames forces English scene names regardless of locale.
	EnglishNames bool `toml:"english_names" json:"english_names"`
}

// ============================================================================
// DEFAULTS
// ============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DefaultModel: models.DefaultID,
		Locale:       "",

		API: APIConfig{
			Key:        "",
			BaseURL:    "",
			MaxRetries: 3,
		},

		History: HistoryConfig{
			RetentionDays: 30,
			StoreDir:      "",
		},

		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 5,
			RateBurst: 10,
		},

		UI: UIConfig{
			Theme:        "auto",
			EnglishNames: false,
		},
	}
}

// ============================================================================
// PATH HELPERS
// ============================================================================

// Dir returns the lingualens configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lingualens"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDir creates the config directory if missing.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens config file permissions to 0600. The
// file carries the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", info.Mode().Perm(), err)
		}
	}
	return nil
}

// ============================================================================
// LOAD
// ============================================================================

// Load reads configuration from the config file(s). TOML is tried first,
// then JSON, then built-in defaults. Environment overrides apply last.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := PathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finish(cfg)
		}
	}

	if path, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadJSON(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finish(cfg)
		}
	}

	return finish(cfg)
}

// LoadFromPath reads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.API.MaxRetries <= 0 {
		c.API.MaxRetries = defaults.API.MaxRetries
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = defaults.History.RetentionDays
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ============================================================================
// ENVIRONMENT OVERRIDES
// ============================================================================

// ApplyEnvOverrides applies LINGUALENS_* environment variables on top of
// the loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LINGUALENS_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("LINGUALENS_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LINGUALENS_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("LINGUALENS_LOCALE"); v != "" {
		c.Locale = v
	}
	if v := os.Getenv("LINGUALENS_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			c.History.RetentionDays = days
		}
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if err := models.Validate(c.DefaultModel); err != nil {
		return ValidationError{Field: "default_model", Message: fmt.Sprintf("unknown model %q", c.DefaultModel)}
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{Field: "api.base_url", Message: fmt.Sprintf("not a valid URL: %q", c.API.BaseURL)}
		}
	}

	if c.History.RetentionDays < 1 || c.History.RetentionDays > 3650 {
		return ValidationError{Field: "history.retention_days", Message: "must be between 1 and 3650"}
	}

	if c.Server.RateLimit < 0 {
		return ValidationError{Field: "server.rate_limit", Message: "must not be negative"}
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return ValidationError{Field: "ui.theme", Message: fmt.Sprintf("unknown theme %q", c.UI.Theme)}
	}

	return nil
}

// ============================================================================
// SAVE
// ============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# lingualens configuration file\n")
	buf.WriteString("# Generated by lingualens - edit with care\n\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// StoreDir resolves the key-value store directory: the configured
// override, else ~/.lingualens/store.
func (c *Config) StoreDir() (string, error) {
	if c.History.StoreDir != "" {
		return c.History.StoreDir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store"), nil
}
