// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.fillDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-2.5-flash", cfg.DefaultModel)
	assert.Equal(t, 30, cfg.History.RetentionDays)
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "gemini-2.5-pro"
locale = "zh-CN"

[api]
key = "test-key"
max_retries = 5

[history]
retention_days = 7

[ui]
theme = "light"
english_names = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.DefaultModel)
	assert.Equal(t, "zh-CN", cfg.Locale)
	assert.Equal(t, "test-key", cfg.API.Key)
	assert.Equal(t, 5, cfg.API.MaxRetries)
	assert.Equal(t, 7, cfg.History.RetentionDays)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.True(t, cfg.UI.EnglishNames)

	// Unset fields get defaults.
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"default_model":"gemini-2.0-flash","api":{"key":"jk"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.DefaultModel)
	assert.Equal(t, "jk", cfg.API.Key)
}

func TestLoad_FixesLoosePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default_model = "gemini-2.5-flash"`), 0644))

	cfg := Default()
	require.NoError(t, LoadTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LINGUALENS_API_KEY", "env-key")
	t.Setenv("LINGUALENS_MODEL", "gemini-2.5-pro")
	t.Setenv("LINGUALENS_BASE_URL", "http://localhost:9999")
	t.Setenv("LINGUALENS_LOCALE", "ja-JP")
	t.Setenv("LINGUALENS_RETENTION_DAYS", "14")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "env-key", cfg.API.Key)
	assert.Equal(t, "gemini-2.5-pro", cfg.DefaultModel)
	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
	assert.Equal(t, "ja-JP", cfg.Locale)
	assert.Equal(t, 14, cfg.History.RetentionDays)
}

func TestEnvOverrides_BadRetentionIgnored(t *testing.T) {
	t.Setenv("LINGUALENS_RETENTION_DAYS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 30, cfg.History.RetentionDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"unknown model", func(c *Config) { c.DefaultModel = "gpt-4" }, true},
		{"bad base url", func(c *Config) { c.API.BaseURL = "::notaurl" }, true},
		{"good base url", func(c *Config) { c.API.BaseURL = "http://127.0.0.1:8787" }, false},
		{"zero retention", func(c *Config) { c.History.RetentionDays = 0 }, true},
		{"huge retention", func(c *Config) { c.History.RetentionDays = 99999 }, true},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, true},
		{"unknown theme", func(c *Config) { c.UI.Theme = "solarized" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveTOML_RoundTripAndPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.Key = "secret"
	cfg.Locale = "zh-CN"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "config carries the API key")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.API.Key)
	assert.Equal(t, "zh-CN", loaded.Locale)
}

func TestStoreDir_Override(t *testing.T) {
	cfg := Default()
	cfg.History.StoreDir = "/tmp/custom-store"
	dir, err := cfg.StoreDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-store", dir)
}
