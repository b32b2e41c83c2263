// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8473, cfg.Server.Port)
	assert.Equal(t, 4*time.Hour, cfg.Groups.Lifetime)
	assert.Equal(t, 100, cfg.Groups.DefaultRadius)
	assert.InDelta(t, 500, cfg.Groups.MaxDistance, 0.001)
	assert.InDelta(t, 40, cfg.Spatial.BufferMeters, 0.001)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, "operator", cfg.Security.OperatorRole)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9090
groups:
  lifetime: 2h
  default_radius: 50
spatial:
  buffer_meters: 25
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Groups.Lifetime)
	assert.Equal(t, 50, cfg.Groups.DefaultRadius)
	assert.InDelta(t, 25, cfg.Spatial.BufferMeters, 0.001)
	// untouched keys keep defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HUDDLE_SERVER__PORT", "7777")
	t.Setenv("HUDDLE_GROUPS__MAX_DISTANCE", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.InDelta(t, 250, cfg.Groups.MaxDistance, 0.001)
}

func TestEnvKeyMapper(t *testing.T) {
	assert.Equal(t, "server.port", envKeyMapper("HUDDLE_SERVER__PORT"))
	assert.Equal(t, "groups.max_distance", envKeyMapper("HUDDLE_GROUPS__MAX_DISTANCE"))
	assert.Equal(t, "security.jwt_secret", envKeyMapper("HUDDLE_SECURITY__JWT_SECRET"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty database url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"zero lifetime", func(c *Config) { c.Groups.Lifetime = 0 }, "groups.lifetime"},
		{"negative buffer", func(c *Config) { c.Spatial.BufferMeters = -1 }, "spatial.buffer_meters"},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, "jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
}
