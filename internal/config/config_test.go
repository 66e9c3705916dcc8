// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/haven/pkg/errutil"
)

func testFlagSet() *pflag.FlagSet {
	defaults := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("http_addr", defaults.HTTPAddr, "")
	fs.String("metrics_addr", defaults.MetricsAddr, "")
	fs.String("database_url", "", "")
	fs.String("log_format", defaults.LogFormat, "")
	fs.Duration("stream.keepalive_interval", defaults.Stream.KeepaliveInterval, "")
	fs.Duration("stream.cycle_after", defaults.Stream.CycleAfter, "")
	fs.Int("stream.recent_capacity", defaults.Stream.RecentCapacity, "")
	fs.Int("stream.buffer_size", defaults.Stream.BufferSize, "")
	fs.Int("list.max_limit", defaults.List.MaxLimit, "")
	fs.Duration("list.timeout", defaults.List.Timeout, "")
	return fs
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haven.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, 55*time.Second, cfg.Stream.CycleAfter)
	assert.Equal(t, 50, cfg.Stream.RecentCapacity)
	assert.Equal(t, 100, cfg.List.MaxLimit)
	assert.Equal(t, 8*time.Second, cfg.List.Timeout)

	// The cycle deadline must beat the infrastructure's 60s idle cutoff,
	// with keepalives frequent enough to land in between.
	assert.Less(t, cfg.Stream.CycleAfter, 60*time.Second)
	assert.Less(t, cfg.Stream.KeepaliveInterval, cfg.Stream.CycleAfter)
}

func TestLoad_NoFileNoFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
http_addr: ":9999"
database_url: "postgres://file/db"
stream:
  cycle_after: 40s
  recent_capacity: 25
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, 40*time.Second, cfg.Stream.CycleAfter)
	assert.Equal(t, 25, cfg.Stream.RecentCapacity)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
http_addr: ":9999"
log_format: text
`)

	fs := testFlagSet()
	require.NoError(t, fs.Set("http_addr", ":7777"))
	require.NoError(t, fs.Set("stream.cycle_after", "45s"))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.HTTPAddr, "explicit flag beats the file")
	assert.Equal(t, "text", cfg.LogFormat, "file value survives unset flags")
	assert.Equal(t, 45*time.Second, cfg.Stream.CycleAfter)
}

func TestLoad_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
}

func TestLoad_FileBeatsEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	path := writeConfigFile(t, `database_url: "postgres://file/db"`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.DatabaseURL = "postgres://localhost/haven"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing http_addr", func(c *Config) { c.HTTPAddr = "" }},
		{"missing database_url", func(c *Config) { c.DatabaseURL = "" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero keepalive", func(c *Config) { c.Stream.KeepaliveInterval = 0 }},
		{"zero cycle", func(c *Config) { c.Stream.CycleAfter = 0 }},
		{"zero recent capacity", func(c *Config) { c.Stream.RecentCapacity = 0 }},
		{"zero buffer size", func(c *Config) { c.Stream.BufferSize = 0 }},
		{"zero list limit", func(c *Config) { c.List.MaxLimit = 0 }},
		{"zero list timeout", func(c *Config) { c.List.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}
