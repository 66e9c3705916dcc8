// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package config loads server configuration from defaults, an optional
// YAML file, and command-line flags, in that order of precedence.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds all server configuration.
type Config struct {
	HTTPAddr    string `koanf:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr"` // empty disables the observability server
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`

	Stream StreamConfig `koanf:"stream"`
	List   ListConfig   `koanf:"list"`
}

// StreamConfig tunes the streaming endpoint lifecycle.
type StreamConfig struct {
	// KeepaliveInterval is how often an idle connection receives a ping
	// comment so intermediary proxies don't cut it.
	KeepaliveInterval time.Duration `koanf:"keepalive_interval"`
	// CycleAfter is when the server closes a connection cleanly so the
	// client reconnects before upstream infrastructure kills it at 60s.
	CycleAfter time.Duration `koanf:"cycle_after"`
	// RecentCapacity bounds the replay buffer.
	RecentCapacity int `koanf:"recent_capacity"`
	// BufferSize bounds the per-connection event queue.
	BufferSize int `koanf:"buffer_size"`
}

// ListConfig tunes message list reads.
type ListConfig struct {
	MaxLimit int           `koanf:"max_limit"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		Stream: StreamConfig{
			KeepaliveInterval: 30 * time.Second,
			CycleAfter:        55 * time.Second,
			RecentCapacity:    50,
			BufferSize:        64,
		},
		List: ListConfig{
			MaxLimit: 100,
			Timeout:  8 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then any flags set on flags. DATABASE_URL from the
// environment fills the database URL when nothing else set it.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required (flag, config file, or DATABASE_URL)")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Stream.KeepaliveInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("stream.keepalive_interval must be positive")
	}
	if c.Stream.CycleAfter <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("stream.cycle_after must be positive")
	}
	if c.Stream.RecentCapacity <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("stream.recent_capacity must be positive")
	}
	if c.Stream.BufferSize <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("stream.buffer_size must be positive")
	}
	if c.List.MaxLimit <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("list.max_limit must be positive")
	}
	if c.List.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("list.timeout must be positive")
	}
	return nil
}
