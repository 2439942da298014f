// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the client configuration loaded from environment variables.
type Config struct {
	APIURL      string `env:"COSMIC_API_URL" envDefault:"http://localhost:8000"`
	StatePath   string `env:"COSMIC_STATE_PATH" envDefault:"./data/cosmicdeploy.db"`
	Env         string `env:"COSMIC_ENV" envDefault:"development"`
	LogLevel    string `env:"COSMIC_LOG_LEVEL" envDefault:"info"`
	HTTPTimeout int    `env:"COSMIC_HTTP_TIMEOUT" envDefault:"30"` // Request timeout in seconds

	// Realtime configuration
	ReconnectEvery int `env:"COSMIC_WS_RECONNECT_EVERY" envDefault:"5"` // Minimum seconds between reconnect attempts
}

// IsDevelopment returns true if the client is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RequestTimeout returns the HTTP request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// ReconnectInterval returns the minimum delay between websocket reconnect attempts.
func (c Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectEvery) * time.Second
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("COSMIC_API_URL %q is not a valid absolute URL", cfg.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("COSMIC_API_URL scheme must be http or https, got %q", u.Scheme)
	}

	// Trailing slashes break naive path concatenation in the API client
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("COSMIC_HTTP_TIMEOUT must be positive, got %d", cfg.HTTPTimeout)
	}

	return cfg, nil
}
