// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"cleanarr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Jellyfin.URL = "http://127.0.0.1:8096"
	cfg.Jellyfin.APIKey = "test"
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.History.Path = filepath.Join(base, "history.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithJellyfin points the test config at a specific server, typically an
// httptest instance.
func WithJellyfin(url, apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Jellyfin.URL = url
		cfg.Jellyfin.APIKey = apiKey
	}
}

// WithHistoryDisabled turns off audit recording on the test config.
func WithHistoryDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.History.Enabled = false
	}
}
