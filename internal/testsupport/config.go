// Package testsupport provides shared helpers for package tests: disposable
// configurations, stores, and fixture records.
package testsupport

import (
	"path/filepath"
	"testing"

	"nexusops/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The store stays in memory and all delays are zeroed so tests run fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Gemini.APIKey = "test"
	cfg.Scout.StepDelayMS = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithoutAPIKey clears the API key so capability checks report unavailable.
func WithoutAPIKey() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Gemini.APIKey = ""
	}
}

// WithGeminiBaseURL points the capability client at a test server.
func WithGeminiBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Gemini.BaseURL = url
	}
}
