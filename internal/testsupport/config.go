package testsupport

import (
	"path/filepath"
	"testing"

	"stemgen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StemsDir = filepath.Join(base, "stems")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.StemCache.Dir = cfg.Paths.CacheDir
	cfg.Ledger.LockWaitSeconds = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLalalKey sets the remote engine API key on the test config.
func WithLalalKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Lalal.APIKey = key
	}
}

// WithPriorityCrates sets the scanner's priority crate names.
func WithPriorityCrates(crates ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scanner.PriorityCrates = crates
	}
}
