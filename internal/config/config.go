package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StemsDir string `toml:"stems_dir"`
	CacheDir string `toml:"cache_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
}

// Pipeline contains routing and fallback settings.
type Pipeline struct {
	// LocalSizeThresholdMB is the file size below which auto engine
	// selection prefers the local engine.
	LocalSizeThresholdMB int  `toml:"local_size_threshold_mb"`
	QualityFallback      bool `toml:"quality_fallback"`
}

// Demucs contains configuration for the local separation engine.
type Demucs struct {
	Binary            string `toml:"binary"`
	Model             string `toml:"model"`
	Device            string `toml:"device"`
	AcceleratorGiB    int    `toml:"accelerator_gib"`
	RunTimeoutSeconds int    `toml:"run_timeout_seconds"`
}

// Lalal contains configuration for the LALAL.AI cloud engine.
type Lalal struct {
	APIKey               string `toml:"api_key"`
	BaseURL              string `toml:"base_url"`
	PollIntervalSeconds  int    `toml:"poll_interval_seconds"`
	PollTimeoutSeconds   int    `toml:"poll_timeout_seconds"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
}

// StemCache contains configuration for the separation result cache.
type StemCache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Scanner contains library scanning settings.
type Scanner struct {
	PriorityCrates []string `toml:"priority_crates"`
	Recursive      bool     `toml:"recursive"`
}

// Ledger contains job ledger settings.
type Ledger struct {
	// LockWaitSeconds bounds how long a writer waits for the ledger lock.
	LockWaitSeconds int `toml:"lock_wait_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for stemgen.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Demucs    Demucs    `toml:"demucs"`
	Lalal     Lalal     `toml:"lalal"`
	StemCache StemCache `toml:"stem_cache"`
	Scanner   Scanner   `toml:"scanner"`
	Ledger    Ledger    `toml:"ledger"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stemgen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("stemgen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories stemgen writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StemsDir, c.Paths.DataDir, c.Paths.LogDir}
	if c.StemCache.Enabled {
		dirs = append(dirs, c.StemCache.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	return filepath.Abs(trimmed)
}
