package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLalal()
	c.normalizeDemucs()
	c.normalizeScanner()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StemsDir) == "" {
		c.Paths.StemsDir = defaultStemsDir
	}
	if c.Paths.StemsDir, err = expandPath(c.Paths.StemsDir); err != nil {
		return fmt.Errorf("paths.stems_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.StemCache.Dir) == "" {
		c.StemCache.Dir = c.Paths.CacheDir
	}
	if c.StemCache.Dir, err = expandPath(c.StemCache.Dir); err != nil {
		return fmt.Errorf("stem_cache.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLalal() {
	c.Lalal.APIKey = strings.TrimSpace(c.Lalal.APIKey)
	if c.Lalal.APIKey == "" {
		if value, ok := os.LookupEnv("LALAL_API_KEY"); ok {
			c.Lalal.APIKey = strings.TrimSpace(value)
		}
	}
	c.Lalal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Lalal.BaseURL), "/")
	if c.Lalal.BaseURL == "" {
		c.Lalal.BaseURL = defaultLalalBaseURL
	}
}

func (c *Config) normalizeDemucs() {
	c.Demucs.Binary = strings.TrimSpace(c.Demucs.Binary)
	if c.Demucs.Binary == "" {
		c.Demucs.Binary = defaultDemucsBinary
	}
	c.Demucs.Model = strings.TrimSpace(c.Demucs.Model)
	if c.Demucs.Model == "" {
		c.Demucs.Model = defaultDemucsModel
	}
	c.Demucs.Device = strings.ToLower(strings.TrimSpace(c.Demucs.Device))
}

func (c *Config) normalizeScanner() {
	crates := make([]string, 0, len(c.Scanner.PriorityCrates))
	for _, crate := range c.Scanner.PriorityCrates {
		trimmed := strings.TrimSpace(crate)
		if trimmed != "" {
			crates = append(crates, trimmed)
		}
	}
	c.Scanner.PriorityCrates = crates
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
