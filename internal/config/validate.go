package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDemucs(); err != nil {
		return err
	}
	if err := c.validateLalal(); err != nil {
		return err
	}
	if err := c.validateStemCache(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.LocalSizeThresholdMB <= 0 {
		return errors.New("pipeline.local_size_threshold_mb must be positive")
	}
	return nil
}

func (c *Config) validateDemucs() error {
	if c.Demucs.RunTimeoutSeconds <= 0 {
		return errors.New("demucs.run_timeout_seconds must be positive")
	}
	if c.Demucs.AcceleratorGiB < 0 {
		return errors.New("demucs.accelerator_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateLalal() error {
	if c.Lalal.PollIntervalSeconds <= 0 {
		return errors.New("lalal.poll_interval_seconds must be positive")
	}
	if c.Lalal.PollTimeoutSeconds <= 0 {
		return errors.New("lalal.poll_timeout_seconds must be positive")
	}
	if c.Lalal.PollTimeoutSeconds <= c.Lalal.PollIntervalSeconds {
		return errors.New("lalal.poll_timeout_seconds must be greater than lalal.poll_interval_seconds")
	}
	if c.Lalal.UploadTimeoutSeconds <= 0 {
		return errors.New("lalal.upload_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStemCache() error {
	if c.StemCache.Enabled && c.StemCache.Dir == "" {
		return errors.New("stem_cache.dir must be set when stem_cache.enabled is true")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if c.Ledger.LockWaitSeconds <= 0 {
		return errors.New("ledger.lock_wait_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
