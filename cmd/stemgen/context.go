package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stemgen/internal/batch"
	"stemgen/internal/config"
	"stemgen/internal/engine"
	"stemgen/internal/engine/demucs"
	"stemgen/internal/engine/lalal"
	"stemgen/internal/ledger"
	"stemgen/internal/logging"
	"stemgen/internal/outputs"
	"stemgen/internal/pipeline"
	"stemgen/internal/scanner"
	"stemgen/internal/stemcache"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// session bundles everything a processing command needs; Close releases
// the ledger lock.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *ledger.Store
	cache     *stemcache.Manager
	layout    *outputs.Layout
	scanner   *scanner.Scanner
	pipeline  *pipeline.Pipeline
	processor *batch.Processor
}

func (s *session) Close() error {
	return s.store.Close()
}

// openSession assembles the full stack for commands that process audio.
// libraryRoot seeds the scanner; commands that only touch single files can
// pass the file's directory.
func (c *commandContext) openSession(ctx context.Context, libraryRoot string) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	store, err := c.openLedger(ctx)
	if err != nil {
		return nil, err
	}

	layout, err := outputs.NewLayout(cfg.Paths.StemsDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	cache := stemcache.NewManager(cfg.StemCache.Dir, cfg.StemCache.Enabled, logger)
	scan := scanner.New(libraryRoot, cfg.Scanner.Recursive, cfg.Scanner.PriorityCrates, logger)
	local, remote := buildEngines(cfg, logger)
	pipe := pipeline.New(cfg, logger, store, cache, layout, scan, local, remote)

	return &session{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		cache:     cache,
		layout:    layout,
		scanner:   scan,
		pipeline:  pipe,
		processor: batch.New(pipe, scan, layout, logger),
	}, nil
}

func (c *commandContext) openLedger(ctx context.Context) (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Paths.DataDir, "ledger.db")
	lockWait := time.Duration(cfg.Ledger.LockWaitSeconds) * time.Second
	return ledger.Open(ctx, path, lockWait)
}

func buildEngines(cfg *config.Config, logger *slog.Logger) (engine.Engine, engine.Engine) {
	local := demucs.New(
		demucs.WithBinary(cfg.Demucs.Binary),
		demucs.WithModel(cfg.Demucs.Model),
		demucs.WithDevice(cfg.Demucs.Device),
		demucs.WithAcceleratorGiB(float64(cfg.Demucs.AcceleratorGiB)),
		demucs.WithTimeout(time.Duration(cfg.Demucs.RunTimeoutSeconds)*time.Second),
		demucs.WithLogger(logger),
	)
	remote := lalal.New(cfg.Lalal.APIKey, logger,
		lalal.WithBaseURL(cfg.Lalal.BaseURL),
		lalal.WithPollInterval(time.Duration(cfg.Lalal.PollIntervalSeconds)*time.Second),
		lalal.WithPollTimeout(time.Duration(cfg.Lalal.PollTimeoutSeconds)*time.Second),
		lalal.WithUploadTimeout(time.Duration(cfg.Lalal.UploadTimeoutSeconds)*time.Second),
	)
	return local, remote
}
