package lalal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
)

// EngineName identifies this engine in jobs, sidecars, and cache keys.
const EngineName = "lalal"

var supportedExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".aac":  {},
	".m4a":  {},
	".aiff": {},
}

// Engine adapts the LALAL.AI client to the separation engine contract.
type Engine struct {
	client *Client
	logger *slog.Logger
}

// New constructs a LALAL.AI engine. Options are forwarded to the
// underlying API client.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		client: NewClient(apiKey, opts...),
		logger: logging.NewComponentLogger(logger, EngineName),
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return EngineName }

// Available reports whether an API key is configured.
func (e *Engine) Available(ctx context.Context) bool {
	return e.client.apiKey != ""
}

// RecommendedParallelism allows a couple of concurrent remote tasks.
func (e *Engine) RecommendedParallelism() int { return 2 }

// Separate uploads the source, waits for the split task to settle, and
// downloads the four stems into outputDir. Validation problems and task
// failures are reported through Result; a task that never settles within
// the poll window returns engine.ErrRemoteTimeout, which callers record as
// a failed attempt.
func (e *Engine) Separate(ctx context.Context, inputPath, outputDir string) (engine.Result, error) {
	started := time.Now()

	if msg := validateSource(inputPath); msg != "" {
		return engine.Failure(EngineName, time.Since(started), msg), nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return engine.Result{}, fmt.Errorf("lalal: create output dir: %w", err)
	}

	e.logger.InfoContext(ctx, "uploading source", logging.String("source_file", inputPath))
	fileID, err := e.client.Upload(ctx, inputPath)
	if err != nil {
		return engine.Failure(EngineName, time.Since(started), err.Error()), nil
	}
	if err := e.client.Split(ctx, fileID, engine.StemNames); err != nil {
		return engine.Failure(EngineName, time.Since(started), err.Error()), nil
	}

	task, err := e.waitForTask(ctx, fileID)
	if err != nil {
		return engine.Result{}, err
	}
	if task.State != "success" {
		return engine.Failure(EngineName, time.Since(started),
			fmt.Sprintf("split task %s: %s", task.State, task.Error)), nil
	}

	stems := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		trackURL, ok := task.StemTracks[name]
		if !ok || trackURL == "" {
			return engine.Failure(EngineName, time.Since(started),
				fmt.Sprintf("split result has no %s track", name)), nil
		}
		dst := filepath.Join(outputDir, name+".wav")
		if err := e.client.Download(ctx, trackURL, dst); err != nil {
			return engine.Failure(EngineName, time.Since(started), err.Error()), nil
		}
		stems[name] = dst
	}

	elapsed := time.Since(started)
	e.logger.InfoContext(ctx, "separation complete",
		logging.String("source_file", inputPath),
		logging.Duration("elapsed", elapsed),
	)
	return engine.Result{
		Success:    true,
		StemPaths:  stems,
		Elapsed:    elapsed,
		EngineName: EngineName,
	}, nil
}

// waitForTask polls until the task settles or the poll window closes.
func (e *Engine) waitForTask(ctx context.Context, fileID string) (TaskStatus, error) {
	deadline := time.Now().Add(e.client.pollTimeout)
	ticker := time.NewTicker(e.client.pollInterval)
	defer ticker.Stop()

	for {
		task, err := e.client.Check(ctx, fileID)
		if err != nil {
			return TaskStatus{}, err
		}
		if task.Settled() {
			return task, nil
		}
		if time.Now().After(deadline) {
			return TaskStatus{}, fmt.Errorf("%w: task %s still %q after %s",
				engine.ErrRemoteTimeout, fileID, task.State, e.client.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return TaskStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func validateSource(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("source not readable: %v", err)
	}
	if info.Size() > MaxUploadBytes {
		return fmt.Sprintf("source is %d bytes, over the %d byte upload limit", info.Size(), MaxUploadBytes)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedExtensions[ext]; !ok {
		return fmt.Sprintf("unsupported source format %q", ext)
	}
	return ""
}

var _ engine.Engine = (*Engine)(nil)
