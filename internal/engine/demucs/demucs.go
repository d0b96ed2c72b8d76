package demucs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
)

var commandContext = exec.CommandContext

// EngineName identifies this engine in jobs, sidecars, and cache keys.
const EngineName = "demucs"

// Parallelism tiers by accelerator memory. More VRAM lets demucs batch
// more shifts at once.
const (
	vramHighGiB = 16.0
	vramMidGiB  = 12.0
)

// Option configures the engine.
type Option func(*Engine)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(e *Engine) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithModel selects the separation model.
func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDevice pins demucs to a compute device (e.g. "cuda", "cpu").
func WithDevice(device string) Option {
	return func(e *Engine) { e.device = device }
}

// WithAcceleratorGiB reports available accelerator memory, which sizes the
// recommended parallelism.
func WithAcceleratorGiB(gib float64) Option {
	return func(e *Engine) { e.acceleratorGiB = gib }
}

// WithTimeout bounds a single separation run. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.timeout = timeout }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine wraps the demucs command-line separator.
type Engine struct {
	binary         string
	model          string
	device         string
	acceleratorGiB float64
	timeout        time.Duration
	logger         *slog.Logger
}

// New constructs a demucs engine using defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		binary: "demucs",
		model:  "htdemucs",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, EngineName)
	return e
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return EngineName }

// Available reports whether the demucs binary is on PATH.
func (e *Engine) Available(ctx context.Context) bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// RecommendedParallelism sizes concurrent runs by accelerator memory.
func (e *Engine) RecommendedParallelism() int {
	switch {
	case e.acceleratorGiB >= vramHighGiB:
		return 4
	case e.acceleratorGiB >= vramMidGiB:
		return 2
	default:
		return 1
	}
}

// Separate runs demucs against inputPath and moves the four stems into
// outputDir under their canonical names. A run that executes but fails
// (nonzero exit, missing stems) is reported through Result, not an error;
// errors are reserved for problems setting the run up.
func (e *Engine) Separate(ctx context.Context, inputPath, outputDir string) (engine.Result, error) {
	if inputPath == "" {
		return engine.Result{}, errors.New("demucs: input path required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return engine.Result{}, fmt.Errorf("demucs: create output dir: %w", err)
	}

	scratch := filepath.Join(outputDir, ".demucs-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return engine.Result{}, fmt.Errorf("demucs: create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{"-n", e.model, "-o", scratch}
	if e.device != "" {
		args = append(args, "-d", e.device)
	}
	args = append(args, inputPath)

	started := time.Now()
	e.logger.InfoContext(ctx, "starting separation",
		logging.String("source_file", inputPath),
		logging.String("model", e.model),
	)

	var output bytes.Buffer
	cmd := commandContext(runCtx, e.binary, args...) //nolint:gosec
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		elapsed := time.Since(started)
		message := fmt.Sprintf("demucs exited: %v: %s", err, tail(output.String()))
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			message = fmt.Sprintf("demucs timed out after %s", e.timeout)
		}
		e.logger.WarnContext(ctx, "separation failed",
			logging.String("source_file", inputPath),
			logging.String("detail", message),
		)
		return engine.Failure(EngineName, elapsed, message), nil
	}

	stems, err := e.collectStems(scratch, inputPath, outputDir)
	if err != nil {
		return engine.Failure(EngineName, time.Since(started), err.Error()), nil
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

// collectStems moves demucs output (scratch/<model>/<track>/<stem>.wav) into
// outputDir under canonical names.
func (e *Engine) collectStems(scratch, inputPath, outputDir string) (map[string]string, error) {
	base := filepath.Base(inputPath)
	track := strings.TrimSuffix(base, filepath.Ext(base))
	sourceDir := filepath.Join(scratch, e.model, track)

	stems := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		src := filepath.Join(sourceDir, name+".wav")
		if _, err := os.Stat(src); err != nil {
			return nil, fmt.Errorf("demucs produced no %s stem", name)
		}
		dst := filepath.Join(outputDir, name+".wav")
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("move %s stem: %v", name, err)
		}
		stems[name] = dst
	}
	return stems, nil
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	const limit = 400
	if len(output) > limit {
		output = "..." + output[len(output)-limit:]
	}
	return output
}

var _ engine.Engine = (*Engine)(nil)
