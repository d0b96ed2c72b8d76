package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"stemgen/internal/engine"
)

// StubEngine is a configurable in-memory engine for pipeline and batch
// tests. It writes tiny WAV stems on success and counts invocations.
type StubEngine struct {
	EngineName  string
	Unavailable bool
	FailWith    string
	Err         error
	Parallelism int

	// StemSamples, when set, is written into every stem so quality scores
	// can be steered; otherwise a constant tone is used.
	StemSamples []float64
	SampleRate  int

	calls atomic.Int64
}

// Name returns the stub's configured engine name.
func (s *StubEngine) Name() string { return s.EngineName }

// Available reports the inverse of Unavailable.
func (s *StubEngine) Available(ctx context.Context) bool { return !s.Unavailable }

// RecommendedParallelism returns the configured hint, defaulting to 1.
func (s *StubEngine) RecommendedParallelism() int {
	if s.Parallelism > 0 {
		return s.Parallelism
	}
	return 1
}

// Calls reports how many times Separate ran.
func (s *StubEngine) Calls() int64 { return s.calls.Load() }

// Separate writes the four canonical stems, or reports the configured
// failure.
func (s *StubEngine) Separate(ctx context.Context, inputPath, outputDir string) (engine.Result, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return engine.Result{}, s.Err
	}
	if s.FailWith != "" {
		return engine.Failure(s.EngineName, time.Millisecond, s.FailWith), nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return engine.Result{}, err
	}

	samples := s.StemSamples
	if samples == nil {
		samples = SineWave(440, 8000, 800)
	}
	rate := s.SampleRate
	if rate == 0 {
		rate = 8000
	}

	stems := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		path := filepath.Join(outputDir, name+".wav")
		if err := writeWAVFile(path, samples, rate); err != nil {
			return engine.Result{}, err
		}
		stems[name] = path
	}
	return engine.Result{
		Success:    true,
		StemPaths:  stems,
		Elapsed:    time.Millisecond,
		EngineName: s.EngineName,
	}, nil
}

var _ engine.Engine = (*StubEngine)(nil)
