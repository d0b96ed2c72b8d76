package engine

import (
	"context"
	"time"
)

// StemNames lists the four canonical stems every engine produces, in the
// order they are conventionally reported.
var StemNames = []string{"vocals", "drums", "bass", "other"}

// StemCount is the number of stems a complete separation produces.
const StemCount = 4

// CachedEngineName is the engine identifier reported when a result was
// served without running any engine.
const CachedEngineName = "cached"

// Result describes the outcome of one separation attempt.
type Result struct {
	Success    bool
	StemPaths  map[string]string
	Elapsed    time.Duration
	EngineName string
	ErrMessage string
}

// Complete reports whether the result carries all four canonical stems.
func (r Result) Complete() bool {
	if len(r.StemPaths) != StemCount {
		return false
	}
	for _, name := range StemNames {
		if r.StemPaths[name] == "" {
			return false
		}
	}
	return true
}

// Engine is the capability contract for a stem separation backend.
type Engine interface {
	// Name returns the unique engine identifier (also the cache key suffix).
	Name() string
	// Available reports whether the engine can currently be used.
	Available(ctx context.Context) bool
	// Separate produces the four canonical stems in outputDir. An error is
	// returned only for contract violations; execution failures are reported
	// through Result.Success and Result.ErrMessage so callers can persist
	// the failure against a job.
	Separate(ctx context.Context, inputPath, outputDir string) (Result, error)
	// RecommendedParallelism hints how many files the engine can usefully
	// work on at once. The batch scheduler stays sequential regardless; the
	// hint bounds parallelism internal to a single call.
	RecommendedParallelism() int
}

// Failure builds an unsuccessful Result for the named engine.
func Failure(name string, elapsed time.Duration, message string) Result {
	return Result{
		Success:    false,
		StemPaths:  map[string]string{},
		Elapsed:    elapsed,
		EngineName: name,
		ErrMessage: message,
	}
}
