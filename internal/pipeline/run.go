package pipeline

import (
	"context"
	"errors"
	"time"

	"stemgen/internal/engine"
	"stemgen/internal/ledger"
	"stemgen/internal/logging"
	"stemgen/internal/quality"
	"stemgen/internal/stemcache"
)

// phase enumerates the fallback state machine. Transitions only move
// forward: attempt, evaluate, optional fallback, finalize.
type phase int

const (
	phaseAttempt phase = iota
	phaseEvaluate
	phaseFallback
	phaseFinalize
	phaseDone
)

// attempt is the outcome of running one engine once.
type attempt struct {
	job    *ledger.Job
	result engine.Result
	scores map[string]float64
}

// run carries the state of a single Separate call through the machine.
type run struct {
	pipeline    *Pipeline
	sourcePath  string
	contentHash string
	outputDir   string
	track       *ledger.Track
	primary     engine.Engine
	opts        Options

	phase    phase
	first    attempt
	second   attempt
	final    *attempt
	fellBack bool
}

// execute drives the machine to completion and assembles the outcome.
func (r *run) execute(ctx context.Context) (*Outcome, error) {
	r.final = &r.first
	for r.phase != phaseDone {
		var err error
		switch r.phase {
		case phaseAttempt:
			r.first, err = r.runEngine(ctx, r.primary)
			r.phase = phaseEvaluate
		case phaseEvaluate:
			r.phase = phaseFinalize
			if r.shouldFallBack(ctx) {
				r.phase = phaseFallback
			}
		case phaseFallback:
			err = r.runFallback(ctx)
			r.phase = phaseFinalize
		case phaseFinalize:
			err = r.finalize(ctx)
			r.phase = phaseDone
		}
		if err != nil {
			return nil, err
		}
	}
	return &Outcome{
		Track:     r.track,
		OutputDir: r.outputDir,
		Result:    r.final.result,
		Scores:    r.final.scores,
		FellBack:  r.fellBack,
	}, nil
}

// runEngine executes one separation attempt under ledger bookkeeping: a job
// moves pending to processing to a terminal status, scores are persisted on
// success, and the engine's failure report ends up in the job row.
func (r *run) runEngine(ctx context.Context, eng engine.Engine) (attempt, error) {
	p := r.pipeline
	job, err := p.store.CreateJob(ctx, r.track.ID, eng.Name())
	if err != nil {
		return attempt{}, err
	}
	if err := p.store.UpdateJobStatus(ctx, job.ID, ledger.StatusProcessing, "", "", 0); err != nil {
		return attempt{}, err
	}

	started := time.Now()
	result, err := eng.Separate(ctx, r.sourcePath, r.outputDir)
	if err != nil {
		// A remote task that never settled is an executed failure; anything
		// else means the run could not even be set up.
		if !errors.Is(err, engine.ErrRemoteTimeout) {
			_ = p.store.UpdateJobStatus(ctx, job.ID, ledger.StatusFailed, err.Error(), "", time.Since(started))
			return attempt{}, err
		}
		result = engine.Failure(eng.Name(), time.Since(started), err.Error())
	}

	if !result.Success {
		if err := p.store.UpdateJobStatus(ctx, job.ID, ledger.StatusFailed, result.ErrMessage, "", result.Elapsed); err != nil {
			return attempt{}, err
		}
		p.logger.WarnContext(ctx, "separation attempt failed",
			logging.String("source_file", r.sourcePath),
			logging.String("engine", eng.Name()),
			logging.String("detail", result.ErrMessage),
		)
		return attempt{job: job, result: result}, nil
	}

	scores := quality.AnalyzeDir(r.outputDir, r.sourcePath)
	for name, score := range scores {
		if err := p.store.AddQualityScore(ctx, job.ID, name, score); err != nil {
			return attempt{}, err
		}
	}
	if err := p.store.UpdateJobStatus(ctx, job.ID, ledger.StatusCompleted, "", r.outputDir, result.Elapsed); err != nil {
		return attempt{}, err
	}
	return attempt{job: job, result: result, scores: scores}, nil
}

// shouldFallBack decides whether to take the single fallback hop: enabled,
// the first attempt succeeded but a stem breached its threshold, and a
// distinct engine is usable.
func (r *run) shouldFallBack(ctx context.Context) bool {
	if !r.opts.QualityFallback || !r.first.result.Success {
		return false
	}
	breached := false
	for name, score := range r.first.scores {
		if quality.NeedsReprocessing(name, score) {
			breached = true
			break
		}
	}
	if !breached {
		return false
	}
	return r.pipeline.fallbackEngine(ctx, r.primary) != nil
}

// runFallback reprocesses on the alternate engine into the same output
// directory. A successful hop supersedes the first result; a failed hop is
// recorded on its own job and the first result stands.
func (r *run) runFallback(ctx context.Context) error {
	p := r.pipeline
	alternate := p.fallbackEngine(ctx, r.primary)
	if alternate == nil {
		return nil
	}
	p.logger.InfoContext(ctx, "quality below threshold, retrying on alternate engine",
		logging.String("source_file", r.sourcePath),
		logging.String("engine", alternate.Name()),
	)

	second, err := r.runEngine(ctx, alternate)
	if err != nil {
		return err
	}
	r.second = second
	if second.result.Success {
		r.final = &r.second
		r.fellBack = true
	}
	return nil
}

// finalize persists the sidecar and feeds the cache on success.
func (r *run) finalize(ctx context.Context) error {
	p := r.pipeline
	outcome := &Outcome{
		Track:     r.track,
		OutputDir: r.outputDir,
		Result:    r.final.result,
		Scores:    r.final.scores,
	}
	if err := p.writeSidecar(r.sourcePath, outcome); err != nil {
		return err
	}
	if !r.final.result.Success {
		return nil
	}
	if err := p.cache.Put(ctx, stemcache.Metadata{
		ContentHash:    r.contentHash,
		Engine:         r.final.result.EngineName,
		SourceFile:     r.sourcePath,
		ElapsedSeconds: r.final.result.Elapsed.Seconds(),
		QualityScores:  r.final.scores,
		CachedAt:       time.Now().UTC(),
	}, r.final.result.StemPaths); err != nil {
		p.logger.WarnContext(ctx, "failed to store cache entry",
			logging.String("source_file", r.sourcePath),
			logging.Error(err),
		)
	}
	return nil
}
