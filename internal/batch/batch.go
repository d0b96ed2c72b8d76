package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
	"stemgen/internal/outputs"
	"stemgen/internal/pipeline"
	"stemgen/internal/scanner"
)

// Options controls one batch run.
type Options struct {
	// Engine is forwarded to the pipeline for every track.
	Engine string
	// Limit truncates the scan; non-positive means no limit.
	Limit int
	// SkipIfExisting skips tracks whose four stems are already on disk.
	SkipIfExisting bool
	// QualityFallback enables the pipeline's one-hop quality retry.
	QualityFallback bool
	// Progress, when set, is invoked after every track with a snapshot.
	Progress func(Progress)
}

// Progress is the counter snapshot handed to the progress callback.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Current   scanner.Track
}

// TrackError pairs a failed track with its failure message.
type TrackError struct {
	Track   scanner.Track
	Message string
}

// Report summarizes a finished batch run.
type Report struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Outcomes  []Outcome
	Errors    []TrackError
}

// Outcome records what happened to one track.
type Outcome struct {
	Track      scanner.Track
	EngineName string
	Success    bool
	FellBack   bool
	OutputDir  string
}

// Processor schedules tracks through the pipeline one at a time.
type Processor struct {
	pipe   *pipeline.Pipeline
	scan   *scanner.Scanner
	layout *outputs.Layout
	logger *slog.Logger
}

// New builds a batch processor.
func New(pipe *pipeline.Pipeline, scan *scanner.Scanner, layout *outputs.Layout, logger *slog.Logger) *Processor {
	return &Processor{
		pipe:   pipe,
		scan:   scan,
		layout: layout,
		logger: logging.NewComponentLogger(logger, "batch"),
	}
}

// ProcessDirectory scans the library and processes every discovered track
// in priority order. Only a missing or unreadable scan root aborts the run.
func (p *Processor) ProcessDirectory(ctx context.Context, opts Options) (Report, error) {
	tracks, err := p.scan.Prioritized(ctx, opts.Limit)
	if err != nil {
		return Report{}, err
	}
	return p.ProcessTracks(ctx, tracks, opts)
}

// ProcessTracks runs an already-ordered track list through the pipeline.
func (p *Processor) ProcessTracks(ctx context.Context, tracks []scanner.Track, opts Options) (Report, error) {
	started := time.Now()
	report := Report{Total: len(tracks)}

	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := p.pipe.Separate(ctx, track.Path, pipeline.Options{
			Engine:          opts.Engine,
			SkipIfExisting:  opts.SkipIfExisting,
			QualityFallback: opts.QualityFallback,
		})
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, TrackError{Track: track, Message: err.Error()})
			report.Outcomes = append(report.Outcomes, Outcome{Track: track})
			p.logger.WarnContext(ctx, "track failed",
				logging.String("source_file", track.Path),
				logging.Error(err),
			)
		case !outcome.Result.Success:
			report.Failed++
			report.Errors = append(report.Errors, TrackError{Track: track, Message: outcome.Result.ErrMessage})
			report.Outcomes = append(report.Outcomes, Outcome{
				Track:      track,
				EngineName: outcome.Result.EngineName,
				OutputDir:  outcome.OutputDir,
			})
		case outcome.Result.EngineName == engine.CachedEngineName:
			report.Skipped++
			report.Outcomes = append(report.Outcomes, Outcome{
				Track:      track,
				EngineName: outcome.Result.EngineName,
				Success:    true,
				OutputDir:  outcome.OutputDir,
			})
		default:
			report.Completed++
			report.Outcomes = append(report.Outcomes, Outcome{
				Track:      track,
				EngineName: outcome.Result.EngineName,
				Success:    true,
				FellBack:   outcome.FellBack,
				OutputDir:  outcome.OutputDir,
			})
		}

		if opts.Progress != nil {
			opts.Progress(Progress{
				Total:     report.Total,
				Completed: report.Completed,
				Failed:    report.Failed,
				Skipped:   report.Skipped,
				Current:   track,
			})
		}
	}

	report.Elapsed = time.Since(started)
	p.logger.InfoContext(ctx, "batch run finished",
		logging.Int("total", report.Total),
		logging.Int("completed", report.Completed),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// Resume re-runs a directory with skip-if-existing forced on, so an
// interrupted batch picks up where it stopped.
func (p *Processor) Resume(ctx context.Context, opts Options) (Report, error) {
	opts.SkipIfExisting = true
	return p.ProcessDirectory(ctx, opts)
}

// PendingTracks reports which scanned tracks still lack their four stems
// on disk, without executing anything.
func (p *Processor) PendingTracks(ctx context.Context) ([]scanner.Track, error) {
	tracks, err := p.scan.Scan(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]scanner.Track, 0, len(tracks))
	for _, track := range tracks {
		hash, err := outputs.ContentHash(track.Path)
		if err != nil {
			pending = append(pending, track)
			continue
		}
		dir, err := p.layout.TrackDir(track.Artist, track.Title, hash)
		if err != nil {
			return nil, fmt.Errorf("batch: resolve output dir: %w", err)
		}
		if !outputs.StemsExist(dir) {
			pending = append(pending, track)
		}
	}
	return pending, nil
}
