package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"stemgen/internal/config"
	"stemgen/internal/engine"
	"stemgen/internal/ledger"
	"stemgen/internal/logging"
	"stemgen/internal/outputs"
	"stemgen/internal/scanner"
	"stemgen/internal/stemcache"
)

// EngineAuto lets the pipeline pick between local and remote.
const EngineAuto = "auto"

// Options controls one Separate call.
type Options struct {
	// Engine is an explicit engine name, or EngineAuto / empty for routing.
	Engine string
	// SkipIfExisting returns immediately when all four stems are on disk.
	SkipIfExisting bool
	// QualityFallback enables the one-hop retry on another engine when a
	// stem scores under its reprocessing threshold.
	QualityFallback bool
}

// Outcome is the full result of routing one track.
type Outcome struct {
	Track     *ledger.Track
	OutputDir string
	Result    engine.Result
	Scores    map[string]float64
	FellBack  bool
}

// Pipeline wires the engines, cache, ledger, and output layout together.
type Pipeline struct {
	cfg    *config.Config
	store  *ledger.Store
	cache  *stemcache.Manager
	layout *outputs.Layout
	tracks *scanner.Scanner
	local  engine.Engine
	remote engine.Engine
	logger *slog.Logger
}

// New assembles a pipeline. Either engine may be nil when not configured;
// routing treats a nil engine as unavailable.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	store *ledger.Store,
	cache *stemcache.Manager,
	layout *outputs.Layout,
	tracks *scanner.Scanner,
	local, remote engine.Engine,
) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		cache:  cache,
		layout: layout,
		tracks: tracks,
		local:  local,
		remote: remote,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Separate routes one file through separation. Routing problems (unknown or
// unavailable engine, nothing usable) come back as errors; a separation that
// executed but failed comes back as an unsuccessful Result inside Outcome.
func (p *Pipeline) Separate(ctx context.Context, path string, opts Options) (*Outcome, error) {
	track, err := p.tracks.Describe(path)
	if err != nil {
		return nil, err
	}
	contentHash, err := outputs.ContentHash(path)
	if err != nil {
		return nil, err
	}
	outputDir, err := p.layout.TrackDir(track.Artist, track.Title, contentHash)
	if err != nil {
		return nil, err
	}

	if opts.SkipIfExisting && outputs.StemsExist(outputDir) {
		p.logger.InfoContext(ctx, "stems already on disk, skipping",
			logging.String("source_file", path),
			logging.String("output_dir", outputDir),
		)
		return p.cachedOutcome(ctx, track, contentHash, outputDir)
	}

	record, err := p.store.AddTrack(ctx, ledger.Track{
		FilePath:    path,
		ContentHash: contentHash,
		Artist:      track.Artist,
		Title:       track.Title,
		Genre:       track.Genre,
		BPM:         track.BPM,
		Key:         track.Key,
		FileSize:    track.Size,
	})
	if err != nil {
		return nil, err
	}

	selected, err := p.selectEngine(ctx, opts.Engine, track.Size)
	if err != nil {
		return nil, err
	}

	if entry, hit, cacheErr := p.cache.Get(ctx, contentHash, selected.Name()); cacheErr != nil {
		return nil, cacheErr
	} else if hit {
		stems, restoreErr := p.cache.Restore(ctx, entry, outputDir)
		if restoreErr != nil {
			return nil, restoreErr
		}
		outcome := &Outcome{
			Track:     record,
			OutputDir: outputDir,
			Result: engine.Result{
				Success:    true,
				StemPaths:  stems,
				EngineName: engine.CachedEngineName,
			},
		}
		if err := p.writeSidecar(path, outcome); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	r := &run{
		pipeline:    p,
		sourcePath:  path,
		contentHash: contentHash,
		outputDir:   outputDir,
		track:       record,
		primary:     selected,
		opts:        opts,
	}
	return r.execute(ctx)
}

// cachedOutcome reports already-present stems without touching any engine.
func (p *Pipeline) cachedOutcome(ctx context.Context, track scanner.Track, contentHash, outputDir string) (*Outcome, error) {
	record, err := p.store.AddTrack(ctx, ledger.Track{
		FilePath:    track.Path,
		ContentHash: contentHash,
		Artist:      track.Artist,
		Title:       track.Title,
		Genre:       track.Genre,
		BPM:         track.BPM,
		Key:         track.Key,
		FileSize:    track.Size,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Track:     record,
		OutputDir: outputDir,
		Result: engine.Result{
			Success:    true,
			StemPaths:  outputs.StemPaths(outputDir),
			EngineName: engine.CachedEngineName,
		},
	}, nil
}

// selectEngine applies the routing policy: an explicit name must resolve to
// a usable engine; auto prefers local for small files or when the remote is
// unusable, otherwise remote.
func (p *Pipeline) selectEngine(ctx context.Context, preference string, fileSize int64) (engine.Engine, error) {
	localOK := p.local != nil && p.local.Available(ctx)
	remoteOK := p.remote != nil && p.remote.Available(ctx)

	if preference != "" && preference != EngineAuto {
		for _, candidate := range []engine.Engine{p.local, p.remote} {
			if candidate == nil || candidate.Name() != preference {
				continue
			}
			if !candidate.Available(ctx) {
				return nil, fmt.Errorf("%w: %s", engine.ErrUnavailable, preference)
			}
			return candidate, nil
		}
		return nil, fmt.Errorf("%w: unknown engine %q", engine.ErrUnavailable, preference)
	}

	threshold := int64(p.cfg.Pipeline.LocalSizeThresholdMB) * 1024 * 1024
	switch {
	case localOK && (fileSize < threshold || !remoteOK):
		return p.local, nil
	case remoteOK:
		return p.remote, nil
	case localOK:
		return p.local, nil
	default:
		return nil, engine.ErrNoneAvailable
	}
}

// fallbackEngine returns a distinct usable engine, or nil when none exists.
func (p *Pipeline) fallbackEngine(ctx context.Context, used engine.Engine) engine.Engine {
	for _, candidate := range []engine.Engine{p.local, p.remote} {
		if candidate == nil || candidate.Name() == used.Name() {
			continue
		}
		if candidate.Available(ctx) {
			return candidate
		}
	}
	return nil
}

func (p *Pipeline) writeSidecar(sourcePath string, outcome *Outcome) error {
	return outputs.WriteSidecar(outcome.OutputDir, outputs.Sidecar{
		SourceFile:     sourcePath,
		Engine:         outcome.Result.EngineName,
		ElapsedSeconds: outcome.Result.Elapsed.Seconds(),
		Success:        outcome.Result.Success,
		QualityScores:  outcome.Scores,
		Stems:          outcome.Result.StemPaths,
	})
}
