package batch_test

import (
	"context"
	"path/filepath"
	"testing"

	"stemgen/internal/batch"
	"stemgen/internal/config"
	"stemgen/internal/engine"
	"stemgen/internal/ledger"
	"stemgen/internal/logging"
	"stemgen/internal/outputs"
	"stemgen/internal/pipeline"
	"stemgen/internal/scanner"
	"stemgen/internal/stemcache"
	"stemgen/internal/testsupport"
)

type harness struct {
	cfg       *config.Config
	store     *ledger.Store
	local     *testsupport.StubEngine
	remote    *testsupport.StubEngine
	processor *batch.Processor
	library   string
}

// newHarness builds a processor over a library of small WAV files. Each
// file gets a distinct tone so content hashes never collide.
func newHarness(t *testing.T, names ...string) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	logger := logging.NewNop()

	layout, err := outputs.NewLayout(cfg.Paths.StemsDir)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	cache := stemcache.NewManager(cfg.StemCache.Dir, true, logger)

	library := t.TempDir()
	for i, name := range names {
		path := filepath.Join(library, name)
		testsupport.WriteWAV(t, path, testsupport.SineWave(float64(200+i*50), 8000, 2000), 8000)
	}

	local := &testsupport.StubEngine{EngineName: "demucs"}
	remote := &testsupport.StubEngine{EngineName: "lalal"}

	scan := scanner.New(library, true, nil, logger)
	pipe := pipeline.New(cfg, logger, store, cache, layout, scan, local, remote)

	return &harness{
		cfg:       cfg,
		store:     store,
		local:     local,
		remote:    remote,
		processor: batch.New(pipe, scan, layout, logger),
		library:   library,
	}
}

func TestProcessDirectoryCompletesAllTracks(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav", "cc - three.wav")

	report, err := h.processor.ProcessDirectory(context.Background(), batch.Options{Engine: "demucs"})
	if err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	if report.Total != 3 || report.Completed != 3 || report.Failed != 0 || report.Skipped != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(report.Outcomes))
	}
	for _, outcome := range report.Outcomes {
		if !outcome.Success || outcome.EngineName != "demucs" {
			t.Fatalf("outcome = %+v", outcome)
		}
	}
	if h.local.Calls() != 3 {
		t.Fatalf("engine invoked %d times, want 3", h.local.Calls())
	}
}

func TestProgressCallbackAfterEveryTrack(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav")

	var snapshots []batch.Progress
	_, err := h.processor.ProcessDirectory(context.Background(), batch.Options{
		Engine:   "demucs",
		Progress: func(p batch.Progress) { snapshots = append(snapshots, p) },
	})
	if err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("callback fired %d times, want 2", len(snapshots))
	}
	if snapshots[0].Completed != 1 || snapshots[1].Completed != 2 {
		t.Fatalf("snapshots = %+v", snapshots)
	}
	if snapshots[0].Current.Path == snapshots[1].Current.Path {
		t.Fatal("snapshots report the same current track")
	}
	for _, snap := range snapshots {
		if snap.Total != 2 {
			t.Fatalf("snapshot total = %d, want 2", snap.Total)
		}
	}
}

func TestFailuresAreCollectedWithoutAborting(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav")
	h.local.FailWith = "model exploded"

	report, err := h.processor.ProcessDirectory(context.Background(), batch.Options{Engine: "demucs"})
	if err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	if report.Failed != 2 || report.Completed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("got %d errors, want 2", len(report.Errors))
	}
	for _, trackErr := range report.Errors {
		if trackErr.Message != "model exploded" {
			t.Fatalf("error message = %q", trackErr.Message)
		}
	}
	if h.local.Calls() != 2 {
		t.Fatalf("engine invoked %d times, want 2", h.local.Calls())
	}
}

func TestRoutingErrorCountsAsFailure(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav")

	report, err := h.processor.ProcessDirectory(context.Background(), batch.Options{Engine: "spleeter"})
	if err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	if report.Failed != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 2 || report.Errors[0].Message == "" {
		t.Fatalf("errors = %+v", report.Errors)
	}
}

func TestResumeSkipsFinishedTracks(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav", "cc - three.wav")
	ctx := context.Background()

	first, err := h.processor.ProcessDirectory(ctx, batch.Options{Engine: "demucs"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Completed != 3 {
		t.Fatalf("first report = %+v", first)
	}

	second, err := h.processor.Resume(ctx, batch.Options{Engine: "demucs"})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if second.Skipped != 3 || second.Completed != 0 || second.Failed != 0 {
		t.Fatalf("resume report = %+v", second)
	}
	for _, outcome := range second.Outcomes {
		if outcome.EngineName != engine.CachedEngineName {
			t.Fatalf("resume outcome = %+v", outcome)
		}
	}
	if h.local.Calls() != 3 {
		t.Fatalf("engine invoked %d times after resume, want 3", h.local.Calls())
	}
}

func TestLimitTruncatesTheRun(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav", "cc - three.wav")

	report, err := h.processor.ProcessDirectory(context.Background(), batch.Options{
		Engine: "demucs",
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	if report.Total != 2 || report.Completed != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestPendingTracks(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav", "cc - three.wav")
	ctx := context.Background()

	pending, err := h.processor.PendingTracks(ctx)
	if err != nil {
		t.Fatalf("PendingTracks: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("untouched library has %d pending tracks, want 3", len(pending))
	}

	if _, err := h.processor.ProcessDirectory(ctx, batch.Options{Engine: "demucs", Limit: 1}); err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}
	pending, err = h.processor.PendingTracks(ctx)
	if err != nil {
		t.Fatalf("PendingTracks after run: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending tracks, want 2", len(pending))
	}
	for _, track := range pending {
		if track.Artist == "aa" {
			t.Fatal("processed track still reported pending")
		}
	}
}

func TestCancelledContextAborts(t *testing.T) {
	h := newHarness(t, "aa - one.wav", "bb - two.wav")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracks := []scanner.Track{{Path: filepath.Join(h.library, "aa - one.wav")}}
	if _, err := h.processor.ProcessTracks(ctx, tracks, batch.Options{Engine: "demucs"}); err == nil {
		t.Fatal("cancelled context did not abort the run")
	}
	if h.local.Calls() != 0 {
		t.Fatal("engine ran under a cancelled context")
	}
}
