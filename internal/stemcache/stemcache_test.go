package stemcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
	"stemgen/internal/stemcache"
	"stemgen/internal/testsupport"
)

func newManager(t *testing.T) *stemcache.Manager {
	t.Helper()
	manager := stemcache.NewManager(t.TempDir(), true, logging.NewNop())
	if manager == nil {
		t.Fatal("NewManager returned nil for an enabled cache")
	}
	return manager
}

func writeStemSet(t *testing.T, dir string) map[string]string {
	t.Helper()
	stems := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		path := filepath.Join(dir, name+".wav")
		testsupport.WriteWAV(t, path, testsupport.SineWave(440, 8000, 400), 8000)
		stems[name] = path
	}
	return stems
}

func TestPutGetRoundTrip(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	meta := stemcache.Metadata{
		ContentHash:   "abc123",
		Engine:        "demucs",
		SourceFile:    "/music/a.wav",
		QualityScores: map[string]float64{"vocals": 11.5, "drums": 9.0, "bass": 8.2, "other": 7.7},
	}
	if err := manager.Put(ctx, meta, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, hit, err := manager.Get(ctx, "abc123", "demucs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("Get missed immediately after Put")
	}
	if len(entry.StemPaths) != engine.StemCount {
		t.Fatalf("entry has %d stems, want %d", len(entry.StemPaths), engine.StemCount)
	}
	if entry.Meta.Engine != "demucs" || entry.Meta.ContentHash != "abc123" {
		t.Fatalf("entry metadata = %+v", entry.Meta)
	}
	if entry.Meta.QualityScores["vocals"] != 11.5 {
		t.Fatalf("quality snapshot not preserved: %+v", entry.Meta.QualityScores)
	}

	original, err := os.ReadFile(stems["vocals"])
	if err != nil {
		t.Fatalf("read original stem: %v", err)
	}
	cached, err := os.ReadFile(entry.StemPaths["vocals"])
	if err != nil {
		t.Fatalf("read cached stem: %v", err)
	}
	if string(original) != string(cached) {
		t.Fatal("cached stem bytes differ from the original")
	}
}

func TestGetMissesOnUnknownKey(t *testing.T) {
	manager := newManager(t)
	_, hit, err := manager.Get(context.Background(), "unknown", "demucs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Fatal("Get reported a hit for an unknown key")
	}
}

func TestIncompleteEntryIsPurged(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	meta := stemcache.Metadata{ContentHash: "abc123", Engine: "demucs"}
	if err := manager.Put(ctx, meta, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, hit, err := manager.Get(ctx, "abc123", "demucs")
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}
	if err := os.Remove(entry.StemPaths["bass"]); err != nil {
		t.Fatalf("remove stem: %v", err)
	}

	_, hit, err = manager.Get(ctx, "abc123", "demucs")
	if err != nil {
		t.Fatalf("Get after corruption: %v", err)
	}
	if hit {
		t.Fatal("incomplete entry returned as a hit")
	}
	if _, statErr := os.Stat(entry.Dir); !os.IsNotExist(statErr) {
		t.Fatal("corrupt entry was not purged")
	}
}

func TestPutRejectsIncompleteStemSet(t *testing.T) {
	manager := newManager(t)
	stems := writeStemSet(t, t.TempDir())
	delete(stems, "other")

	err := manager.Put(context.Background(), stemcache.Metadata{ContentHash: "abc", Engine: "demucs"}, stems)
	if err == nil {
		t.Fatal("Put accepted a three-stem set")
	}
}

func TestPutRejectsHostileKeys(t *testing.T) {
	manager := newManager(t)
	stems := writeStemSet(t, t.TempDir())

	err := manager.Put(context.Background(), stemcache.Metadata{ContentHash: "../escape", Engine: "demucs"}, stems)
	if err == nil {
		t.Fatal("Put accepted a path-traversal hash")
	}
}

func TestRestore(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	if err := manager.Put(ctx, stemcache.Metadata{ContentHash: "abc123", Engine: "demucs"}, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, hit, err := manager.Get(ctx, "abc123", "demucs")
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}

	dest := t.TempDir()
	restored, err := manager.Restore(ctx, entry, dest)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored) != engine.StemCount {
		t.Fatalf("restored %d stems, want %d", len(restored), engine.StemCount)
	}
	for name, path := range restored {
		if filepath.Dir(path) != dest {
			t.Fatalf("%s restored outside dest: %s", name, path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("restored stem missing: %v", err)
		}
	}
}

func TestInvalidate(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	if err := manager.Put(ctx, stemcache.Metadata{ContentHash: "abc123", Engine: "demucs"}, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := manager.Invalidate(ctx, "abc123", "demucs"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, hit, err := manager.Get(ctx, "abc123", "demucs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Fatal("entry survived Invalidate")
	}
}

func TestClearByRecordedCreationTime(t *testing.T) {
	root := t.TempDir()
	manager := stemcache.NewManager(root, true, logging.NewNop())
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	// The old entry's directory is brand new on disk; only its sidecar
	// says it was created ten days ago.
	old := stemcache.Metadata{
		ContentHash: "old000",
		Engine:      "demucs",
		CachedAt:    time.Now().Add(-10 * 24 * time.Hour).UTC(),
	}
	if err := manager.Put(ctx, old, stems); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	if err := manager.Put(ctx, stemcache.Metadata{ContentHash: "new000", Engine: "demucs"}, stems); err != nil {
		t.Fatalf("Put new: %v", err)
	}

	removed, err := manager.Clear(ctx, 5*24*time.Hour)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Clear removed %d entries, want 1", removed)
	}
	if _, hit, err := manager.Get(ctx, "old000", "demucs"); err != nil || hit {
		t.Fatalf("aged entry survived: hit=%v err=%v", hit, err)
	}
	_, hit, err := manager.Get(ctx, "new000", "demucs")
	if err != nil {
		t.Fatalf("Get new: %v", err)
	}
	if !hit {
		t.Fatal("Clear removed an entry newer than the cutoff")
	}
}

func TestClearRemovesEntriesWithBrokenSidecars(t *testing.T) {
	root := t.TempDir()
	manager := stemcache.NewManager(root, true, logging.NewNop())
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	if err := manager.Put(ctx, stemcache.Metadata{ContentHash: "broken", Engine: "demucs"}, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}
	metaPath := filepath.Join(root, "broken_demucs", "cache_meta.json")
	if err := os.WriteFile(metaPath, []byte("not json"), 0o644); err != nil {
		t.Fatalf("corrupt sidecar: %v", err)
	}

	removed, err := manager.Clear(ctx, 5*24*time.Hour)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Clear removed %d entries, want 1", removed)
	}
	if _, statErr := os.Stat(filepath.Join(root, "broken_demucs")); !os.IsNotExist(statErr) {
		t.Fatal("entry with a broken sidecar survived an aged clear")
	}
}

func TestClearAll(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	for _, hash := range []string{"aaa", "bbb"} {
		if err := manager.Put(ctx, stemcache.Metadata{ContentHash: hash, Engine: "demucs"}, stems); err != nil {
			t.Fatalf("Put %s: %v", hash, err)
		}
	}
	removed, err := manager.Clear(ctx, 0)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("Clear removed %d entries, want 2", removed)
	}
}

func TestStats(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()
	stems := writeStemSet(t, t.TempDir())

	if err := manager.Put(ctx, stemcache.Metadata{ContentHash: "abc123", Engine: "demucs"}, stems); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stats, err := manager.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("entries = %d, want 1", stats.Entries)
	}
	if stats.TotalBytes == 0 {
		t.Fatal("total bytes is zero for a populated cache")
	}
}

func TestDisabledManagerIsInert(t *testing.T) {
	manager := stemcache.NewManager("", false, logging.NewNop())
	if manager != nil {
		t.Fatal("NewManager returned a manager for a disabled cache")
	}
	_, hit, err := manager.Get(context.Background(), "abc", "demucs")
	if err != nil || hit {
		t.Fatalf("nil manager Get: hit=%v err=%v", hit, err)
	}
	if err := manager.Put(context.Background(), stemcache.Metadata{}, nil); err != nil {
		t.Fatalf("nil manager Put: %v", err)
	}
}
