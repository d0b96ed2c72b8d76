package outputs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"stemgen/internal/outputs"
	"stemgen/internal/testsupport"
)

func TestContentHashIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")
	testsupport.WriteFile(t, path, 2048)

	first, err := outputs.ContentHash(path)
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	second, err := outputs.ContentHash(path)
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if first != second {
		t.Fatalf("hash not stable: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("hash length = %d, want 64", len(first))
	}
}

func TestTrackDirNaming(t *testing.T) {
	layout, err := outputs.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	hash := strings.Repeat("a", 64)
	dir, err := layout.TrackDir("Daft Punk", "Around the World", hash)
	if err != nil {
		t.Fatalf("TrackDir: %v", err)
	}
	if got, want := filepath.Base(dir), "Daft Punk - Around the World_aaaaaaaa"; got != want {
		t.Fatalf("dir name = %q, want %q", got, want)
	}
}

func TestTrackDirSanitizesHostileNames(t *testing.T) {
	root := t.TempDir()
	layout, err := outputs.NewLayout(root)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	hash := strings.Repeat("b", 64)
	dir, err := layout.TrackDir("../../etc", "passwd/../..", hash)
	if err != nil {
		t.Fatalf("TrackDir: %v", err)
	}
	if !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		t.Fatalf("sanitized dir %q escapes root %q", dir, root)
	}
	if strings.Contains(filepath.Base(dir), "/") {
		t.Fatalf("dir name still contains a separator: %q", dir)
	}
}

func TestTrackDirRejectsShortHash(t *testing.T) {
	layout, err := outputs.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if _, err := layout.TrackDir("a", "b", "abc"); err == nil {
		t.Fatal("TrackDir accepted a short hash")
	}
}

func TestStemsExist(t *testing.T) {
	dir := t.TempDir()
	if outputs.StemsExist(dir) {
		t.Fatal("StemsExist true for empty dir")
	}
	for _, name := range []string{"vocals", "drums", "bass"} {
		testsupport.WriteFile(t, filepath.Join(dir, name+".wav"), 64)
	}
	if outputs.StemsExist(dir) {
		t.Fatal("StemsExist true with only three stems")
	}
	testsupport.WriteFile(t, filepath.Join(dir, "other.wav"), 64)
	if !outputs.StemsExist(dir) {
		t.Fatal("StemsExist false with all four stems present")
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := outputs.Sidecar{
		SourceFile:     "/music/track.wav",
		Engine:         "demucs",
		ElapsedSeconds: 12.5,
		Success:        true,
		QualityScores:  map[string]float64{"vocals": 9.1},
		Stems:          map[string]string{"vocals": filepath.Join(dir, "vocals.wav")},
	}
	if err := outputs.WriteSidecar(dir, meta); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	got, found, err := outputs.ReadSidecar(dir)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if !found {
		t.Fatal("sidecar not found after write")
	}
	if got.Engine != meta.Engine || got.SourceFile != meta.SourceFile || !got.Success {
		t.Fatalf("sidecar mismatch: %+v", got)
	}
	if got.QualityScores["vocals"] != 9.1 {
		t.Fatalf("score mismatch: %v", got.QualityScores)
	}
}

func TestReadSidecarMissing(t *testing.T) {
	_, found, err := outputs.ReadSidecar(t.TempDir())
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if found {
		t.Fatal("found sidecar in empty dir")
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Plain Name", "Plain Name"},
		{"a/b\\c", "a_b_c"},
		{"..", "untitled"},
		{"", "untitled"},
		{"trailing. ", "trailing"},
	}
	for _, tc := range cases {
		if got := outputs.Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
