package scanner

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"stemgen/internal/logging"
	"stemgen/internal/testsupport"
)

// id3v2File builds a minimal ID3v2.3 tag followed by junk audio bytes.
func id3v2File(t *testing.T, path string, frames map[string]string) {
	t.Helper()

	var body []byte
	for id, value := range frames {
		frame := make([]byte, 10)
		copy(frame[0:4], id)
		binary.BigEndian.PutUint32(frame[4:8], uint32(len(value)+1))
		frame = append(frame, 0) // Latin-1
		frame = append(frame, []byte(value)...)
		body = append(body, frame...)
	}

	header := make([]byte, 10)
	copy(header[0:3], "ID3")
	header[3] = 3
	size := len(body)
	header[6] = byte(size >> 21 & 0x7f)
	header[7] = byte(size >> 14 & 0x7f)
	header[8] = byte(size >> 7 & 0x7f)
	header[9] = byte(size & 0x7f)

	payload := append(header, body...)
	payload = append(payload, make([]byte, 256)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadTagsFromID3v2(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	id3v2File(t, path, map[string]string{
		"TPE1": "Kerri Chandler",
		"TIT2": "Rain",
		"TCON": "Deep House",
		"TBPM": "124",
		"TKEY": "Am",
	})

	tags := readTags(path)
	if tags.Artist != "Kerri Chandler" || tags.Title != "Rain" {
		t.Fatalf("tags = %+v", tags)
	}
	if tags.Genre != "Deep House" {
		t.Fatalf("genre = %q", tags.Genre)
	}
	if tags.BPM != 124 {
		t.Fatalf("bpm = %v", tags.BPM)
	}
	if tags.Key != "Am" {
		t.Fatalf("key = %q", tags.Key)
	}
}

func TestReadTagsFilenameFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Moodymann - Shades of Jae.wav")
	testsupport.WriteFile(t, path, 128)

	tags := readTags(path)
	if tags.Artist != "Moodymann" || tags.Title != "Shades of Jae" {
		t.Fatalf("filename fallback tags = %+v", tags)
	}
}

func TestReadTagsNoSeparatorFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "untagged.wav")
	testsupport.WriteFile(t, path, 128)

	tags := readTags(path)
	if tags.Artist != "Unknown Artist" || tags.Title != "untagged" {
		t.Fatalf("tags = %+v", tags)
	}
}

func TestClassifyTiers(t *testing.T) {
	crates := []string{"weekend-set"}
	cases := []struct {
		name  string
		track Track
		want  Priority
	}{
		{"crate member", Track{Path: "/lib/weekend-set/a.wav"}, PriorityHighest},
		{"crate beats genre", Track{Path: "/lib/weekend-set/b.wav", Genre: "Deep House", BPM: 170}, PriorityHighest},
		{"crate matches parent only", Track{Path: "/lib/weekend-set/deeper/c.wav"}, PriorityLow},
		{"house genre", Track{Path: "/lib/x.wav", Genre: "Tech House"}, PriorityHigh},
		{"fast track", Track{Path: "/lib/x.wav", Genre: "Techno", BPM: 140}, PriorityMedium},
		{"vocal genre", Track{Path: "/lib/x.wav", Genre: "Vocal Jazz"}, PriorityNormal},
		{"pop counts as vocal", Track{Path: "/lib/x.wav", Genre: "Pop"}, PriorityNormal},
		{"hip-hop counts as vocal", Track{Path: "/lib/x.wav", Genre: "Hip-Hop"}, PriorityNormal},
		{"soul counts as vocal", Track{Path: "/lib/x.wav", Genre: "Northern Soul"}, PriorityNormal},
		{"everything else", Track{Path: "/lib/x.wav", Genre: "Ambient", BPM: 80}, PriorityLow},
	}
	for _, tc := range cases {
		if got := classify(tc.track, crates); got != tc.want {
			t.Fatalf("%s: classify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestScanOrdersByPriorityThenName(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "zz - low.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "aa - low.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "crate", "mm - starred.wav"), 64)

	s := New(root, true, []string{"crate"}, logging.NewNop())
	tracks, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("scanned %d tracks, want 3", len(tracks))
	}
	if tracks[0].Artist != "mm" {
		t.Fatalf("crate track not first: %+v", tracks[0])
	}
	if tracks[1].Artist != "aa" || tracks[2].Artist != "zz" {
		t.Fatalf("equal-tier tracks not name ordered: %s then %s",
			tracks[1].DisplayName(), tracks[2].DisplayName())
	}
}

func TestScanNonRecursive(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "top.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "deep.wav"), 64)

	s := New(root, false, nil, logging.NewNop())
	tracks, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("non-recursive scan found %d tracks, want 1", len(tracks))
	}
}

func TestScanIgnoresNonAudioFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "track.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "short.aif"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "cover.jpg"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), 64)

	s := New(root, true, nil, logging.NewNop())
	tracks, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("scan found %d tracks, want 2", len(tracks))
	}
}

func TestScanAllMergesRoots(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(first, "zz - later.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(second, "aa - sooner.wav"), 64)
	testsupport.WriteFile(t, filepath.Join(second, "crate", "mm - starred.wav"), 64)

	s := New(first, true, []string{"crate"}, logging.NewNop())
	tracks, err := s.ScanAll(context.Background(), first, second)
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("merged scan found %d tracks, want 3", len(tracks))
	}
	if tracks[0].Artist != "mm" {
		t.Fatalf("crate track not first across roots: %+v", tracks[0])
	}
	if tracks[1].Artist != "aa" || tracks[2].Artist != "zz" {
		t.Fatalf("merged order wrong: %s then %s",
			tracks[1].DisplayName(), tracks[2].DisplayName())
	}

	if _, err := s.ScanAll(context.Background(), first, filepath.Join(second, "nope")); err == nil {
		t.Fatal("ScanAll accepted a missing root")
	}
}

func TestScanMissingRootFails(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), true, nil, logging.NewNop())
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatal("Scan accepted a missing root")
	}
}

func TestPrioritizedLimit(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a - 1.wav", "b - 2.wav", "c - 3.wav"} {
		testsupport.WriteFile(t, filepath.Join(root, name), 64)
	}
	s := New(root, true, nil, logging.NewNop())
	tracks, err := s.Prioritized(context.Background(), 2)
	if err != nil {
		t.Fatalf("Prioritized: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("limit ignored: got %d tracks", len(tracks))
	}
}

func TestParseID3v1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.mp3")

	trailer := make([]byte, 128)
	copy(trailer[0:3], "TAG")
	copy(trailer[3:33], "Strings Of Life")
	copy(trailer[33:63], "Rhythim Is Rhythim")
	trailer[127] = 35 // House
	payload := append(make([]byte, 512), trailer...)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tags := readTags(path)
	if tags.Artist != "Rhythim Is Rhythim" || tags.Title != "Strings Of Life" {
		t.Fatalf("tags = %+v", tags)
	}
	if tags.Genre != "House" {
		t.Fatalf("genre = %q", tags.Genre)
	}
}
