package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"stemgen/internal/logging"
)

// audioExtensions are the source formats the pipeline accepts.
var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".aac":  {},
	".m4a":  {},
	".aiff": {},
	".aif":  {},
}

// Track is a discovered library file with its tags and batch priority.
type Track struct {
	Path     string
	Artist   string
	Title    string
	Genre    string
	BPM      float64
	Key      string
	Size     int64
	Priority Priority
}

// DisplayName is the human-readable identity used for ordering and output.
func (t Track) DisplayName() string {
	return t.Artist + " - " + t.Title
}

// Scanner walks a library root and produces prioritized track lists.
type Scanner struct {
	root      string
	recursive bool
	crates    []string
	collator  *collate.Collator
	logger    *slog.Logger
}

// New builds a scanner for the given library root.
func New(root string, recursive bool, priorityCrates []string, logger *slog.Logger) *Scanner {
	return &Scanner{
		root:      root,
		recursive: recursive,
		crates:    priorityCrates,
		collator:  collate.New(language.Und, collate.IgnoreCase),
		logger:    logging.NewComponentLogger(logger, "scanner"),
	}
}

// Scan walks the library and returns every audio track in batch order:
// priority tier first, then display name. A missing root is an error.
func (s *Scanner) Scan(ctx context.Context) ([]Track, error) {
	tracks, err := s.scanRoot(ctx, s.root)
	if err != nil {
		return nil, err
	}
	s.sortTracks(tracks)
	s.logger.Info("library scan complete",
		logging.String("root", s.root),
		logging.Int("tracks", len(tracks)),
	)
	return tracks, nil
}

// ScanAll walks several roots and merges the results into one batch order.
// Any missing root fails the whole scan. With no roots it scans the
// scanner's own root.
func (s *Scanner) ScanAll(ctx context.Context, roots ...string) ([]Track, error) {
	if len(roots) == 0 {
		return s.Scan(ctx)
	}
	var tracks []Track
	for _, root := range roots {
		found, err := s.scanRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, found...)
	}
	s.sortTracks(tracks)
	s.logger.Info("library scan complete",
		logging.Int("roots", len(roots)),
		logging.Int("tracks", len(tracks)),
	)
	return tracks, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string) ([]Track, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: library root %q is not a directory", root)
	}

	var tracks []Track
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if !s.recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := audioExtensions[ext]; !ok {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				logging.String("source_file", path), logging.Error(err))
			return nil
		}
		track := s.describe(path, fileInfo.Size())
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func (s *Scanner) sortTracks(tracks []Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Priority != tracks[j].Priority {
			return tracks[i].Priority < tracks[j].Priority
		}
		return s.collator.CompareString(tracks[i].DisplayName(), tracks[j].DisplayName()) < 0
	})
}

// Prioritized returns the first limit tracks of a scan; a non-positive
// limit returns everything.
func (s *Scanner) Prioritized(ctx context.Context, limit int) ([]Track, error) {
	tracks, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// Describe builds a Track for one file outside a full scan.
func (s *Scanner) Describe(path string) (Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Track{}, fmt.Errorf("scanner: describe %q: %w", path, err)
	}
	return s.describe(path, info.Size()), nil
}

func (s *Scanner) describe(path string, size int64) Track {
	tags := readTags(path)
	track := Track{
		Path:   path,
		Artist: tags.Artist,
		Title:  tags.Title,
		Genre:  tags.Genre,
		BPM:    tags.BPM,
		Key:    tags.Key,
		Size:   size,
	}
	track.Priority = classify(track, s.crates)
	return track
}
