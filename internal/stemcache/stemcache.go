package stemcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"stemgen/internal/engine"
	"stemgen/internal/logging"
)

// ErrPathEscape indicates a cache key that would resolve outside the root.
var ErrPathEscape = errors.New("stemcache: entry path escapes cache root")

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager stores and retrieves cached stem sets.
type Manager struct {
	root   string
	logger *slog.Logger
	statfs statfsFunc
}

// Entry is a cache hit: the entry directory, its stem paths, and metadata.
type Entry struct {
	Dir       string
	StemPaths map[string]string
	Meta      Metadata
}

// Stats describes current cache usage.
type Stats struct {
	Entries      int    `json:"entries"`
	TotalBytes   int64  `json:"total_bytes"`
	FreeBytes    uint64 `json:"free_bytes"`
	TotalFSBytes uint64 `json:"total_fs_bytes"`
}

// NewManager builds a cache manager rooted at dir; returns nil when caching
// is disabled or the directory is empty.
func NewManager(dir string, enabled bool, logger *slog.Logger) *Manager {
	root := strings.TrimSpace(dir)
	if !enabled || root == "" {
		return nil
	}
	return &Manager{
		root:   root,
		logger: logging.NewComponentLogger(logger, "stemcache"),
		statfs: realStatfs,
	}
}

var keySegment = regexp.MustCompile(`^[a-z0-9]+$`)

func (m *Manager) entryDir(contentHash, engineName string) (string, error) {
	if !keySegment.MatchString(contentHash) || !keySegment.MatchString(engineName) {
		return "", fmt.Errorf("%w: %s_%s", ErrPathEscape, contentHash, engineName)
	}
	dir := filepath.Join(m.root, contentHash+"_"+engineName)
	if !strings.HasPrefix(dir, m.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s_%s", ErrPathEscape, contentHash, engineName)
	}
	return dir, nil
}

// Get looks up a cached stem set. A valid entry has all four canonical stems
// and readable metadata; anything less is purged and reported as a miss.
func (m *Manager) Get(ctx context.Context, contentHash, engineName string) (Entry, bool, error) {
	if m == nil {
		return Entry{}, false, nil
	}
	dir, err := m.entryDir(contentHash, engineName)
	if err != nil {
		return Entry{}, false, err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("stemcache: inspect entry: %w", err)
	}

	stems := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		path := filepath.Join(dir, name+".wav")
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			return Entry{}, false, m.purge(ctx, dir, "missing or empty stem")
		}
		stems[name] = path
	}
	meta, err := readMetadata(dir)
	if err != nil {
		return Entry{}, false, m.purge(ctx, dir, "unreadable metadata")
	}
	return Entry{Dir: dir, StemPaths: stems, Meta: meta}, true, nil
}

func (m *Manager) purge(ctx context.Context, dir, reason string) error {
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stemcache: purge corrupt entry: %w", err)
	}
	m.logger.WarnContext(ctx, "purged corrupt cache entry",
		logging.String("cache_dir", dir),
		logging.String("reason", reason),
	)
	return nil
}

// Put copies a complete stem set into the cache. Files land in a staging
// directory first; the final rename makes the entry visible all at once.
// An existing entry for the same key is replaced.
func (m *Manager) Put(ctx context.Context, meta Metadata, stemPaths map[string]string) error {
	if m == nil {
		return nil
	}
	dest, err := m.entryDir(meta.ContentHash, meta.Engine)
	if err != nil {
		return err
	}
	for _, name := range engine.StemNames {
		if _, ok := stemPaths[name]; !ok {
			return fmt.Errorf("stemcache: incomplete stem set, missing %s", name)
		}
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("stemcache: create root: %w", err)
	}
	staging := filepath.Join(m.root, ".staging-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("stemcache: create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	for _, name := range engine.StemNames {
		if err := copyFile(stemPaths[name], filepath.Join(staging, name+".wav")); err != nil {
			return fmt.Errorf("stemcache: stage %s: %w", name, err)
		}
	}
	if meta.CachedAt.IsZero() {
		meta.CachedAt = time.Now().UTC()
	}
	if err := writeMetadata(staging, meta); err != nil {
		return err
	}

	if err := os.RemoveAll(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stemcache: remove existing entry: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("stemcache: commit entry: %w", err)
	}
	m.logger.InfoContext(ctx, "stored cache entry",
		logging.String("cache_dir", dest),
		logging.String("engine", meta.Engine),
	)
	return nil
}

// Restore copies a cache entry's stems into destDir under their canonical
// names and returns the restored paths.
func (m *Manager) Restore(ctx context.Context, entry Entry, destDir string) (map[string]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("stemcache: create restore dir: %w", err)
	}
	restored := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		dst := filepath.Join(destDir, name+".wav")
		if err := copyFile(entry.StemPaths[name], dst); err != nil {
			return nil, fmt.Errorf("stemcache: restore %s: %w", name, err)
		}
		restored[name] = dst
	}
	m.logger.InfoContext(ctx, "restored stems from cache",
		logging.String("cache_dir", entry.Dir),
		logging.String("target_dir", destDir),
	)
	return restored, nil
}

// Invalidate removes the entry for a (hash, engine) pair if present.
func (m *Manager) Invalidate(ctx context.Context, contentHash, engineName string) error {
	if m == nil {
		return nil
	}
	dir, err := m.entryDir(contentHash, engineName)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stemcache: invalidate entry: %w", err)
	}
	m.logger.InfoContext(ctx, "invalidated cache entry", logging.String("cache_dir", dir))
	return nil
}

// Clear removes entries whose recorded creation time is older than the
// given age. A zero age removes everything. Entries with a missing or
// unreadable sidecar are always eligible. Returns how many entries were
// removed.
func (m *Manager) Clear(ctx context.Context, olderThan time.Duration) (int, error) {
	if m == nil {
		return 0, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stemcache: list root: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if olderThan > 0 {
			meta, err := readMetadata(path)
			if err == nil && !meta.CachedAt.IsZero() && meta.CachedAt.After(cutoff) {
				continue
			}
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("stemcache: remove %q: %w", path, err)
		}
		removed++
	}
	m.logger.InfoContext(ctx, "cleared cache entries", logging.Int("removed", removed))
	return removed, nil
}

// Stats returns entry count, total size, and filesystem free space.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return s, fmt.Errorf("stemcache: list root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".staging-") {
			continue
		}
		size, err := dirSize(filepath.Join(m.root, entry.Name()))
		if err != nil {
			continue
		}
		s.Entries++
		s.TotalBytes += size
	}
	total, free, err := m.statfs(m.root)
	if err == nil {
		s.TotalFSBytes = total
		s.FreeBytes = free
	}
	return s, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
