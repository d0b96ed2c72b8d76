package outputs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"stemgen/internal/engine"
)

// ErrPathEscape indicates a computed path resolved outside its intended root.
var ErrPathEscape = errors.New("path escapes output root")

// hashDirLength is how many hash characters the directory name carries.
const hashDirLength = 8

// ContentHash computes the whole-file SHA-256 digest as lowercase hex.
func ContentHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Layout resolves per-track output directories under a fixed root.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at dir, creating it if needed.
func NewLayout(dir string) (*Layout, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("outputs: root directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("outputs: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("outputs: create root: %w", err)
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute stems root.
func (l *Layout) Root() string { return l.root }

// TrackDir returns the output directory for a track, named
// "{Artist} - {Title}_{hash8}". The computed path must stay inside the
// root; anything that escapes is rejected with ErrPathEscape.
func (l *Layout) TrackDir(artist, title, contentHash string) (string, error) {
	if len(contentHash) < hashDirLength {
		return "", fmt.Errorf("outputs: content hash too short: %q", contentHash)
	}
	name := fmt.Sprintf("%s - %s_%s", Sanitize(artist), Sanitize(title), contentHash[:hashDirLength])
	dir := filepath.Join(l.root, name)
	resolved, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("outputs: resolve track dir: %w", err)
	}
	if !strings.HasPrefix(resolved, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	return resolved, nil
}

// StemPaths returns the canonical stem file paths for a track directory.
func StemPaths(trackDir string) map[string]string {
	paths := make(map[string]string, engine.StemCount)
	for _, name := range engine.StemNames {
		paths[name] = filepath.Join(trackDir, name+".wav")
	}
	return paths
}

// StemsExist reports whether all four canonical stems exist in trackDir.
func StemsExist(trackDir string) bool {
	for _, path := range StemPaths(trackDir) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Sanitize strips path separators and other unsafe characters from a name
// segment so it cannot influence directory resolution.
func Sanitize(name string) string {
	cleaned := invalidNameChars.ReplaceAllString(name, "_")
	cleaned = strings.ReplaceAll(cleaned, "..", "_")
	cleaned = strings.Trim(cleaned, ". _")
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	if cleaned == "" {
		cleaned = "untitled"
	}
	return cleaned
}
