package scanner

import (
	"path/filepath"
	"strings"
)

// Priority orders tracks within a batch. Lower values process first.
type Priority int

const (
	PriorityHighest Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityNormal
	PriorityLow
)

// String returns the tier name.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// danceableBPM is the cutoff above which untagged-genre tracks are bumped
// to medium priority.
const danceableBPM = 120.0

// vocalGenres are genre keywords that usually carry a lead vocal.
var vocalGenres = []string{"pop", "r&b", "rnb", "soul", "hip-hop", "hip hop", "vocal"}

// classify assigns a priority tier from a track's location and tags.
// Crate membership wins, then house genres, then fast tracks, then tracks
// with a vocal genre; everything else is low.
func classify(track Track, crates []string) Priority {
	if inCrate(track.Path, crates) {
		return PriorityHighest
	}
	genre := strings.ToLower(track.Genre)
	switch {
	case strings.Contains(genre, "house"):
		return PriorityHigh
	case track.BPM > danceableBPM:
		return PriorityMedium
	case matchesAny(genre, vocalGenres):
		return PriorityNormal
	default:
		return PriorityLow
	}
}

func matchesAny(genre string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(genre, keyword) {
			return true
		}
	}
	return false
}

// inCrate reports whether the file's immediate parent folder matches a
// priority crate name.
func inCrate(path string, crates []string) bool {
	parent := filepath.Base(filepath.Dir(path))
	for _, crate := range crates {
		if strings.EqualFold(parent, crate) {
			return true
		}
	}
	return false
}
