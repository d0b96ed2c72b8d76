package stemcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metaFileName = "cache_meta.json"

// Metadata describes how a cache entry was produced.
type Metadata struct {
	ContentHash    string             `json:"content_hash"`
	Engine         string             `json:"engine"`
	SourceFile     string             `json:"source_file"`
	ElapsedSeconds float64            `json:"processing_time_seconds"`
	QualityScores  map[string]float64 `json:"quality_scores,omitempty"`
	CachedAt       time.Time          `json:"cached_at"`
}

func writeMetadata(dir string, meta Metadata) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), payload, 0o644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	return nil
}

func readMetadata(dir string) (Metadata, error) {
	payload, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return Metadata{}, fmt.Errorf("read cache metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode cache metadata: %w", err)
	}
	return meta, nil
}
