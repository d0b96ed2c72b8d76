package outputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const sidecarName = "metadata.json"

// Sidecar records how a track directory's stems were produced.
type Sidecar struct {
	SourceFile     string             `json:"source_file"`
	Engine         string             `json:"engine"`
	ElapsedSeconds float64            `json:"processing_time_seconds"`
	Success        bool               `json:"success"`
	QualityScores  map[string]float64 `json:"quality_scores"`
	Stems          map[string]string  `json:"stems"`
}

// WriteSidecar persists the sidecar atomically (temp file + rename) so a
// crashed write never leaves a truncated document behind.
func WriteSidecar(trackDir string, meta Sidecar) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("outputs: encode sidecar: %w", err)
	}
	if err := os.MkdirAll(trackDir, 0o755); err != nil {
		return fmt.Errorf("outputs: ensure track dir: %w", err)
	}
	tmp := filepath.Join(trackDir, fmt.Sprintf(".metadata-%d.tmp", time.Now().UnixNano()))
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("outputs: write sidecar temp: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(trackDir, sidecarName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("outputs: rename sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads the sidecar for a track directory. The boolean reports
// whether a sidecar was present.
func ReadSidecar(trackDir string) (Sidecar, bool, error) {
	payload, err := os.ReadFile(filepath.Join(trackDir, sidecarName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Sidecar{}, false, nil
		}
		return Sidecar{}, false, fmt.Errorf("outputs: read sidecar: %w", err)
	}
	var meta Sidecar
	if err := json.Unmarshal(payload, &meta); err != nil {
		return Sidecar{}, true, fmt.Errorf("outputs: decode sidecar: %w", err)
	}
	return meta, true, nil
}
