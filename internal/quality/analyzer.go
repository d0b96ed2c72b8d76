package quality

import (
	"fmt"
	"math"
	"path/filepath"

	"stemgen/internal/engine"
)

// Quality label cutoffs in dB.
const (
	ThresholdExcellent  = 12.0
	ThresholdGood       = 8.0
	ThresholdAcceptable = 5.0

	// VocalThreshold is the stricter reprocessing cutoff for the vocal stem.
	VocalThreshold = 7.0
)

const energyFloor = 1e-10

// Score computes the scale-invariant signal-to-distortion ratio in dB
// between a reference signal and an estimate.
//
//	SI-SDR = 10 * log10(||s_target||^2 / ||e_noise||^2)
//
// where s_target is the projection of the estimate onto the reference.
// Signals are truncated to the shorter length and mean-centered first.
// A reference with near-zero energy scores -Inf; a near-zero noise residual
// scores +Inf.
func Score(reference, estimate []float64) float64 {
	n := min(len(reference), len(estimate))
	ref := make([]float64, n)
	est := make([]float64, n)
	copy(ref, reference[:n])
	copy(est, estimate[:n])

	removeMean(ref)
	removeMean(est)

	refEnergy := 0.0
	for _, v := range ref {
		refEnergy += v * v
	}
	if refEnergy < energyFloor {
		return math.Inf(-1)
	}

	dot := 0.0
	for i := range ref {
		dot += ref[i] * est[i]
	}
	scale := dot / refEnergy

	targetEnergy := 0.0
	noiseEnergy := 0.0
	for i := range ref {
		target := scale * ref[i]
		noise := est[i] - target
		targetEnergy += target * target
		noiseEnergy += noise * noise
	}
	if noiseEnergy < energyFloor {
		return math.Inf(1)
	}
	return 10 * math.Log10(targetEnergy/noiseEnergy)
}

func removeMean(signal []float64) {
	if len(signal) == 0 {
		return
	}
	mean := 0.0
	for _, v := range signal {
		mean += v
	}
	mean /= float64(len(signal))
	for i := range signal {
		signal[i] -= mean
	}
}

// Label buckets a score into a human-readable quality band.
func Label(score float64) string {
	switch {
	case score >= ThresholdExcellent:
		return "excellent"
	case score >= ThresholdGood:
		return "good"
	case score >= ThresholdAcceptable:
		return "acceptable"
	default:
		return "poor"
	}
}

// NeedsReprocessing reports whether a stem's score warrants another attempt.
// Vocals use the stricter 7 dB cutoff; all other stems use 5 dB.
func NeedsReprocessing(stemName string, score float64) bool {
	threshold := ThresholdAcceptable
	if stemName == "vocals" {
		threshold = VocalThreshold
	}
	return score < threshold
}

// AnalyzeStem scores one separated stem against the original mixture. The
// estimate is resampled to the reference rate when they differ.
func AnalyzeStem(stemPath, originalPath string) (float64, error) {
	estimate, estRate, err := ReadWAV(stemPath)
	if err != nil {
		return 0, fmt.Errorf("read stem: %w", err)
	}
	reference, refRate, err := ReadWAV(originalPath)
	if err != nil {
		return 0, fmt.Errorf("read original: %w", err)
	}
	if estRate != refRate {
		estimate = Resample(estimate, estRate, refRate)
	}
	return Score(reference, estimate), nil
}

// AnalyzeDir scores every canonical stem present in stemDir against the
// original mixture. Stems that are missing or unreadable are skipped; the
// map holds only scores that were actually computed.
func AnalyzeDir(stemDir, originalPath string) map[string]float64 {
	scores := make(map[string]float64, engine.StemCount)
	for _, name := range engine.StemNames {
		stemPath := filepath.Join(stemDir, name+".wav")
		score, err := AnalyzeStem(stemPath, originalPath)
		if err != nil {
			continue
		}
		scores[name] = score
	}
	return scores
}
