// Package quality estimates stem separation quality with a scale-invariant
// signal-to-distortion ratio (SI-SDR) computed against the original mixture.
//
// True SI-SDR requires ground-truth stems; scoring against the mixture is an
// approximation, good enough to decide whether a second pass on another
// engine is worth the cost. Vocals carry a stricter reprocessing threshold
// than the remaining stems.
package quality
