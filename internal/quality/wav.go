package quality

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// Minimal RIFF/WAVE reader covering the formats the separation engines
// emit: PCM 16-bit and IEEE float 32-bit, any channel count (downmixed to
// mono by averaging).

const (
	waveFormatPCM        = 1
	waveFormatIEEEFloat  = 3
	waveFormatExtensible = 0xFFFE
)

// ReadWAV loads a WAVE file as a mono float64 signal in [-1, 1] and returns
// its sample rate.
func ReadWAV(path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		pcm           []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, errors.New("wav: truncated fmt chunk")
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format == waveFormatExtensible && chunkSize >= 40 {
				// Sub-format GUID starts with the effective format code.
				format = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
		case "data":
			pcm = data[body : body+chunkSize]
		}
		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, errors.New("wav: missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, errors.New("wav: missing data chunk")
	}

	var samples []float64
	switch {
	case format == waveFormatPCM && bitsPerSample == 16:
		samples = decodePCM16(pcm, int(channels))
	case format == waveFormatIEEEFloat && bitsPerSample == 32:
		samples = decodeFloat32(pcm, int(channels))
	default:
		return nil, 0, fmt.Errorf("wav: unsupported format %d with %d bits per sample", format, bitsPerSample)
	}
	return samples, int(sampleRate), nil
}

func decodePCM16(pcm []byte, channels int) []float64 {
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			raw := int16(binary.LittleEndian.Uint16(pcm[base+2*ch : base+2*ch+2]))
			sum += float64(raw) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}
	return samples
}

func decodeFloat32(pcm []byte, channels int) []float64 {
	frameBytes := 4 * channels
	frames := len(pcm) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			bits := binary.LittleEndian.Uint32(pcm[base+4*ch : base+4*ch+4])
			sum += float64(math.Float32frombits(bits))
		}
		samples[i] = sum / float64(channels)
	}
	return samples
}

// Resample converts a signal between sample rates with linear interpolation.
// Good enough for quality estimation; not intended for playback.
func Resample(signal []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(signal) == 0 || fromRate <= 0 || toRate <= 0 {
		return signal
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(signal)) / ratio)
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(signal)-1 {
			out[i] = signal[len(signal)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = signal[idx]*(1-frac) + signal[idx+1]*frac
	}
	return out
}
