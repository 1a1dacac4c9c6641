package loudness

import (
	"errors"
	"math"

	"github.com/samjhill/intro-tamer/logging"
)

// ErrUndefined reports an interval too short (or too silent) for gated
// integration. Callers recover by falling back to fixed-dB ducking.
var ErrUndefined = errors.New("loudness undefined for interval")

const (
	// blockSeconds is the BS.1770 gating block length
	blockSeconds = 0.4

	// blockOverlap is the gating block overlap fraction
	blockOverlap = 0.75

	// absoluteGateLUFS drops blocks below this level outright
	absoluteGateLUFS = -70.0

	// relativeGateLU is subtracted from the absolute-gated mean to form
	// the relative threshold
	relativeGateLU = 10.0

	// loudnessOffset is the -0.691 dB calibration term from BS.1770 that
	// zeroes the K-filter gain at 997 Hz
	loudnessOffset = -0.691
)

// Meter computes EBU R128 integrated loudness over mono PCM intervals,
// following BS.1770-4: K-weighting pre-filter, 400 ms mean-square blocks at
// 75 % overlap, absolute gate at -70 LUFS, relative gate 10 LU below the
// absolute-gated mean.
type Meter struct {
	sampleRate int
	logger     logging.Logger
}

// NewMeter creates a loudness meter for the given sample rate
func NewMeter(sampleRate int) *Meter {
	return &Meter{
		sampleRate: sampleRate,
		logger:     logging.WithFields(logging.Fields{"component": "loudness_meter"}),
	}
}

// SampleRate returns the meter's sample rate
func (m *Meter) SampleRate() int {
	return m.sampleRate
}

// Integrated computes integrated loudness in LUFS for the PCM buffer.
// Returns ErrUndefined when the buffer is shorter than one gating block or
// every block is gated away.
func (m *Meter) Integrated(pcm []float64) (float64, error) {
	blockSamples := int(blockSeconds * float64(m.sampleRate))
	hopSamples := int(blockSeconds * (1.0 - blockOverlap) * float64(m.sampleRate))

	if len(pcm) < blockSamples {
		return 0, ErrUndefined
	}

	weighted := NewKWeighting(m.sampleRate).ProcessBuffer(pcm)

	// Prefix sums of squares make per-block mean squares O(1)
	prefix := make([]float64, len(weighted)+1)
	for i, v := range weighted {
		prefix[i+1] = prefix[i] + v*v
	}

	numBlocks := (len(weighted)-blockSamples)/hopSamples + 1
	powers := make([]float64, 0, numBlocks)

	for j := range numBlocks {
		start := j * hopSamples
		meanSquare := (prefix[start+blockSamples] - prefix[start]) / float64(blockSamples)

		// Absolute gate
		if blockLoudness(meanSquare) > absoluteGateLUFS {
			powers = append(powers, meanSquare)
		}
	}

	if len(powers) == 0 {
		return 0, ErrUndefined
	}

	// Relative gate: threshold 10 LU below the mean of surviving blocks.
	// Averaging happens in the power domain, per the standard.
	relativeThreshold := blockLoudness(mean(powers)) - relativeGateLU

	gated := powers[:0]
	for _, p := range powers {
		if blockLoudness(p) > relativeThreshold {
			gated = append(gated, p)
		}
	}

	if len(gated) == 0 {
		return 0, ErrUndefined
	}

	integrated := blockLoudness(mean(gated))

	m.logger.Debug("Integrated loudness computed", logging.Fields{
		"samples":        len(pcm),
		"blocks":         numBlocks,
		"gated_blocks":   len(gated),
		"loudness_lufs":  integrated,
		"rel_gate_lufs":  relativeThreshold,
		"block_samples":  blockSamples,
		"hop_samples":    hopSamples,
	})

	return integrated, nil
}

// IntegratedInterval measures loudness over [start, end) seconds of the
// buffer, clamped to the buffer bounds.
func (m *Meter) IntegratedInterval(pcm []float64, startSec, endSec float64) (float64, error) {
	start := int(startSec * float64(m.sampleRate))
	end := int(endSec * float64(m.sampleRate))

	start = max(start, 0)
	end = min(end, len(pcm))

	if start >= end {
		return 0, ErrUndefined
	}

	return m.Integrated(pcm[start:end])
}

// ShortTerm computes ungated K-weighted loudness over a window of the
// buffer. Used by the heuristic detector, which compares adjacent windows
// rather than absolute levels.
func (m *Meter) ShortTerm(pcm []float64, startSec, windowSec float64) (float64, error) {
	start := int(startSec * float64(m.sampleRate))
	end := start + int(windowSec*float64(m.sampleRate))

	if start < 0 || end > len(pcm) || start >= end {
		return 0, ErrUndefined
	}

	weighted := NewKWeighting(m.sampleRate).ProcessBuffer(pcm[start:end])

	sum := 0.0
	for _, v := range weighted {
		sum += v * v
	}

	return blockLoudness(sum / float64(len(weighted))), nil
}

// blockLoudness maps a mean-square power to LUFS
func blockLoudness(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return math.Inf(-1)
	}
	return loudnessOffset + 10.0*math.Log10(meanSquare)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
