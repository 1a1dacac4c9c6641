package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/samjhill/intro-tamer/logging"
)

// minStdDev below which a column is treated as constant during
// normalization (the divisor is forced to 1)
const minStdDev = 1e-6

// ExtractorParams configures feature extraction. The parameters are a
// value threaded into each request, not process state, so parallel batch
// workers cannot race.
type ExtractorParams struct {
	SampleRate      int     `json:"sample_rate"`      // Analysis sample rate (default: 22050)
	WindowMS        float64 `json:"window_ms"`        // Analysis window in milliseconds (default: 25)
	HopMS           float64 `json:"hop_ms"`           // Frame hop in milliseconds (default: 20)
	NumMelFilters   int     `json:"num_mel_filters"`  // Mel bands (default: 40)
	NumCoefficients int     `json:"num_coefficients"` // MFCC coefficients kept (default: 20)
}

// DefaultExtractorParams returns the standard analysis configuration
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		SampleRate:      22050,
		WindowMS:        25,
		HopMS:           20,
		NumMelFilters:   40,
		NumCoefficients: 20,
	}
}

// WindowSamples returns the analysis window length in samples
func (p ExtractorParams) WindowSamples() int {
	return int(p.WindowMS * float64(p.SampleRate) / 1000.0)
}

// HopSamples returns the frame hop in samples
func (p ExtractorParams) HopSamples() int {
	return int(p.HopMS * float64(p.SampleRate) / 1000.0)
}

// HopSeconds returns the frame hop in seconds
func (p ExtractorParams) HopSeconds() float64 {
	return float64(p.HopSamples()) / float64(p.SampleRate)
}

// Extractor converts mono PCM into a z-normalized MFCC feature matrix.
// Extraction is deterministic: identical PCM and parameters produce
// bit-identical matrices.
type Extractor struct {
	params ExtractorParams
	window *Hann
	fft    *FFT
	mfcc   *MFCC
	logger logging.Logger
}

// NewExtractor creates a feature extractor for the given parameters
func NewExtractor(params ExtractorParams) (*Extractor, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", params.SampleRate)
	}
	if params.WindowMS <= 0 || params.HopMS <= 0 {
		return nil, fmt.Errorf("window and hop must be positive: window=%f hop=%f", params.WindowMS, params.HopMS)
	}
	if params.NumCoefficients <= 0 || params.NumMelFilters < params.NumCoefficients {
		return nil, fmt.Errorf("need 0 < coefficients <= mel filters: mfcc=%d mels=%d",
			params.NumCoefficients, params.NumMelFilters)
	}

	windowSize := params.WindowSamples()

	mfcc := NewMFCC(params.SampleRate, MFCCParams{
		NumCoefficients: params.NumCoefficients,
		NumMelFilters:   params.NumMelFilters,
	})
	if err := mfcc.Initialize(windowSize); err != nil {
		return nil, err
	}

	return &Extractor{
		params: params,
		window: NewHann(windowSize, false),
		fft:    NewFFT(),
		mfcc:   mfcc,
		logger: logging.WithFields(logging.Fields{"component": "feature_extractor"}),
	}, nil
}

// Params returns the extractor configuration
func (e *Extractor) Params() ExtractorParams {
	return e.params
}

// Extract computes the z-normalized MFCC matrix for the PCM buffer.
// Row count is floor((N-W)/hop)+1; signals shorter than one window
// produce an empty matrix.
func (e *Extractor) Extract(pcm []float64) (*FeatureMatrix, error) {
	windowSize := e.params.WindowSamples()
	hopSize := e.params.HopSamples()

	if len(pcm) < windowSize {
		return NewFeatureMatrix(nil, e.params.HopSeconds())
	}

	numFrames := (len(pcm)-windowSize)/hopSize + 1
	rows := make([][]float64, numFrames)

	frame := make([]float64, windowSize)
	for i := range numFrames {
		start := i * hopSize
		copy(frame, pcm[start:start+windowSize])

		if err := e.window.ApplyInPlace(frame); err != nil {
			return nil, err
		}

		coeffs, err := e.mfcc.Compute(e.fft.PowerSpectrum(frame))
		if err != nil {
			return nil, fmt.Errorf("failed to compute MFCC for frame %d: %w", i, err)
		}
		rows[i] = coeffs
	}

	normalizeColumns(rows)

	e.logger.Debug("Feature extraction completed", logging.Fields{
		"samples":     len(pcm),
		"frames":      numFrames,
		"dimension":   e.params.NumCoefficients,
		"hop_seconds": e.params.HopSeconds(),
	})

	return NewFeatureMatrix(rows, e.params.HopSeconds())
}

// normalizeColumns z-normalizes each feature dimension across time:
// subtract the column mean, divide by the column standard deviation.
// Near-constant columns divide by 1 instead, which makes cosine scores
// invariant to per-episode mastering gain without blowing up on silence.
func normalizeColumns(rows [][]float64) {
	if len(rows) == 0 {
		return
	}

	dim := len(rows[0])
	column := make([]float64, len(rows))

	for d := range dim {
		for i, row := range rows {
			column[i] = row[d]
		}

		mean, stddev := stat.MeanStdDev(column, nil)
		if stddev < minStdDev || len(rows) < 2 {
			stddev = 1.0
		}

		for _, row := range rows {
			row[d] = (row[d] - mean) / stddev
		}
	}
}
