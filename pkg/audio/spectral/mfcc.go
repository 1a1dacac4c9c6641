package spectral

import (
	"fmt"
	"math"
)

// logFloor guards the log of empty mel bands
const logFloor = 1e-10

// MFCC computes Mel-Frequency Cepstral Coefficients from power spectra.
// The first coefficient (C0, log energy) is retained: for template matching
// the overall energy contour is a useful discriminator.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64

	melScale    *MelScale
	filterBank  [][]float64
	dctMatrix   [][]float64
	initialized bool
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 20)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 40)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
}

// NewMFCC creates a new MFCC computer
func NewMFCC(sampleRate int, params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 20
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 40
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}

	return &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		melScale:        NewMelScale(),
	}
}

// Initialize prepares the filter bank and DCT matrix for the given FFT size
func (m *MFCC) Initialize(fftSize int) error {
	if fftSize <= 0 {
		return fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	m.filterBank = m.melScale.CreateMelFilterBank(
		m.numMelFilters,
		fftSize,
		m.sampleRate,
		m.lowFreq,
		m.highFreq,
	)

	if len(m.filterBank) == 0 {
		return fmt.Errorf("failed to create mel filter bank")
	}

	m.createDCTMatrix()

	m.initialized = true
	return nil
}

// Compute calculates MFCC coefficients from a one-sided power spectrum
func (m *MFCC) Compute(powerSpectrum []float64) ([]float64, error) {
	if len(powerSpectrum) == 0 {
		return nil, fmt.Errorf("empty power spectrum")
	}

	if !m.initialized {
		fftSize := (len(powerSpectrum) - 1) * 2
		if err := m.Initialize(fftSize); err != nil {
			return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
		}
	}

	melSpectrum := m.melScale.ApplyFilterBank(powerSpectrum, m.filterBank)

	logMelSpectrum := make([]float64, len(melSpectrum))
	for i, mel := range melSpectrum {
		if mel > logFloor {
			logMelSpectrum[i] = math.Log(mel)
		} else {
			logMelSpectrum[i] = math.Log(logFloor)
		}
	}

	return m.applyDCT(logMelSpectrum), nil
}

// createDCTMatrix creates the DCT-II matrix with orthonormal scaling
func (m *MFCC) createDCTMatrix() {
	m.dctMatrix = make([][]float64, m.numCoefficients)

	for k := range m.numCoefficients {
		m.dctMatrix[k] = make([]float64, m.numMelFilters)

		for n := range m.numMelFilters {
			m.dctMatrix[k][n] = math.Cos(math.Pi * float64(k) * (float64(n) + 0.5) / float64(m.numMelFilters))

			if k == 0 {
				m.dctMatrix[k][n] *= math.Sqrt(1.0 / float64(m.numMelFilters))
			} else {
				m.dctMatrix[k][n] *= math.Sqrt(2.0 / float64(m.numMelFilters))
			}
		}
	}
}

func (m *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, m.numCoefficients)

	for k := range m.numCoefficients {
		sum := 0.0
		for n := 0; n < len(logMelSpectrum) && n < len(m.dctMatrix[k]); n++ {
			sum += logMelSpectrum[n] * m.dctMatrix[k][n]
		}
		coeffs[k] = sum
	}

	return coeffs
}

// GetParams returns the current MFCC parameters
func (m *MFCC) GetParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: m.numCoefficients,
		NumMelFilters:   m.numMelFilters,
		LowFreq:         m.lowFreq,
		HighFreq:        m.highFreq,
	}
}
