package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal.
// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}

// PowerSpectrum computes the one-sided power spectrum of a real signal.
// The result has len(x)/2+1 bins (DC through Nyquist).
func (f *FFT) PowerSpectrum(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	spectrum := fft.FFTReal(x)
	bins := len(x)/2 + 1

	power := make([]float64, bins)
	for i := range bins {
		mag := cmplx.Abs(spectrum[i])
		power[i] = mag * mag
	}

	return power
}
