package loudness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 22050

func sine(freq, amplitude, seconds float64) []float64 {
	n := int(seconds * testSampleRate)
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return pcm
}

func TestIntegratedSineCalibration(t *testing.T) {
	meter := NewMeter(testSampleRate)

	// BS.1770: a 997 Hz sine at 0 dBFS reads -3.01 LKFS, so -20 dBFS
	// reads -23.01. The -0.691 offset cancels the K-filter gain there.
	lufs, err := meter.Integrated(sine(997, 0.1, 5.0))
	require.NoError(t, err)
	assert.InDelta(t, -23.01, lufs, 0.5)
}

func TestIntegratedGainMonotonicity(t *testing.T) {
	meter := NewMeter(testSampleRate)
	pcm := sine(997, 0.1, 5.0)

	before, err := meter.Integrated(pcm)
	require.NoError(t, err)

	ducked := make([]float64, len(pcm))
	scale := math.Pow(10, -10.0/20.0)
	for i, v := range pcm {
		ducked[i] = v * scale
	}

	after, err := meter.Integrated(ducked)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, before-after, 0.5)
}

func TestIntegratedShortInterval(t *testing.T) {
	meter := NewMeter(testSampleRate)

	// 300 ms is below the 400 ms gating block minimum
	_, err := meter.Integrated(sine(997, 0.5, 0.3))
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestIntegratedSilence(t *testing.T) {
	meter := NewMeter(testSampleRate)

	_, err := meter.Integrated(make([]float64, testSampleRate*2))
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestIntegratedIntervalBounds(t *testing.T) {
	meter := NewMeter(testSampleRate)
	pcm := sine(997, 0.1, 10.0)

	full, err := meter.Integrated(pcm)
	require.NoError(t, err)

	windowed, err := meter.IntegratedInterval(pcm, 2.0, 8.0)
	require.NoError(t, err)
	assert.InDelta(t, full, windowed, 0.2)

	_, err = meter.IntegratedInterval(pcm, 9.99, 9.995)
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestAbsoluteGateIgnoresSilentStretch(t *testing.T) {
	meter := NewMeter(testSampleRate)

	tone := sine(997, 0.1, 5.0)
	loud, err := meter.Integrated(tone)
	require.NoError(t, err)

	// Appending silence must not drag integrated loudness down: those
	// blocks fall below the absolute gate.
	padded := append(append([]float64{}, tone...), make([]float64, testSampleRate*5)...)
	gated, err := meter.Integrated(padded)
	require.NoError(t, err)

	assert.InDelta(t, loud, gated, 0.3)
}

func TestShortTermWindow(t *testing.T) {
	meter := NewMeter(testSampleRate)

	quiet := sine(997, 0.05, 10.0)
	loudSpan := sine(997, 0.5, 10.0)
	copy(quiet[5*testSampleRate:], loudSpan[5*testSampleRate:])

	early, err := meter.ShortTerm(quiet, 1.0, 3.0)
	require.NoError(t, err)
	late, err := meter.ShortTerm(quiet, 6.0, 3.0)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, late-early, 0.5)

	_, err = meter.ShortTerm(quiet, 9.0, 3.0)
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestKWeightingResponse(t *testing.T) {
	kw := NewKWeighting(testSampleRate)

	// Very low frequencies are attenuated by the high-pass stage
	low := kw.ProcessBuffer(sine(20, 0.5, 2.0))
	kw.Reset()
	mid := kw.ProcessBuffer(sine(997, 0.5, 2.0))

	rms := func(xs []float64) float64 {
		sum := 0.0
		for _, x := range xs[len(xs)/2:] { // skip transient
			sum += x * x
		}
		return math.Sqrt(sum / float64(len(xs)/2))
	}

	assert.Less(t, rms(low), rms(mid)*0.5)
}
