package loudness

import (
	"math"
)

// K-weighting analog prototypes from ITU-R BS.1770-4. The standard
// tabulates coefficients for 48 kHz only; re-deriving the biquads from the
// analog prototypes keeps the response correct at the analysis rate.
const (
	shelfFreq = 1681.974450955533
	shelfGain = 3.999843853973347
	shelfQ    = 0.7071752369554196

	highpassFreq = 38.13547087602444
	highpassQ    = 0.5003270373238773
)

// biquad is a second-order IIR section, Direct Form II.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	w1, w2 float64
}

// Process filters a single sample.
// The difference equations are:
//
//	w[n] = x[n] - a1*w[n-1] - a2*w[n-2]
//	y[n] = b0*w[n] + b1*w[n-1] + b2*w[n-2]
func (bq *biquad) Process(input float64) float64 {
	w := input - bq.a1*bq.w1 - bq.a2*bq.w2
	output := bq.b0*w + bq.b1*bq.w1 + bq.b2*bq.w2

	bq.w2 = bq.w1
	bq.w1 = w

	return output
}

// Reset clears the delay line. Call between discontinuous segments.
func (bq *biquad) Reset() {
	bq.w1, bq.w2 = 0.0, 0.0
}

// newShelfStage builds the high-frequency shelving stage (head effect
// model) for the given sample rate via bilinear transform.
func newShelfStage(sampleRate int) *biquad {
	k := math.Tan(math.Pi * shelfFreq / float64(sampleRate))
	vh := math.Pow(10.0, shelfGain/20.0)
	vb := math.Pow(vh, 0.4996667741545416)

	a0 := 1.0 + k/shelfQ + k*k

	return &biquad{
		b0: (vh + vb*k/shelfQ + k*k) / a0,
		b1: 2.0 * (k*k - vh) / a0,
		b2: (vh - vb*k/shelfQ + k*k) / a0,
		a1: 2.0 * (k*k - 1.0) / a0,
		a2: (1.0 - k/shelfQ + k*k) / a0,
	}
}

// newHighpassStage builds the low-frequency high-pass stage for the given
// sample rate.
func newHighpassStage(sampleRate int) *biquad {
	k := math.Tan(math.Pi * highpassFreq / float64(sampleRate))

	a0 := 1.0 + k/highpassQ + k*k

	return &biquad{
		b0: 1.0,
		b1: -2.0,
		b2: 1.0,
		a1: 2.0 * (k*k - 1.0) / a0,
		a2: (1.0 - k/highpassQ + k*k) / a0,
	}
}

// KWeighting is the two-stage BS.1770 pre-filter: shelving followed by
// high-pass.
type KWeighting struct {
	shelf    *biquad
	highpass *biquad
}

// NewKWeighting creates a K-weighting filter chain for the sample rate
func NewKWeighting(sampleRate int) *KWeighting {
	return &KWeighting{
		shelf:    newShelfStage(sampleRate),
		highpass: newHighpassStage(sampleRate),
	}
}

// Process filters a single sample through both stages
func (kw *KWeighting) Process(input float64) float64 {
	return kw.highpass.Process(kw.shelf.Process(input))
}

// ProcessBuffer filters a buffer, returning a new slice
func (kw *KWeighting) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = kw.Process(sample)
	}
	return output
}

// Reset clears both stages' state
func (kw *KWeighting) Reset() {
	kw.shelf.Reset()
	kw.highpass.Reset()
}
