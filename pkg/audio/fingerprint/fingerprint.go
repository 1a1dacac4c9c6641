package fingerprint

import (
	"errors"
	"fmt"
	"math"

	"github.com/samjhill/intro-tamer/pkg/audio/spectral"
)

// ErrEmpty reports a reference with zero feature frames
var ErrEmpty = errors.New("fingerprint has no feature frames")

// Reference is a persisted intro fingerprint: the z-normalized feature
// matrix of a hand-labeled intro plus the extraction parameters it was
// built with. References are immutable after load and safe to share
// across parallel workers.
type Reference struct {
	Features [][]float32 `json:"-"` // [n_frames][n_mfcc]

	SampleRate      int `json:"sample_rate"`
	HopLength       int `json:"hop_length"`    // samples
	WindowLength    int `json:"window_length"` // samples
	NumCoefficients int `json:"n_mfcc"`

	StartTime float64 `json:"start_time"` // seconds, in the reference episode
	EndTime   float64 `json:"end_time"`
	Label     string  `json:"label"`
}

// NewReference builds a Reference from the feature matrix of an intro
// segment. The matrix duration must agree with end-start within two hops
// plus one window.
func NewReference(features *spectral.FeatureMatrix, params spectral.ExtractorParams, startTime, endTime float64, label string) (*Reference, error) {
	if features.NumFrames() == 0 {
		return nil, ErrEmpty
	}
	if endTime <= startTime {
		return nil, fmt.Errorf("reference end %.3f not after start %.3f", endTime, startTime)
	}

	slack := 2*params.HopSeconds() + float64(params.WindowSamples())/float64(params.SampleRate)
	if diff := math.Abs(features.Duration() - (endTime - startTime)); diff > slack {
		return nil, fmt.Errorf("feature duration %.3fs disagrees with labeled interval %.3fs",
			features.Duration(), endTime-startTime)
	}

	rows := make([][]float32, features.NumFrames())
	for i := range rows {
		src := features.Row(i)
		row := make([]float32, len(src))
		for j, v := range src {
			row[j] = float32(v)
		}
		rows[i] = row
	}

	return &Reference{
		Features:        rows,
		SampleRate:      params.SampleRate,
		HopLength:       params.HopSamples(),
		WindowLength:    params.WindowSamples(),
		NumCoefficients: params.NumCoefficients,
		StartTime:       startTime,
		EndTime:         endTime,
		Label:           label,
	}, nil
}

// NumFrames returns the reference length in frames
func (r *Reference) NumFrames() int {
	return len(r.Features)
}

// HopSeconds returns the frame hop in seconds
func (r *Reference) HopSeconds() float64 {
	return float64(r.HopLength) / float64(r.SampleRate)
}

// Duration returns the fingerprint's covered time span in seconds
func (r *Reference) Duration() float64 {
	return float64(len(r.Features)) * r.HopSeconds()
}

// features64 converts the stored float32 rows for matching
func (r *Reference) features64() [][]float64 {
	rows := make([][]float64, len(r.Features))
	for i, src := range r.Features {
		row := make([]float64, len(src))
		for j, v := range src {
			row[j] = float64(v)
		}
		rows[i] = row
	}
	return rows
}

// Validate checks the reference against the extractor configuration that
// will produce candidate features. Any disagreement is fatal: features
// extracted under different parameters are not comparable, and resampling
// stored features is not attempted.
func (r *Reference) Validate(params spectral.ExtractorParams) error {
	if len(r.Features) == 0 {
		return ErrEmpty
	}

	if r.SampleRate != params.SampleRate {
		return &IncompatibleError{Field: "sample_rate", Want: params.SampleRate, Got: r.SampleRate}
	}
	if r.HopLength != params.HopSamples() {
		return &IncompatibleError{Field: "hop_length", Want: params.HopSamples(), Got: r.HopLength}
	}
	if r.WindowLength != params.WindowSamples() {
		return &IncompatibleError{Field: "window_length", Want: params.WindowSamples(), Got: r.WindowLength}
	}
	if r.NumCoefficients != params.NumCoefficients {
		return &IncompatibleError{Field: "n_mfcc", Want: params.NumCoefficients, Got: r.NumCoefficients}
	}

	for i, row := range r.Features {
		if len(row) != r.NumCoefficients {
			return fmt.Errorf("reference row %d has dimension %d, want %d", i, len(row), r.NumCoefficients)
		}
	}

	return nil
}

// IncompatibleError reports a reference whose extraction parameters do not
// match the current configuration.
type IncompatibleError struct {
	Field string
	Want  int
	Got   int
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("fingerprint incompatible: %s is %d, extractor uses %d", e.Field, e.Got, e.Want)
}
