package spectral

import (
	"fmt"
)

// FeatureMatrix is an ordered sequence of fixed-dimension feature frames.
// Rows are frames at hop intervals, columns are feature dimensions. The
// shape is fixed at construction and validated.
type FeatureMatrix struct {
	rows       [][]float64
	dim        int
	hopSeconds float64
}

// NewFeatureMatrix wraps rows into a FeatureMatrix, validating that every
// row has the same dimension.
func NewFeatureMatrix(rows [][]float64, hopSeconds float64) (*FeatureMatrix, error) {
	if hopSeconds <= 0 {
		return nil, fmt.Errorf("hop must be positive: %f", hopSeconds)
	}

	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}

	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(row), dim)
		}
	}

	return &FeatureMatrix{
		rows:       rows,
		dim:        dim,
		hopSeconds: hopSeconds,
	}, nil
}

// NumFrames returns the number of frames (rows)
func (fm *FeatureMatrix) NumFrames() int {
	return len(fm.rows)
}

// Dim returns the feature dimension (columns)
func (fm *FeatureMatrix) Dim() int {
	return fm.dim
}

// HopSeconds returns the frame hop interval in seconds
func (fm *FeatureMatrix) HopSeconds() float64 {
	return fm.hopSeconds
}

// Row returns frame i. The returned slice is not a copy.
func (fm *FeatureMatrix) Row(i int) []float64 {
	return fm.rows[i]
}

// Rows returns the underlying frame slice. The result is not a copy.
func (fm *FeatureMatrix) Rows() [][]float64 {
	return fm.rows
}

// FrameTime returns the timestamp of frame i in seconds
func (fm *FeatureMatrix) FrameTime(i int) float64 {
	return float64(i) * fm.hopSeconds
}

// Duration returns the time span covered by the frames in seconds
func (fm *FeatureMatrix) Duration() float64 {
	return float64(len(fm.rows)) * fm.hopSeconds
}
