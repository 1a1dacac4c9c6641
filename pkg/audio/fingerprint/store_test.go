package fingerprint

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samjhill/intro-tamer/pkg/audio/spectral"
)

func buildTestReference(t *testing.T, params spectral.ExtractorParams, startSec, endSec float64) *Reference {
	t.Helper()

	extractor, err := spectral.NewExtractor(params)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(99))
	pcm := make([]float64, int((endSec-startSec)*float64(params.SampleRate)))
	for i := range pcm {
		pcm[i] = 0.4 * (rng.Float64()*2 - 1)
	}

	features, err := extractor.Extract(pcm)
	require.NoError(t, err)

	ref, err := NewReference(features, params, startSec, endSec, "store-test")
	require.NoError(t, err)
	return ref
}

func TestStoreRoundTrip(t *testing.T) {
	params := spectral.DefaultExtractorParams()
	ref := buildTestReference(t, params, 18.0, 28.0)

	path := filepath.Join(t.TempDir(), "presets", "show.fp")
	require.NoError(t, Save(ref, path))

	loaded, err := Load(path, params)
	require.NoError(t, err)

	assert.Equal(t, ref.SampleRate, loaded.SampleRate)
	assert.Equal(t, ref.HopLength, loaded.HopLength)
	assert.Equal(t, ref.WindowLength, loaded.WindowLength)
	assert.Equal(t, ref.NumCoefficients, loaded.NumCoefficients)
	assert.Equal(t, ref.StartTime, loaded.StartTime)
	assert.Equal(t, ref.EndTime, loaded.EndTime)
	assert.Equal(t, ref.Label, loaded.Label)
	require.Equal(t, ref.NumFrames(), loaded.NumFrames())
	assert.Equal(t, ref.Features, loaded.Features)
}

func TestStoreReferenceFrameCount(t *testing.T) {
	// A 50 s reference at the default parameters lands within one frame
	// of duration/hop.
	params := spectral.DefaultExtractorParams()
	ref := buildTestReference(t, params, 18.0, 68.0)

	wantFrames := int(50.0 / 0.02)
	assert.InDelta(t, float64(wantFrames), float64(ref.NumFrames()), 1)
	assert.Equal(t, 22050, ref.SampleRate)
}

func TestLoadRejectsIncompatibleParams(t *testing.T) {
	params := spectral.DefaultExtractorParams()
	ref := buildTestReference(t, params, 0.0, 10.0)

	path := filepath.Join(t.TempDir(), "show.fp")
	require.NoError(t, Save(ref, path))

	var incompatible *IncompatibleError

	mismatched := params
	mismatched.SampleRate = 44100
	_, err := Load(path, mismatched)
	require.ErrorAs(t, err, &incompatible)
	assert.Equal(t, "sample_rate", incompatible.Field)

	mismatched = params
	mismatched.NumCoefficients = 13
	_, err = Load(path, mismatched)
	require.ErrorAs(t, err, &incompatible)
	// Window and hop still agree; the coefficient count is the mismatch
	assert.Equal(t, "n_mfcc", incompatible.Field)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-fingerprint")
	require.NoError(t, os.WriteFile(path, []byte("mkv data, allegedly"), 0o644))

	_, err := Load(path, spectral.DefaultExtractorParams())
	assert.Error(t, err)
}

func TestSaveRejectsEmpty(t *testing.T) {
	err := Save(&Reference{}, filepath.Join(t.TempDir(), "empty.fp"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReferenceDurationInvariant(t *testing.T) {
	params := spectral.DefaultExtractorParams()

	extractor, err := spectral.NewExtractor(params)
	require.NoError(t, err)

	pcm := make([]float64, 10*params.SampleRate)
	features, err := extractor.Extract(pcm)
	require.NoError(t, err)

	// Labeled interval wildly disagrees with the feature duration
	_, err = NewReference(features, params, 0.0, 60.0, "bad-label")
	assert.Error(t, err)
}
