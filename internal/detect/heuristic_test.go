package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samjhill/intro-tamer/pkg/audio/loudness"
)

const sampleRate = 22050

// episodeWithIntro builds PCM with a quiet cold open, a loud span, then
// quiet content again.
func episodeWithIntro(introStart, introEnd, total float64) []float64 {
	pcm := make([]float64, int(total*sampleRate))
	for i := range pcm {
		t := float64(i) / sampleRate
		amplitude := 0.02
		if t >= introStart && t < introEnd {
			amplitude = 0.4
		}
		pcm[i] = amplitude * math.Sin(2*math.Pi*440*t)
	}
	return pcm
}

func TestHeuristicFindsLoudnessJump(t *testing.T) {
	meter := loudness.NewMeter(sampleRate)
	detector := NewHeuristic(DefaultHeuristicConfig(), meter)

	bounds := detector.Detect(episodeWithIntro(20.0, 60.0, 120.0))
	require.NotNil(t, bounds)

	// Window granularity is 2 s hops with 5 s windows; a window that
	// partially overlaps the intro can trigger early
	assert.InDelta(t, 20.0, bounds.Start, 5.0)
	assert.InDelta(t, 60.0, bounds.End, 6.0)
	assert.InDelta(t, 0.6, bounds.Confidence, 1e-9)
}

func TestHeuristicNoJump(t *testing.T) {
	meter := loudness.NewMeter(sampleRate)
	detector := NewHeuristic(DefaultHeuristicConfig(), meter)

	// Uniform level: nothing to find
	flat := episodeWithIntro(0, 0, 120.0)
	assert.Nil(t, detector.Detect(flat))
}

func TestHeuristicEnforcesMinimumDuration(t *testing.T) {
	meter := loudness.NewMeter(sampleRate)
	detector := NewHeuristic(DefaultHeuristicConfig(), meter)

	// A 2 s loud blip is stretched to the minimum intro duration
	bounds := detector.Detect(episodeWithIntro(20.0, 22.0, 120.0))
	require.NotNil(t, bounds)
	assert.GreaterOrEqual(t, bounds.End-bounds.Start, 15.0)
}

func TestHeuristicShortEpisode(t *testing.T) {
	meter := loudness.NewMeter(sampleRate)
	detector := NewHeuristic(DefaultHeuristicConfig(), meter)

	assert.Nil(t, detector.Detect(make([]float64, sampleRate*3)))
}
