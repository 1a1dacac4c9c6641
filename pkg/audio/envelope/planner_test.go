package envelope

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedParams() PlanParams {
	return PlanParams{
		IntroStart:      10.0,
		IntroEnd:        40.0,
		EpisodeDuration: 1200.0,
		FadeSeconds:     0.5,
		Mode:            ModeFixedDB,
		DuckDB:          -12.0,
	}
}

func TestPlanFixedBreakpoints(t *testing.T) {
	plan, err := NewPlan(fixedParams())
	require.NoError(t, err)

	want := []Breakpoint{
		{T: 0, GainDB: 0},
		{T: 10, GainDB: 0},
		{T: 10.5, GainDB: -12},
		{T: 39.5, GainDB: -12},
		{T: 40, GainDB: 0},
	}
	assert.Equal(t, want, plan.Envelope.Breakpoints())
	assert.Equal(t, ModeFixedDB, plan.Mode)
	assert.InDelta(t, -12.0, plan.PlateauDB, 1e-12)
}

func TestPlanEndpointsAndContinuity(t *testing.T) {
	plan, err := NewPlan(fixedParams())
	require.NoError(t, err)
	env := plan.Envelope

	assert.InDelta(t, 0.0, env.Value(0), 1e-12)
	assert.InDelta(t, 0.0, env.Value(1200), 1e-12)

	// Left and right limits agree at every breakpoint
	for _, bp := range env.Breakpoints() {
		left := env.Value(bp.T - 1e-9)
		right := env.Value(bp.T + 1e-9)
		assert.InDelta(t, left, right, 1e-6, "discontinuity at t=%f", bp.T)
		assert.InDelta(t, bp.GainDB, env.Value(bp.T), 1e-6)
	}

	// Mid-fade is halfway down in dB
	assert.InDelta(t, -6.0, env.Value(10.25), 1e-9)
	assert.InDelta(t, math.Pow(10, -12.0/20.0), env.Multiplier(20.0), 1e-12)
}

func TestPlanFadeCollapse(t *testing.T) {
	params := fixedParams()
	params.IntroStart = 10.0
	params.IntroEnd = 10.8
	params.FadeSeconds = 0.5 // 2*fade >= interval

	plan, err := NewPlan(params)
	require.NoError(t, err)

	want := []Breakpoint{
		{T: 0, GainDB: 0},
		{T: 10, GainDB: 0},
		{T: 10.4, GainDB: -12},
		{T: 10.8, GainDB: 0},
	}
	assert.Equal(t, want, plan.Envelope.Breakpoints())
}

func TestPlanTargetLUFS(t *testing.T) {
	params := fixedParams()
	params.Mode = ModeTargetLUFS
	params.TargetLUFS = -24.0
	params.IntroLUFS = -14.0
	params.IntroLUFSValid = true

	plan, err := NewPlan(params)
	require.NoError(t, err)

	assert.InDelta(t, -10.0, plan.PlateauDB, 1e-12)
	assert.Equal(t, ModeTargetLUFS, plan.Mode)
	assert.False(t, plan.FellBack)
}

func TestPlanTargetLUFSClamped(t *testing.T) {
	params := fixedParams()
	params.Mode = ModeTargetLUFS
	params.IntroLUFSValid = true

	// Would be -30 dB: clamped to -24
	params.TargetLUFS = -44.0
	params.IntroLUFS = -14.0
	plan, err := NewPlan(params)
	require.NoError(t, err)
	assert.InDelta(t, -24.0, plan.PlateauDB, 1e-12)

	// Would be +6 dB: clamped to 0
	params.TargetLUFS = -8.0
	plan, err = NewPlan(params)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, plan.PlateauDB, 1e-12)
}

func TestPlanTargetFallback(t *testing.T) {
	params := fixedParams()
	params.Mode = ModeTargetLUFS
	params.TargetLUFS = -24.0
	params.IntroLUFSValid = false

	plan, err := NewPlan(params)
	require.NoError(t, err)

	fixed, err := NewPlan(fixedParams())
	require.NoError(t, err)

	assert.True(t, plan.FellBack)
	assert.Equal(t, ModeFixedDB, plan.Mode)
	assert.Equal(t, fixed.Envelope.Breakpoints(), plan.Envelope.Breakpoints())
}

func TestPlanRejectsBadIntervals(t *testing.T) {
	var intervalErr *IntervalError

	params := fixedParams()
	params.IntroStart = -1
	_, err := NewPlan(params)
	require.ErrorAs(t, err, &intervalErr)

	params = fixedParams()
	params.IntroEnd = params.IntroStart
	_, err = NewPlan(params)
	require.ErrorAs(t, err, &intervalErr)

	params = fixedParams()
	params.IntroEnd = 2000.0
	_, err = NewPlan(params)
	require.ErrorAs(t, err, &intervalErr)

	params = fixedParams()
	params.FadeSeconds = 0.01
	_, err = NewPlan(params)
	require.ErrorAs(t, err, &intervalErr)

	// Amplification is rejected until a boost flag exists
	params = fixedParams()
	params.DuckDB = 3.0
	_, err = NewPlan(params)
	require.ErrorAs(t, err, &intervalErr)
}

func TestPlanZeroStart(t *testing.T) {
	params := fixedParams()
	params.IntroStart = 0

	plan, err := NewPlan(params)
	require.NoError(t, err)

	bps := plan.Envelope.Breakpoints()
	require.NotEmpty(t, bps)
	assert.InDelta(t, 0.0, bps[0].T, 1e-12)
	for i := 1; i < len(bps); i++ {
		assert.Greater(t, bps[i].T, bps[i-1].T)
	}
}
