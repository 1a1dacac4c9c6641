package envelope

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterSpec is the serialized form of an envelope handed to the external
// renderer. Expression evaluates to the amplitude multiplier 10^(dB(t)/20)
// at any playback time t; only the audio stream is re-encoded, video and
// subtitles are stream-copied by the renderer.
type FilterSpec struct {
	Expression string  `json:"expression"`
	Duration   float64 `json:"duration_seconds"`
}

// AudioFilter returns the complete ffmpeg audio filter argument.
// eval=frame forces per-frame re-evaluation of the time expression.
func (fs *FilterSpec) AudioFilter() string {
	return fmt.Sprintf("volume='%s':eval=frame", fs.Expression)
}

// Synthesize serializes the envelope into a FilterSpec. Constant spans
// emit a precomputed multiplier; ramps emit a clamped linear-in-dB segment
// wrapped in pow(10, ./20).
func Synthesize(env *Envelope, episodeDuration float64) *FilterSpec {
	return &FilterSpec{
		Expression: buildExpression(env),
		Duration:   episodeDuration,
	}
}

func buildExpression(env *Envelope) string {
	bps := env.Breakpoints()
	if len(bps) == 0 {
		return "1"
	}

	// Innermost term: gain held after the last breakpoint
	expr := fnum(dbToMultiplier(bps[len(bps)-1].GainDB))

	// Wrap segments back to front: if(lt(t,T_i), segment_i, rest)
	for i := len(bps) - 1; i >= 1; i-- {
		segment := segmentExpression(bps[i-1], bps[i])
		expr = fmt.Sprintf("if(lt(t,%s),%s,%s)", fnum(bps[i].T), segment, expr)
	}

	if bps[0].T > 0 {
		expr = fmt.Sprintf("if(lt(t,%s),%s,%s)", fnum(bps[0].T), fnum(dbToMultiplier(bps[0].GainDB)), expr)
	}

	return expr
}

// segmentExpression renders the span between two breakpoints
func segmentExpression(from, to Breakpoint) string {
	if from.GainDB == to.GainDB {
		return fnum(dbToMultiplier(from.GainDB))
	}

	// dB(t) = g0 + (g1-g0) * (t-t0)/(t1-t0), then back to amplitude
	delta := fnum(to.GainDB - from.GainDB)

	var sb strings.Builder
	sb.WriteString("pow(10,(")
	sb.WriteString(fnum(from.GainDB))
	if !strings.HasPrefix(delta, "-") {
		sb.WriteString("+")
	}
	sb.WriteString(delta)
	sb.WriteString("*(t-")
	sb.WriteString(fnum(from.T))
	sb.WriteString(")/")
	sb.WriteString(fnum(to.T - from.T))
	sb.WriteString(")/20)")
	return sb.String()
}

func dbToMultiplier(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// fnum formats a float compactly for the expression evaluator
func fnum(v float64) string {
	return strconv.FormatFloat(round6(v), 'f', -1, 64)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
