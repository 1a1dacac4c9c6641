package tamer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samjhill/intro-tamer/configs"
	"github.com/samjhill/intro-tamer/pkg/audio/envelope"
	"github.com/samjhill/intro-tamer/pkg/audio/fingerprint"
	"github.com/samjhill/intro-tamer/pkg/audio/transcode"
)

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "/tv/s01e01.intro_tamed.mkv", DefaultOutputPath("/tv/s01e01.mkv"))
	assert.Equal(t, "clip.intro_tamed.mp4", DefaultOutputPath("clip.mp4"))
}

func TestReportSchema(t *testing.T) {
	plan, err := envelope.NewPlan(envelope.PlanParams{
		IntroStart:      18,
		IntroEnd:        68,
		EpisodeDuration: 1260,
		FadeSeconds:     0.12,
		Mode:            envelope.ModeFixedDB,
		DuckDB:          -9,
	})
	require.NoError(t, err)

	before := -14.2
	after := -23.2
	result := &Result{
		InputPath:        "/tv/e1.mkv",
		OutputPath:       "/tv/e1.intro_tamed.mkv",
		Detection:        Detection{Start: 18, End: 68, Score: 0.97, Source: SourceFingerprint},
		DurationSeconds:  1260.5,
		EpisodeLUFS:      -19.3,
		EpisodeLUFSValid: true,
		IntroLUFSBefore:  &before,
		IntroLUFSAfter:   &after,
		Envelope:         plan.Envelope,
	}

	data, err := json.Marshal(BuildReport(result))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "/tv/e1.mkv", decoded["input"])
	assert.Equal(t, "/tv/e1.intro_tamed.mkv", decoded["output"])

	detected := decoded["detected"].(map[string]any)
	assert.Equal(t, "fingerprint", detected["source"])
	assert.InDelta(t, 18.0, detected["start"].(float64), 1e-9)

	loudnessInfo := decoded["loudness"].(map[string]any)
	assert.InDelta(t, -19.3, loudnessInfo["episode_lufs"].(float64), 1e-9)
	assert.InDelta(t, -14.2, loudnessInfo["intro_lufs_before"].(float64), 1e-9)

	breakpoints := decoded["envelope"].([]any)
	assert.Len(t, breakpoints, 5)
	first := breakpoints[0].([]any)
	assert.InDelta(t, 0.0, first[0].(float64), 1e-9)

	assert.InDelta(t, 1260.5, decoded["duration_seconds"].(float64), 1e-9)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, "/tv/e1.intro_tamed.json", ReportPath("/tv/e1.intro_tamed.mkv"))
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	result := &Result{
		InputPath:  filepath.Join(dir, "e1.mkv"),
		OutputPath: filepath.Join(dir, "e1.intro_tamed.mkv"),
		Detection:  Detection{Start: 10, End: 40, Score: 1, Source: SourceManual},
	}

	require.NoError(t, WriteReport(result))

	data, err := os.ReadFile(filepath.Join(dir, "e1.intro_tamed.json"))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "manual", report.Detected.Source)
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCodeFor(nil))
	assert.Equal(t, ExitNoMatch, ExitCodeFor(&fingerprint.NoMatchError{BestScore: 0.4, Threshold: 0.55}))
	assert.Equal(t, ExitNoMatch, ExitCodeFor(fmt.Errorf("detect: %w", &fingerprint.NoMatchError{})))
	assert.Equal(t, ExitInvalidArgs, ExitCodeFor(fmt.Errorf("%w: bad timecode", ErrInvalidArguments)))
	assert.Equal(t, ExitInvalidArgs, ExitCodeFor(&envelope.IntervalError{Reason: "fade too short"}))
	assert.Equal(t, ExitExternalTool, ExitCodeFor(&transcode.DecodeError{Path: "x", Err: errors.New("boom")}))
	assert.Equal(t, ExitExternalTool, ExitCodeFor(&transcode.RendererError{Path: "x", Err: errors.New("boom")}))
	assert.Equal(t, ExitExternalTool, ExitCodeFor(&transcode.TimeoutError{Stage: "decode"}))
	assert.Equal(t, ExitError, ExitCodeFor(errors.New("something else")))
	assert.Equal(t, ExitError, ExitCodeFor(fingerprint.ErrEmpty))
}

func testConfig() *configs.Config {
	return &configs.Config{
		Audio: configs.AudioConfig{
			SampleRate:       22050,
			WindowMS:         25,
			HopMS:            20,
			MelBands:         40,
			MFCCCoefficients: 20,
		},
		Match: configs.MatchConfig{Stride: 25, TopK: 8, MinScore: 0.55, SearchWindowSeconds: 300},
		Batch: configs.BatchConfig{
			Workers:    2,
			Extensions: []string{".mkv", ".mp4"},
		},
	}
}

func TestBatchDiscovery(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Season 02")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	for _, name := range []string{
		"e1.mkv", "e2.mp4", "notes.txt",
		"e1.intro_tamed.mkv", // previous output, never an input
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "e3.mkv"), nil, 0o644))

	o := NewOrchestrator(nil, testConfig(), nil)

	flat, err := o.discover(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "e1.mkv"), filepath.Join(dir, "e2.mp4")}, flat)

	deep, err := o.discover(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sub, "e3.mkv"),
		filepath.Join(dir, "e1.mkv"),
		filepath.Join(dir, "e2.mp4"),
	}, deep)
}

func TestBatchDiscoveryRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "episode.mkv")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	o := NewOrchestrator(nil, testConfig(), nil)

	_, err := o.discover(file, false)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = o.discover(filepath.Join(dir, "missing"), false)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestBatchSummaryErr(t *testing.T) {
	summary := &BatchSummary{Processed: 3}
	assert.NoError(t, summary.Err())

	summary = &BatchSummary{Processed: 2, Failed: 1, Items: make([]BatchItem, 3)}
	assert.ErrorIs(t, summary.Err(), ErrBatchItemsFailed)

	// Nothing matched anywhere: detection failure exit
	summary = &BatchSummary{NoMatch: 2, Items: make([]BatchItem, 2)}
	var noMatch *fingerprint.NoMatchError
	assert.ErrorAs(t, summary.Err(), &noMatch)
}
