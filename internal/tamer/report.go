package tamer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samjhill/intro-tamer/logging"
)

// Report is the JSON document written next to a processed episode
type Report struct {
	Input    string          `json:"input"`
	Output   string          `json:"output"`
	Detected DetectedReport  `json:"detected"`
	Loudness LoudnessReport  `json:"loudness"`
	Envelope [][2]float64    `json:"envelope"`
	Duration float64         `json:"duration_seconds"`
}

// DetectedReport describes the located intro
type DetectedReport struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// LoudnessReport carries the measured and planned loudness values
type LoudnessReport struct {
	EpisodeLUFS     *float64 `json:"episode_lufs"`
	IntroLUFSBefore *float64 `json:"intro_lufs_before"`
	IntroLUFSAfter  *float64 `json:"intro_lufs_after,omitempty"`
}

// BuildReport converts a pipeline result into its report document
func BuildReport(result *Result) *Report {
	report := &Report{
		Input:  result.InputPath,
		Output: result.OutputPath,
		Detected: DetectedReport{
			Start:  result.Detection.Start,
			End:    result.Detection.End,
			Score:  result.Detection.Score,
			Source: result.Detection.Source,
		},
		Loudness: LoudnessReport{
			IntroLUFSBefore: result.IntroLUFSBefore,
			IntroLUFSAfter:  result.IntroLUFSAfter,
		},
		Duration: result.DurationSeconds,
	}

	if result.EpisodeLUFSValid {
		episode := result.EpisodeLUFS
		report.Loudness.EpisodeLUFS = &episode
	}

	if result.Envelope != nil {
		for _, bp := range result.Envelope.Breakpoints() {
			report.Envelope = append(report.Envelope, [2]float64{bp.T, bp.GainDB})
		}
	}

	return report
}

// ReportPath derives the report location from the output path
func ReportPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".json"
}

// WriteReport serializes the report next to the output file
func WriteReport(result *Result) error {
	path := ReportPath(result.OutputPath)

	data, err := json.MarshalIndent(BuildReport(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logging.Debug("Report written", logging.Fields{"path": path})
	return nil
}
