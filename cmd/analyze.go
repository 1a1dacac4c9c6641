package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samjhill/intro-tamer/internal/app"
)

var (
	analyzePreset      string
	analyzeFingerprint string
	analyzeIntroStart  string
	analyzeIntroEnd    string
	analyzeFallback    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Detect the intro and print the result without writing files",
	Long: `Analyze runs intro detection on an episode and prints the located
interval, confidence, and intro loudness. Nothing is rendered.

Exit code 2 means detection found no acceptable match.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzePreset, "preset", "", "preset name")
	analyzeCmd.Flags().StringVar(&analyzeFingerprint, "fingerprint", "", "reference fingerprint path")
	analyzeCmd.Flags().StringVar(&analyzeIntroStart, "intro-start", "", "manual intro start (HH:MM:SS.fff)")
	analyzeCmd.Flags().StringVar(&analyzeIntroEnd, "intro-end", "", "manual intro end (HH:MM:SS.fff)")
	analyzeCmd.Flags().BoolVar(&analyzeFallback, "allow-fallback", false, "allow the heuristic detector when fingerprinting fails")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	appCtx, err := app.NewContext()
	if err != nil {
		return err
	}

	req, err := buildRequest(appCtx, cmd, requestFlags{
		presetName:      analyzePreset,
		fingerprintPath: analyzeFingerprint,
		introStart:      analyzeIntroStart,
		introEnd:        analyzeIntroEnd,
	})
	if err != nil {
		return err
	}

	req.InputPath = args[0]
	req.AllowFallback = analyzeFallback

	if req.FingerprintPath == "" && req.ManualInterval == nil && !req.AllowFallback {
		return invalidArgs("analyze needs --preset, --fingerprint, manual boundaries, or --allow-fallback")
	}

	result, err := appCtx.Engine.Analyze(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Printf("File:      %s\n", result.InputPath)
	fmt.Printf("Duration:  %.2f s\n", result.DurationSeconds)
	fmt.Printf("Intro:     %.2fs - %.2fs\n", result.Detection.Start, result.Detection.End)
	fmt.Printf("Score:     %.3f\n", result.Detection.Score)
	fmt.Printf("Source:    %s\n", result.Detection.Source)
	if result.IntroLUFSBefore != nil {
		fmt.Printf("Intro LUFS: %.1f\n", *result.IntroLUFSBefore)
	}

	return nil
}
