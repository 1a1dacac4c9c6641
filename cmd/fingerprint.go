package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samjhill/intro-tamer/internal/app"
	"github.com/samjhill/intro-tamer/pkg/audio/fingerprint"
)

var (
	fingerprintIntroStart string
	fingerprintIntroEnd   string
	fingerprintOutput     string
	fingerprintLabel      string
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>",
	Short: "Build a reference fingerprint from a hand-labeled episode",
	Long: `Fingerprint extracts the intro interval of a reference episode and
saves its feature matrix for later matching. Label one clean episode per
show, point a preset at the saved file, and every other episode of the
show can be processed automatically.

Example:
  intro-tamer fingerprint S01E01.mkv --intro-start 00:00:18 --intro-end 00:01:08 \
    --output presets/office-us.fp --label "The Office (US)"`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().StringVar(&fingerprintIntroStart, "intro-start", "", "intro start (HH:MM:SS.fff, required)")
	fingerprintCmd.Flags().StringVar(&fingerprintIntroEnd, "intro-end", "", "intro end (HH:MM:SS.fff, required)")
	fingerprintCmd.Flags().StringVarP(&fingerprintOutput, "output", "o", "", "fingerprint output path (required)")
	fingerprintCmd.Flags().StringVar(&fingerprintLabel, "label", "", "free-form label stored with the fingerprint")

	fingerprintCmd.MarkFlagRequired("intro-start")
	fingerprintCmd.MarkFlagRequired("intro-end")
	fingerprintCmd.MarkFlagRequired("output")
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	appCtx, err := app.NewContext()
	if err != nil {
		return err
	}

	interval, err := parseManualInterval(fingerprintIntroStart, fingerprintIntroEnd)
	if err != nil {
		return err
	}

	inputPath := args[0]
	ctx := cmd.Context()

	info, err := appCtx.Engine.Prober().Probe(ctx, inputPath)
	if err != nil {
		return err
	}
	stream, err := info.DefaultAudioStream()
	if err != nil {
		return err
	}

	audio, err := appCtx.Engine.Decoder().DecodeInterval(ctx, inputPath, stream.Index, interval.Start, interval.Duration())
	if err != nil {
		return err
	}

	features, err := appCtx.Engine.Extractor().Extract(audio.PCM)
	if err != nil {
		return err
	}

	label := fingerprintLabel
	if label == "" {
		label = inputPath
	}

	ref, err := fingerprint.NewReference(features, appCtx.Engine.ExtractorParams(), interval.Start, interval.End, label)
	if err != nil {
		return err
	}

	if err := fingerprint.Save(ref, fingerprintOutput); err != nil {
		return err
	}

	fmt.Printf("Fingerprint: %s\n", fingerprintOutput)
	fmt.Printf("Frames:      %d (%.2fs at %d Hz)\n", ref.NumFrames(), ref.Duration(), ref.SampleRate)
	fmt.Printf("Label:       %s\n", ref.Label)

	return nil
}
