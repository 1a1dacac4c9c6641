package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samjhill/intro-tamer/internal/app"
	"github.com/samjhill/intro-tamer/internal/preset"
	"github.com/samjhill/intro-tamer/internal/tamer"
)

var (
	processOutput        string
	processPreset        string
	processFingerprint   string
	processIntroStart    string
	processIntroEnd      string
	processDuckDB        float64
	processTargetLUFS    float64
	processFade          float64
	processDryRun        bool
	processReportJSON    bool
	processRequireMatch  bool
	processAllowFallback bool
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Duck the intro of one episode and write a processed copy",
	Long: `Process detects the intro of an episode (via a preset's reference
fingerprint, an explicit fingerprint file, or manual boundaries), plans a
click-free gain envelope, and renders a copy with only the audio stream
re-encoded.

Examples:
  # Preset-driven detection, fixed duck
  intro-tamer process S01E01.mkv --preset office-us --duck-db -10

  # Manual boundaries, loudness-targeted duck
  intro-tamer process S01E01.mkv --intro-start 00:00:18 --intro-end 00:01:08 \
    --target-intro-lufs -24 --report-json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file path")
	processCmd.Flags().StringVar(&processPreset, "preset", "", "preset name (e.g. office-us)")
	processCmd.Flags().StringVar(&processFingerprint, "fingerprint", "", "reference fingerprint path")
	processCmd.Flags().StringVar(&processIntroStart, "intro-start", "", "manual intro start (HH:MM:SS.fff)")
	processCmd.Flags().StringVar(&processIntroEnd, "intro-end", "", "manual intro end (HH:MM:SS.fff)")
	processCmd.Flags().Float64Var(&processDuckDB, "duck-db", 0, "gain reduction in dB (negative)")
	processCmd.Flags().Float64Var(&processTargetLUFS, "target-intro-lufs", 0, "target integrated loudness for the intro")
	processCmd.Flags().Float64Var(&processFade, "fade", 0, "fade duration in seconds")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "plan only, write no output file")
	processCmd.Flags().BoolVar(&processReportJSON, "report-json", false, "write a JSON report next to the output")
	processCmd.Flags().BoolVar(&processRequireMatch, "require-match", false, "fail instead of falling back when no match is found")
	processCmd.Flags().BoolVar(&processAllowFallback, "allow-fallback", true, "allow the heuristic detector when fingerprinting fails")
}

func runProcess(cmd *cobra.Command, args []string) error {
	appCtx, err := app.NewContext()
	if err != nil {
		return err
	}

	req, err := buildRequest(appCtx, cmd, requestFlags{
		presetName:      processPreset,
		fingerprintPath: processFingerprint,
		introStart:      processIntroStart,
		introEnd:        processIntroEnd,
		duckDB:          processDuckDB,
		targetLUFS:      processTargetLUFS,
		fade:            processFade,
	})
	if err != nil {
		return err
	}

	req.InputPath = args[0]
	req.OutputPath = processOutput
	if req.OutputPath == "" {
		req.OutputPath = tamer.DefaultOutputPath(args[0])
	}
	req.DryRun = processDryRun
	req.ReportJSON = processReportJSON
	req.RequireMatch = processRequireMatch
	req.AllowFallback = processAllowFallback

	result, err := appCtx.Engine.Process(cmd.Context(), req)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *tamer.Result) {
	fmt.Printf("Intro: %.2fs - %.2fs (score %.2f, %s)\n",
		result.Detection.Start, result.Detection.End, result.Detection.Score, result.Detection.Source)
	if result.IntroLUFSBefore != nil && result.IntroLUFSAfter != nil {
		fmt.Printf("Intro loudness: %.1f LUFS -> %.1f LUFS\n", *result.IntroLUFSBefore, *result.IntroLUFSAfter)
	}
	fmt.Printf("Gain: %.1f dB plateau (%s)\n", result.PlateauDB, result.Mode)
	if result.Rendered {
		fmt.Printf("Output: %s\n", result.OutputPath)
	} else {
		fmt.Printf("Dry run, no output written\n")
	}
}

// requestFlags carries the per-command flag values into the shared
// request builder.
type requestFlags struct {
	presetName      string
	fingerprintPath string
	introStart      string
	introEnd        string
	duckDB          float64
	targetLUFS      float64
	fade            float64
}

// buildRequest merges config defaults, the preset, and explicit flags
// (most specific wins) into a self-contained request.
func buildRequest(appCtx *app.Context, cmd *cobra.Command, f requestFlags) (tamer.Request, error) {
	req := tamer.Request{
		DuckDB:              appCtx.Config.Duck.DuckDB,
		FadeSeconds:         appCtx.Config.Duck.FadeSeconds,
		MinScore:            appCtx.Config.Match.MinScore,
		SearchWindowSeconds: appCtx.Config.Match.SearchWindowSeconds,
	}

	if f.presetName != "" {
		p, err := preset.Load(f.presetName, appCtx.Config.PresetsDir())
		if err != nil {
			return req, fmt.Errorf("%w: %v", tamer.ErrInvalidArguments, err)
		}

		req.FingerprintPath = p.Fingerprint
		req.DuckDB = p.DuckDB
		req.FadeSeconds = p.FadeSeconds
		req.MinScore = p.MinScore
		req.SearchWindowSeconds = p.SearchWindowSeconds
		req.MinIntroSeconds = p.MinIntroSeconds
		req.MaxIntroSeconds = p.MaxIntroSeconds
		if p.TargetLUFS != nil {
			target := *p.TargetLUFS
			req.TargetLUFS = &target
		}
	}

	if f.fingerprintPath != "" {
		req.FingerprintPath = f.fingerprintPath
	}

	duckSet := cmd.Flags().Changed("duck-db")
	targetSet := cmd.Flags().Changed("target-intro-lufs")
	if duckSet && targetSet {
		return req, invalidArgs("--duck-db and --target-intro-lufs are mutually exclusive")
	}
	if duckSet {
		req.DuckDB = f.duckDB
		req.TargetLUFS = nil
	}
	if targetSet {
		target := f.targetLUFS
		req.TargetLUFS = &target
	}
	if cmd.Flags().Changed("fade") {
		req.FadeSeconds = f.fade
	}

	interval, err := parseManualInterval(f.introStart, f.introEnd)
	if err != nil {
		return req, err
	}
	req.ManualInterval = interval

	return req, nil
}

func parseManualInterval(startStr, endStr string) (*tamer.Interval, error) {
	if startStr == "" && endStr == "" {
		return nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, invalidArgs("--intro-start and --intro-end must be given together")
	}

	start, err := tamer.ParseTimecode(startStr)
	if err != nil {
		return nil, invalidArgs("%v", err)
	}
	end, err := tamer.ParseTimecode(endStr)
	if err != nil {
		return nil, invalidArgs("%v", err)
	}
	if end <= start {
		return nil, invalidArgs("intro end %s is not after start %s", endStr, startStr)
	}

	return &tamer.Interval{Start: start, End: end}, nil
}
