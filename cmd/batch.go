package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samjhill/intro-tamer/internal/app"
	"github.com/samjhill/intro-tamer/internal/tamer"
)

var (
	batchPreset     string
	batchRecursive  bool
	batchWorkers    int
	batchDuckDB     float64
	batchTargetLUFS float64
	batchFade       float64
	batchReportJSON bool
	batchDryRun     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Process every recognized media file in a directory",
	Long: `Batch applies process to each media file under a directory using a
bounded worker pool. Episodes whose output already exists are skipped, so
an interrupted batch can simply be rerun. Failures are recorded per item
and do not stop the rest of the batch.

Example:
  intro-tamer batch /tv/The\ Office --preset office-us --recursive`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchPreset, "preset", "", "preset name (required)")
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "parallel episodes (default from config)")
	batchCmd.Flags().Float64Var(&batchDuckDB, "duck-db", 0, "gain reduction in dB (negative)")
	batchCmd.Flags().Float64Var(&batchTargetLUFS, "target-intro-lufs", 0, "target integrated loudness for intros")
	batchCmd.Flags().Float64Var(&batchFade, "fade", 0, "fade duration in seconds")
	batchCmd.Flags().BoolVar(&batchReportJSON, "report-json", false, "write a JSON report next to each output")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "plan only, write no output files")

	batchCmd.MarkFlagRequired("preset")
}

func runBatch(cmd *cobra.Command, args []string) error {
	appCtx, err := app.NewContext()
	if err != nil {
		return err
	}

	if batchWorkers > 0 {
		appCtx.Config.Batch.Workers = batchWorkers
	}

	req, err := buildRequest(appCtx, cmd, requestFlags{
		presetName: batchPreset,
		duckDB:     batchDuckDB,
		targetLUFS: batchTargetLUFS,
		fade:       batchFade,
	})
	if err != nil {
		return err
	}

	req.ReportJSON = batchReportJSON
	req.DryRun = batchDryRun
	req.AllowFallback = false // batch is unattended: fingerprint matches only

	orchestrator := tamer.NewOrchestrator(appCtx.Engine, appCtx.Config, appCtx.Logger)

	summary, err := orchestrator.Run(cmd.Context(), args[0], batchRecursive, req)
	if err != nil {
		return err
	}

	fmt.Printf("Processed: %d  Skipped: %d  No match: %d  Failed: %d\n",
		summary.Processed, summary.Skipped, summary.NoMatch, summary.Failed)
	for _, item := range summary.Items {
		if item.Err != nil && !item.NoMatch {
			fmt.Printf("  failed: %s: %v\n", item.InputPath, item.Err)
		}
	}

	return summary.Err()
}
