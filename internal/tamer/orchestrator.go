package tamer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samjhill/intro-tamer/configs"
	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/fingerprint"
)

// outputSuffix is inserted before the extension of processed episodes
const outputSuffix = ".intro_tamed"

// Orchestrator runs the pipeline over a directory of episodes with a
// bounded worker pool. Items fail independently; the summary aggregates
// outcomes.
type Orchestrator struct {
	engine *Engine
	config *configs.Config
	logger logging.Logger
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(engine *Engine, config *configs.Config, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Orchestrator{
		engine: engine,
		config: config,
		logger: logger.WithFields(logging.Fields{"component": "batch"}),
	}
}

// DefaultOutputPath derives the processed filename for an input episode
func DefaultOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + outputSuffix + ext
}

// Run processes every recognized media file under dir. The base request
// supplies everything except input and output paths. Outputs that already
// exist are skipped, which makes interrupted batches resumable.
func (o *Orchestrator) Run(ctx context.Context, dir string, recursive bool, base Request) (*BatchSummary, error) {
	files, err := o.discover(dir, recursive)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Batch started", logging.Fields{
		"dir":       dir,
		"files":     len(files),
		"workers":   o.config.Batch.Workers,
		"recursive": recursive,
	})

	summary := &BatchSummary{}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.Batch.Workers)

	for _, inputPath := range files {
		group.Go(func() error {
			item := o.processItem(groupCtx, inputPath, base)

			mu.Lock()
			defer mu.Unlock()

			summary.Items = append(summary.Items, item)
			switch {
			case item.Skipped:
				summary.Skipped++
			case item.NoMatch:
				summary.NoMatch++
			case item.Err != nil:
				summary.Failed++
			default:
				summary.Processed++
			}

			// Cancellation is the only error that stops the group; item
			// failures are recorded and the batch continues.
			return groupCtx.Err()
		})
	}

	if err := group.Wait(); err != nil {
		return summary, err
	}

	// Restore deterministic order after parallel completion
	slices.SortFunc(summary.Items, func(a, b BatchItem) int {
		return strings.Compare(a.InputPath, b.InputPath)
	})

	o.logger.Info("Batch completed", logging.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"no_match":  summary.NoMatch,
		"failed":    summary.Failed,
	})

	return summary, nil
}

func (o *Orchestrator) processItem(ctx context.Context, inputPath string, base Request) BatchItem {
	item := BatchItem{
		InputPath:  inputPath,
		OutputPath: DefaultOutputPath(inputPath),
	}

	if _, err := os.Stat(item.OutputPath); err == nil {
		o.logger.Debug("Output exists, skipping", logging.Fields{"input": inputPath})
		item.Skipped = true
		return item
	}

	req := base
	req.InputPath = inputPath
	req.OutputPath = item.OutputPath

	result, err := o.engine.Process(ctx, req)
	if err != nil {
		var noMatch *fingerprint.NoMatchError
		if errors.As(err, &noMatch) {
			o.logger.Warn("No intro found, skipping episode", logging.Fields{
				"input": inputPath,
				"score": noMatch.BestScore,
			})
			item.NoMatch = true
			item.Err = err
			return item
		}

		o.logger.Error(err, "Episode failed", logging.Fields{"input": inputPath})
		item.Err = err
		return item
	}

	item.Result = result
	return item
}

// Err maps the summary to the batch exit status: item failures beat
// no-match outcomes; a batch that only skipped or matched is a success.
func (s *BatchSummary) Err() error {
	if s.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBatchItemsFailed, s.Failed, len(s.Items))
	}
	if s.NoMatch > 0 && s.Processed == 0 && s.Skipped == 0 {
		return &fingerprint.NoMatchError{BestScore: 0, Threshold: 0}
	}
	return nil
}

// discover lists recognized media files under dir. Outputs of previous
// runs are never inputs.
func (o *Orchestrator) discover(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidArguments, dir)
	}

	extensions := make(map[string]bool, len(o.config.Batch.Extensions))
	for _, ext := range o.config.Batch.Extensions {
		extensions[strings.ToLower(ext)] = true
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return fs.SkipDir
			}
			return nil
		}

		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if strings.Contains(d.Name(), outputSuffix) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}
