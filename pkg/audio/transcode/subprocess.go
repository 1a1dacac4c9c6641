package transcode

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/samjhill/intro-tamer/logging"
)

// stderrTailLimit bounds how much subprocess stderr is carried into errors
const stderrTailLimit = 2048

// runner executes bounded, blocking subprocess calls with per-stage
// timeouts, stderr capture, and deadline mapping. All external tool use in
// the pipeline goes through here.
type runner struct {
	logger logging.Logger
}

func newRunner() *runner {
	return &runner{
		logger: logging.WithFields(logging.Fields{"component": "subprocess"}),
	}
}

// run executes the command, returning stdout. The stage name labels
// timeouts and log lines. A zero timeout inherits only the caller's
// context.
func (r *runner) run(ctx context.Context, stage string, timeout time.Duration, name string, args ...string) ([]byte, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Output() captures stderr into the ExitError for the taxonomy errors
	cmd := exec.CommandContext(runCtx, name, args...)

	r.logger.Debug("Running external tool", logging.Fields{
		"stage":   stage,
		"command": name + " " + strings.Join(args, " "),
		"timeout": timeout.Seconds(),
	})

	started := time.Now()
	output, err := cmd.Output()
	elapsed := time.Since(started)

	if err != nil {
		// Distinguish our timeout from a caller cancellation or tool error
		if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Stage: stage, Timeout: timeout, Err: runCtx.Err()}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return output, err
	}

	r.logger.Debug("External tool completed", logging.Fields{
		"stage":        stage,
		"elapsed":      elapsed.Seconds(),
		"output_bytes": len(output),
	})

	return output, nil
}

// stderrTail extracts a trimmed stderr tail from an exec error for
// inclusion in the taxonomy errors.
func stderrTail(err error) string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}

	text := strings.TrimSpace(string(exitErr.Stderr))
	if len(text) > stderrTailLimit {
		text = text[len(text)-stderrTailLimit:]
	}
	return text
}
