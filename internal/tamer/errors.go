package tamer

import (
	"errors"

	"github.com/samjhill/intro-tamer/pkg/audio/envelope"
	"github.com/samjhill/intro-tamer/pkg/audio/fingerprint"
	"github.com/samjhill/intro-tamer/pkg/audio/transcode"
)

// Exit codes surfaced by the CLI
const (
	ExitOK           = 0
	ExitError        = 1
	ExitNoMatch      = 2
	ExitInvalidArgs  = 3
	ExitExternalTool = 4
)

// ErrInvalidArguments marks user input errors (flags, timecodes,
// impossible intervals) so the CLI can map them to exit code 3.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrBatchItemsFailed reports that a batch run finished with at least one
// failed item.
var ErrBatchItemsFailed = errors.New("one or more batch items failed")

// ExitCodeFor maps the error taxonomy to process exit codes
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		noMatch      *fingerprint.NoMatchError
		interval     *envelope.IntervalError
		incompatible *fingerprint.IncompatibleError
		decode       *transcode.DecodeError
		render       *transcode.RendererError
		timeout      *transcode.TimeoutError
	)

	switch {
	case errors.As(err, &noMatch):
		return ExitNoMatch
	case errors.Is(err, ErrInvalidArguments), errors.As(err, &interval):
		return ExitInvalidArgs
	case errors.As(err, &decode), errors.As(err, &render), errors.As(err, &timeout):
		return ExitExternalTool
	case errors.As(err, &incompatible), errors.Is(err, fingerprint.ErrEmpty):
		return ExitError
	default:
		return ExitError
	}
}
