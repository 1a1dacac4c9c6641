package transcode

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/envelope"
)

// RendererConfig holds renderer configuration
type RendererConfig struct {
	FFmpegPath string        `json:"ffmpeg_path"`
	Timeout    time.Duration `json:"timeout"` // render deadline (default: 30m)
}

// DefaultRendererConfig returns the standard renderer configuration
func DefaultRendererConfig() *RendererConfig {
	return &RendererConfig{
		FFmpegPath: "ffmpeg",
		Timeout:    30 * time.Minute,
	}
}

// RenderRequest describes one output render
type RenderRequest struct {
	InputPath  string
	OutputPath string

	// AudioStreamIndex is the file-level index of the stream the filter
	// applies to.
	AudioStreamIndex int

	// Codec and Bitrate describe the source audio stream, for the codec
	// preservation rules.
	Codec   string
	Bitrate int

	Filter *envelope.FilterSpec
}

// Renderer re-encodes the audio stream with the gain envelope applied
// while stream-copying video and subtitles.
type Renderer struct {
	config *RendererConfig
	runner *runner
	logger logging.Logger
}

// NewRenderer creates a renderer
func NewRenderer(config *RendererConfig) *Renderer {
	if config == nil {
		config = DefaultRendererConfig()
	}

	return &Renderer{
		config: config,
		runner: newRunner(),
		logger: logging.WithFields(logging.Fields{"component": "renderer"}),
	}
}

// Render runs ffmpeg to produce the output file. Partial outputs are
// removed on failure or cancellation.
func (r *Renderer) Render(ctx context.Context, req RenderRequest) error {
	args := r.buildArgs(req)

	_, err := r.runner.run(ctx, "render", r.config.Timeout, r.config.FFmpegPath, args...)
	if err != nil {
		removePartialOutput(req.OutputPath, r.logger)

		if _, ok := err.(*TimeoutError); ok {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		return &RendererError{Path: req.InputPath, Stderr: stderrTail(err), Err: err}
	}

	r.logger.Debug("Render completed", logging.Fields{
		"input":  req.InputPath,
		"output": req.OutputPath,
	})

	return nil
}

// buildArgs assembles the render invocation: video copy, filtered audio
// re-encode, subtitle copy.
func (r *Renderer) buildArgs(req RenderRequest) []string {
	args := []string{
		"-v", "error",
		"-y",
		"-i", req.InputPath,
		"-map", "0:v:0?",
		"-c:v", "copy",
		"-map", fmt.Sprintf("0:%d", req.AudioStreamIndex),
		"-af", req.Filter.AudioFilter(),
	}

	codec, quality := audioCodecArgs(req.Codec, req.Bitrate)
	args = append(args, "-c:a", codec)
	args = append(args, quality...)

	args = append(args,
		"-map", "0:s?",
		"-c:s", "copy",
		req.OutputPath,
	)

	return args
}

// audioCodecArgs picks the output codec from the source codec. Lossless
// sources stay lossless; lossy sources keep their codec at the original
// bitrate with a 192k floor; codecs ffmpeg cannot encode fall back to
// high-bitrate AAC.
func audioCodecArgs(sourceCodec string, sourceBitrate int) (string, []string) {
	kbps := sourceBitrate / 1000

	bitrateArgs := func(floor, fallback int) []string {
		if kbps > 0 {
			return []string{"-b:a", strconv.Itoa(max(kbps, floor)) + "k"}
		}
		return []string{"-b:a", strconv.Itoa(fallback) + "k"}
	}

	switch sourceCodec {
	case "flac", "pcm_s16le", "pcm_s24le", "pcm_s32le":
		return "flac", []string{"-compression_level", "5"}
	case "aac":
		return "aac", bitrateArgs(192, 320)
	case "ac3", "eac3":
		return sourceCodec, bitrateArgs(192, 384)
	case "dts", "truehd":
		return "aac", []string{"-b:a", "320k"}
	default:
		return "aac", []string{"-b:a", "320k"}
	}
}

func removePartialOutput(path string, logger logging.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove partial output", logging.Fields{
			"path":  path,
			"error": err.Error(),
		})
	}
}
