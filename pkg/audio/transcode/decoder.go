package transcode

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/samjhill/intro-tamer/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // analysis rate (default: 22050)
	FFmpegPath       string        `json:"ffmpeg_path"`
	Timeout          time.Duration `json:"timeout"` // decode deadline (default: 10m)

	// MaxDuration limits how much audio is decoded; zero decodes the
	// whole track.
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns the standard decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		FFmpegPath:       "ffmpeg",
		Timeout:          10 * time.Minute,
	}
}

// AudioData is a decoded mono PCM buffer at the analysis rate
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
}

// DurationSeconds returns the decoded duration in seconds
func (a *AudioData) DurationSeconds() float64 {
	return float64(len(a.PCM)) / float64(a.SampleRate)
}

// Decoder decodes episode audio with ffmpeg: mono downmix (equal-weight
// sum scaled by channel count), soxr resampling to the analysis rate, raw
// f64le over stdout.
type Decoder struct {
	config *DecoderConfig
	runner *runner
	logger logging.Logger
}

// NewDecoder creates an audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}

	return &Decoder{
		config: config,
		runner: newRunner(),
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// DecodeFile decodes one audio stream of the file to mono PCM
func (d *Decoder) DecodeFile(ctx context.Context, path string, streamIndex int) (*AudioData, error) {
	return d.decode(ctx, path, d.buildArgs(path, streamIndex, 0, 0))
}

// DecodeInterval decodes [startSec, startSec+durationSec) of one audio
// stream. Used when authoring reference fingerprints from a labeled
// episode.
func (d *Decoder) DecodeInterval(ctx context.Context, path string, streamIndex int, startSec, durationSec float64) (*AudioData, error) {
	if startSec < 0 || durationSec <= 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("invalid interval: start=%.3f duration=%.3f", startSec, durationSec)}
	}
	return d.decode(ctx, path, d.buildArgs(path, streamIndex, startSec, durationSec))
}

func (d *Decoder) decode(ctx context.Context, path string, args []string) (*AudioData, error) {
	output, err := d.runner.run(ctx, "decode", d.config.Timeout, d.config.FFmpegPath, args...)
	if err != nil {
		if _, ok := err.(*TimeoutError); ok {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &DecodeError{Path: path, Stderr: stderrTail(err), Err: err}
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("no audio samples decoded")}
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(d.config.TargetSampleRate)

	d.logger.Debug("Decode completed", logging.Fields{
		"path":        path,
		"samples":     len(samples),
		"duration":    duration.Seconds(),
		"sample_rate": d.config.TargetSampleRate,
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Duration:   duration,
	}, nil
}

// buildArgs assembles the ffmpeg decode invocation. Seeking is
// output-side for sample accuracy; intros are near the file start, so the
// decode-and-discard cost is small.
func (d *Decoder) buildArgs(path string, streamIndex int, startSec, durationSec float64) []string {
	args := []string{
		"-v", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
	}

	if startSec > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSec))
	}

	switch {
	case durationSec > 0:
		args = append(args, "-t", fmt.Sprintf("%.3f", durationSec))
	case d.config.MaxDuration > 0:
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"-af", "aresample=resampler=soxr",
		"-f", "f64le",
		"pipe:1",
	)

	return args
}

// bytesToFloat64 converts raw little-endian float64 bytes to samples
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}
	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}
