package transcode

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// AudioStream describes one audio stream of a media file
type AudioStream struct {
	Index      int    `json:"index"` // stream index within the file
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Bitrate    int    `json:"bitrate"`
	Default    bool   `json:"default"` // disposition default flag
}

// MediaInfo is the probed layout of a media file
type MediaInfo struct {
	Path            string        `json:"path"`
	Duration        float64       `json:"duration"` // seconds, from the container
	AudioStreams    []AudioStream `json:"audio_streams"`
	VideoStreams    int           `json:"video_streams"`
	SubtitleStreams int           `json:"subtitle_streams"`
	FormatName      string        `json:"format_name"`
}

// DefaultAudioStream returns the stream marked default, else the first
// audio stream.
func (mi *MediaInfo) DefaultAudioStream() (AudioStream, error) {
	if len(mi.AudioStreams) == 0 {
		return AudioStream{}, &DecodeError{Path: mi.Path, Err: fmt.Errorf("no audio streams")}
	}

	for _, s := range mi.AudioStreams {
		if s.Default {
			return s, nil
		}
	}
	return mi.AudioStreams[0], nil
}

// ffprobe JSON shapes
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	BitRate     string            `json:"bit_rate"`
	Disposition map[string]int    `json:"disposition"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Prober inspects media files with ffprobe
type Prober struct {
	ffprobePath string
	timeout     time.Duration
	runner      *runner
}

// NewProber creates a prober. Empty path means "ffprobe" on PATH.
func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     timeout,
		runner:      newRunner(),
	}
}

// Probe returns the stream layout and duration of a media file
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}

	output, err := p.runner.run(ctx, "probe", p.timeout, p.ffprobePath, args...)
	if err != nil {
		if _, ok := err.(*TimeoutError); ok {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &DecodeError{Path: path, Stderr: stderrTail(err), Err: fmt.Errorf("ffprobe failed: %w", err)}
	}

	return parseProbeOutput(path, output)
}

func parseProbeOutput(path string, data []byte) (*MediaInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("failed to parse ffprobe output: %w", err)}
	}

	info := &MediaInfo{
		Path:       path,
		FormatName: probe.Format.FormatName,
	}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "audio":
			stream := AudioStream{
				Index:   s.Index,
				Codec:   s.CodecName,
				Channels: s.Channels,
				Default: s.Disposition["default"] == 1,
			}
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				stream.SampleRate = sr
			}
			if br, err := strconv.Atoi(s.BitRate); err == nil {
				stream.Bitrate = br
			}
			info.AudioStreams = append(info.AudioStreams, stream)
		case "video":
			info.VideoStreams++
		case "subtitle":
			info.SubtitleStreams++
		}
	}

	if len(info.AudioStreams) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("no audio streams found")}
	}

	return info, nil
}
