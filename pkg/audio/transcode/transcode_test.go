package transcode

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samjhill/intro-tamer/pkg/audio/envelope"
)

func TestDecoderBuildArgs(t *testing.T) {
	decoder := NewDecoder(DefaultDecoderConfig())
	args := decoder.buildArgs("/media/s01e01.mkv", 1, 0, 0)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /media/s01e01.mkv")
	assert.Contains(t, joined, "-map 0:1")
	assert.Contains(t, joined, "-ac 1")
	assert.Contains(t, joined, "-ar 22050")
	assert.Contains(t, joined, "-f f64le")
	assert.Contains(t, joined, "aresample=resampler=soxr")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestDecoderBuildArgsInterval(t *testing.T) {
	decoder := NewDecoder(DefaultDecoderConfig())
	args := decoder.buildArgs("/media/ref.mkv", 1, 18.0, 50.0)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-ss 18.000")
	assert.Contains(t, joined, "-t 50.000")
}

func TestBytesToFloat64(t *testing.T) {
	values := []float64{0.0, 0.5, -0.25, 1.0}

	data := make([]byte, 8*len(values)+3) // trailing partial sample is trimmed
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}

	samples := bytesToFloat64(data)
	require.Len(t, samples, len(values))
	for i, v := range values {
		assert.Equal(t, v, samples[i])
	}

	assert.Nil(t, bytesToFloat64(nil))
	assert.Nil(t, bytesToFloat64([]byte{1, 2, 3}))
}

func TestParseProbeOutput(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264"},
			{"index": 1, "codec_type": "audio", "codec_name": "ac3", "sample_rate": "48000",
			 "channels": 6, "bit_rate": "384000", "disposition": {"default": 0}},
			{"index": 2, "codec_type": "audio", "codec_name": "aac", "sample_rate": "44100",
			 "channels": 2, "bit_rate": "128000", "disposition": {"default": 1}},
			{"index": 3, "codec_type": "subtitle", "codec_name": "subrip"}
		],
		"format": {"format_name": "matroska,webm", "duration": "1260.480000"}
	}`)

	info, err := parseProbeOutput("/media/e.mkv", payload)
	require.NoError(t, err)

	assert.InDelta(t, 1260.48, info.Duration, 1e-9)
	assert.Equal(t, 1, info.VideoStreams)
	assert.Equal(t, 1, info.SubtitleStreams)
	require.Len(t, info.AudioStreams, 2)

	def, err := info.DefaultAudioStream()
	require.NoError(t, err)
	assert.Equal(t, 2, def.Index)
	assert.Equal(t, "aac", def.Codec)
	assert.Equal(t, 128000, def.Bitrate)
}

func TestParseProbeOutputNoAudio(t *testing.T) {
	payload := []byte(`{
		"streams": [{"index": 0, "codec_type": "video", "codec_name": "h264"}],
		"format": {"format_name": "mp4", "duration": "10.0"}
	}`)

	_, err := parseProbeOutput("/media/mute.mp4", payload)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestRendererBuildArgs(t *testing.T) {
	renderer := NewRenderer(DefaultRendererConfig())

	env := mustPlan(t)
	spec := envelope.Synthesize(env, 1260.0)

	args := renderer.buildArgs(RenderRequest{
		InputPath:        "/media/in.mkv",
		OutputPath:       "/media/out.mkv",
		AudioStreamIndex: 1,
		Codec:            "ac3",
		Bitrate:          448000,
		Filter:           spec,
	})

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-map 0:v:0? -c:v copy")
	assert.Contains(t, joined, "-map 0:1")
	assert.Contains(t, joined, "-c:a ac3")
	assert.Contains(t, joined, "-b:a 448k")
	assert.Contains(t, joined, "-map 0:s? -c:s copy")
	assert.Contains(t, joined, "volume='")
	assert.Equal(t, "/media/out.mkv", args[len(args)-1])
}

func TestAudioCodecPreservation(t *testing.T) {
	cases := []struct {
		codec   string
		bitrate int
		want    string
		quality string
	}{
		{"flac", 0, "flac", "-compression_level 5"},
		{"pcm_s16le", 0, "flac", "-compression_level 5"},
		{"aac", 96000, "aac", "-b:a 192k"},   // floor applies
		{"aac", 256000, "aac", "-b:a 256k"},  // original kept
		{"ac3", 0, "ac3", "-b:a 384k"},       // fallback bitrate
		{"eac3", 640000, "eac3", "-b:a 640k"},
		{"dts", 1500000, "aac", "-b:a 320k"}, // ffmpeg can't encode dts well
		{"opus", 0, "aac", "-b:a 320k"},      // unknown codec
	}

	for _, tc := range cases {
		codec, quality := audioCodecArgs(tc.codec, tc.bitrate)
		assert.Equal(t, tc.want, codec, "codec for %s", tc.codec)
		assert.Equal(t, tc.quality, strings.Join(quality, " "), "quality for %s", tc.codec)
	}
}

func mustPlan(t *testing.T) *envelope.Envelope {
	t.Helper()
	plan, err := envelope.NewPlan(envelope.PlanParams{
		IntroStart:      18,
		IntroEnd:        68,
		EpisodeDuration: 1260,
		FadeSeconds:     0.12,
		Mode:            envelope.ModeFixedDB,
		DuckDB:          -9,
	})
	require.NoError(t, err)
	return plan.Envelope
}
