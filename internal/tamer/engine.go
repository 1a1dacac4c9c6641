package tamer

import (
	"context"
	"errors"
	"fmt"

	"github.com/samjhill/intro-tamer/configs"
	"github.com/samjhill/intro-tamer/internal/detect"
	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/envelope"
	"github.com/samjhill/intro-tamer/pkg/audio/fingerprint"
	"github.com/samjhill/intro-tamer/pkg/audio/loudness"
	"github.com/samjhill/intro-tamer/pkg/audio/spectral"
	"github.com/samjhill/intro-tamer/pkg/audio/transcode"
)

// Engine runs the straight-line per-episode pipeline: probe, decode,
// detect, meter, plan, synthesize, render. One engine serves concurrent
// requests: every stage either owns per-call state or is read-only after
// construction.
type Engine struct {
	config *configs.Config

	prober    *transcode.Prober
	decoder   *transcode.Decoder
	renderer  *transcode.Renderer
	extractor *spectral.Extractor
	meter     *loudness.Meter

	logger logging.Logger
}

// NewEngine builds an engine from the application configuration
func NewEngine(config *configs.Config, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	extractorParams := spectral.ExtractorParams{
		SampleRate:      config.Audio.SampleRate,
		WindowMS:        config.Audio.WindowMS,
		HopMS:           config.Audio.HopMS,
		NumMelFilters:   config.Audio.MelBands,
		NumCoefficients: config.Audio.MFCCCoefficients,
	}

	extractor, err := spectral.NewExtractor(extractorParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	decoder := transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: config.Audio.SampleRate,
		FFmpegPath:       config.Tools.FFmpegPath,
		Timeout:          config.Tools.DecodeTimeout,
	})

	renderer := transcode.NewRenderer(&transcode.RendererConfig{
		FFmpegPath: config.Tools.FFmpegPath,
		Timeout:    config.Tools.RenderTimeout,
	})

	return &Engine{
		config:    config,
		prober:    transcode.NewProber(config.Tools.FFprobePath, config.Tools.ProbeTimeout),
		decoder:   decoder,
		renderer:  renderer,
		extractor: extractor,
		meter:     loudness.NewMeter(config.Audio.SampleRate),
		logger:    logger.WithFields(logging.Fields{"component": "engine"}),
	}, nil
}

// ExtractorParams exposes the analysis parameters for fingerprint
// authoring and validation.
func (e *Engine) ExtractorParams() spectral.ExtractorParams {
	return e.extractor.Params()
}

// Extractor returns the engine's feature extractor
func (e *Engine) Extractor() *spectral.Extractor {
	return e.extractor
}

// Prober returns the engine's media prober
func (e *Engine) Prober() *transcode.Prober {
	return e.prober
}

// Decoder returns the engine's audio decoder
func (e *Engine) Decoder() *transcode.Decoder {
	return e.decoder
}

// Process runs the full pipeline for one episode
func (e *Engine) Process(ctx context.Context, req Request) (*Result, error) {
	logger := e.logger.WithFields(logging.Fields{"input": req.InputPath})

	info, err := e.prober.Probe(ctx, req.InputPath)
	if err != nil {
		return nil, err
	}

	stream, err := info.DefaultAudioStream()
	if err != nil {
		return nil, err
	}

	logger.Debug("Episode probed", logging.Fields{
		"duration":     info.Duration,
		"audio_stream": stream.Index,
		"codec":        stream.Codec,
	})

	audio, err := e.decoder.DecodeFile(ctx, req.InputPath, stream.Index)
	if err != nil {
		return nil, err
	}

	duration := audio.DurationSeconds()
	if duration == 0 {
		duration = info.Duration
	}

	detection, err := e.detect(req, audio.PCM)
	if err != nil {
		return nil, err
	}

	logger.Info("Intro located", logging.Fields{
		"start":  detection.Start,
		"end":    detection.End,
		"score":  detection.Score,
		"source": detection.Source,
	})

	result := &Result{
		InputPath:       req.InputPath,
		OutputPath:      req.OutputPath,
		Detection:       *detection,
		DurationSeconds: duration,
	}

	// Metering happens before the PCM is released
	if episodeLUFS, err := e.meter.Integrated(audio.PCM); err == nil {
		result.EpisodeLUFS = episodeLUFS
		result.EpisodeLUFSValid = true
	}

	introLUFS, introErr := e.meter.IntegratedInterval(audio.PCM, detection.Start, detection.End)
	if introErr == nil {
		result.IntroLUFSBefore = &introLUFS
	} else if !errors.Is(introErr, loudness.ErrUndefined) {
		return nil, introErr
	}

	// The envelope only needs the detection and the measurements; drop
	// the half-gigabyte PCM buffer before rendering.
	audio.PCM = nil

	mode := envelope.ModeFixedDB
	targetLUFS := 0.0
	if req.TargetLUFS != nil {
		mode = envelope.ModeTargetLUFS
		targetLUFS = *req.TargetLUFS
	}

	plan, err := envelope.NewPlan(envelope.PlanParams{
		IntroStart:      detection.Start,
		IntroEnd:        detection.End,
		EpisodeDuration: duration,
		FadeSeconds:     req.FadeSeconds,
		Mode:            mode,
		DuckDB:          req.DuckDB,
		TargetLUFS:      targetLUFS,
		IntroLUFS:       introLUFS,
		IntroLUFSValid:  introErr == nil,
	})
	if err != nil {
		return nil, err
	}

	result.Envelope = plan.Envelope
	result.PlateauDB = plan.PlateauDB
	result.Mode = plan.Mode
	result.FellBack = plan.FellBack

	if result.IntroLUFSBefore != nil {
		after := *result.IntroLUFSBefore + plan.PlateauDB
		result.IntroLUFSAfter = &after
	}

	if req.DryRun {
		logger.Info("Dry run, skipping render", logging.Fields{"output": req.OutputPath})
		return result, nil
	}

	spec := envelope.Synthesize(plan.Envelope, duration)

	err = e.renderer.Render(ctx, transcode.RenderRequest{
		InputPath:        req.InputPath,
		OutputPath:       req.OutputPath,
		AudioStreamIndex: stream.Index,
		Codec:            stream.Codec,
		Bitrate:          stream.Bitrate,
		Filter:           spec,
	})
	if err != nil {
		return nil, err
	}
	result.Rendered = true

	if req.ReportJSON {
		if err := WriteReport(result); err != nil {
			return nil, err
		}
	}

	logger.Info("Episode processed", logging.Fields{
		"output":     req.OutputPath,
		"plateau_db": plan.PlateauDB,
	})

	return result, nil
}

// Analyze runs detection only: probe, decode, locate. No file is written.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	info, err := e.prober.Probe(ctx, req.InputPath)
	if err != nil {
		return nil, err
	}

	stream, err := info.DefaultAudioStream()
	if err != nil {
		return nil, err
	}

	audio, err := e.decoder.DecodeFile(ctx, req.InputPath, stream.Index)
	if err != nil {
		return nil, err
	}

	detection, err := e.detect(req, audio.PCM)
	if err != nil {
		return nil, err
	}

	result := &Result{
		InputPath:       req.InputPath,
		Detection:       *detection,
		DurationSeconds: audio.DurationSeconds(),
	}

	if introLUFS, err := e.meter.IntegratedInterval(audio.PCM, detection.Start, detection.End); err == nil {
		result.IntroLUFSBefore = &introLUFS
	}

	return result, nil
}

// detect resolves the intro interval: manual bounds win, then fingerprint
// matching, then the heuristic fallback when allowed.
func (e *Engine) detect(req Request, pcm []float64) (*Detection, error) {
	if req.ManualInterval != nil {
		return &Detection{
			Start:  req.ManualInterval.Start,
			End:    req.ManualInterval.End,
			Score:  1.0,
			Source: SourceManual,
		}, nil
	}

	var matchErr error
	if req.FingerprintPath != "" {
		detection, err := e.matchFingerprint(req, pcm)
		if err == nil {
			return detection, nil
		}

		var noMatch *fingerprint.NoMatchError
		if !errors.As(err, &noMatch) {
			return nil, err
		}
		matchErr = err

		if req.RequireMatch {
			return nil, err
		}
	}

	if req.AllowFallback {
		heuristicCfg := detect.DefaultHeuristicConfig()
		if req.SearchWindowSeconds > 0 {
			heuristicCfg.SearchWindowSeconds = req.SearchWindowSeconds
		}
		if req.MinIntroSeconds > 0 {
			heuristicCfg.MinIntroSeconds = req.MinIntroSeconds
		}
		if req.MaxIntroSeconds > 0 {
			heuristicCfg.MaxIntroSeconds = req.MaxIntroSeconds
		}

		if bounds := detect.NewHeuristic(heuristicCfg, e.meter).Detect(pcm); bounds != nil {
			return &Detection{
				Start:  bounds.Start,
				End:    bounds.End,
				Score:  bounds.Confidence,
				Source: SourceHeuristic,
			}, nil
		}
	}

	if matchErr != nil {
		return nil, matchErr
	}
	return nil, &fingerprint.NoMatchError{BestScore: 0, Threshold: req.MinScore}
}

// matchFingerprint loads the reference and searches the leading window of
// the episode.
func (e *Engine) matchFingerprint(req Request, pcm []float64) (*Detection, error) {
	ref, err := fingerprint.Load(req.FingerprintPath, e.extractor.Params())
	if err != nil {
		return nil, err
	}

	searchWindow := req.SearchWindowSeconds
	if searchWindow <= 0 {
		searchWindow = e.config.Match.SearchWindowSeconds
	}

	searchSamples := min(int(searchWindow*float64(e.config.Audio.SampleRate)), len(pcm))

	features, err := e.extractor.Extract(pcm[:searchSamples])
	if err != nil {
		return nil, err
	}

	minScore := req.MinScore
	if minScore <= 0 {
		minScore = e.config.Match.MinScore
	}

	matcher := fingerprint.NewMatcher(fingerprint.MatcherParams{
		Stride:   e.config.Match.Stride,
		TopK:     e.config.Match.TopK,
		MinScore: minScore,
	})

	match, err := matcher.Match(features, ref)
	if err != nil {
		return nil, err
	}

	return &Detection{
		Start:  match.Start,
		End:    match.End,
		Score:  match.Score,
		Source: SourceFingerprint,
	}, nil
}
