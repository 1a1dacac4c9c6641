// Package detect holds the fallback intro detector used when no
// fingerprint is available or fingerprint matching comes up empty.
package detect

import (
	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/loudness"
)

// HeuristicConfig tunes the loudness-jump detector
type HeuristicConfig struct {
	SearchWindowSeconds float64 `json:"search_window_seconds"` // how far into the episode to look (default: 150)
	MinIntroSeconds     float64 `json:"min_intro_seconds"`     // shortest plausible intro (default: 15)
	MaxIntroSeconds     float64 `json:"max_intro_seconds"`     // longest plausible intro (default: 90)
	JumpDB              float64 `json:"jump_db"`               // loudness jump that marks the intro (default: 3)
}

// DefaultHeuristicConfig returns the standard detector tuning
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		SearchWindowSeconds: 150.0,
		MinIntroSeconds:     15.0,
		MaxIntroSeconds:     90.0,
		JumpDB:              3.0,
	}
}

// Boundaries is a detected intro interval with its confidence
type Boundaries struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

const (
	windowSeconds = 5.0
	hopSeconds    = 2.0

	// heuristicConfidence is fixed: the detector knows a jump happened,
	// not that it was the intro.
	heuristicConfidence = 0.6
)

// Heuristic detects intros by looking for a sustained loudness jump near
// the start of the episode. Intros for most shows are mixed hotter than
// the cold open around them.
type Heuristic struct {
	config HeuristicConfig
	meter  *loudness.Meter
	logger logging.Logger
}

// NewHeuristic creates a heuristic detector sharing the pipeline's meter
func NewHeuristic(config HeuristicConfig, meter *loudness.Meter) *Heuristic {
	return &Heuristic{
		config: config,
		meter:  meter,
		logger: logging.WithFields(logging.Fields{"component": "heuristic_detector"}),
	}
}

// Detect scans short-term loudness windows for a jump of at least JumpDB.
// Returns nil when no jump is found.
func (h *Heuristic) Detect(pcm []float64) *Boundaries {
	sampleRate := float64(h.meter.SampleRate())

	searchEnd := min(h.config.SearchWindowSeconds, float64(len(pcm))/sampleRate)

	type window struct {
		start    float64
		loudness float64
	}

	var windows []window
	for t := 0.0; t+windowSeconds <= searchEnd; t += hopSeconds {
		l, err := h.meter.ShortTerm(pcm, t, windowSeconds)
		if err != nil {
			continue
		}
		windows = append(windows, window{start: t, loudness: l})
	}

	if len(windows) < 2 {
		return nil
	}

	for i := 1; i < len(windows); i++ {
		jump := windows[i].loudness - windows[i-1].loudness
		if jump < h.config.JumpDB {
			continue
		}

		introStart := windows[i].start
		introEnd := min(introStart+h.config.MaxIntroSeconds, searchEnd)

		// Refine the end at the first comparable loudness drop
		for j := i + 1; j < len(windows); j++ {
			if windows[i].loudness-windows[j].loudness >= h.config.JumpDB {
				introEnd = windows[j].start + windowSeconds
				break
			}
		}

		if introEnd-introStart < h.config.MinIntroSeconds {
			introEnd = introStart + h.config.MinIntroSeconds
		}

		h.logger.Debug("Heuristic detection", logging.Fields{
			"start":   introStart,
			"end":     introEnd,
			"jump_db": jump,
		})

		return &Boundaries{
			Start:      introStart,
			End:        introEnd,
			Confidence: heuristicConfidence,
		}
	}

	return nil
}
