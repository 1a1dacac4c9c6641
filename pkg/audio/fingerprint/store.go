package fingerprint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/spectral"
)

const (
	storeMagic   = "introtamer-fingerprint"
	storeVersion = 1
)

// fingerprintFile is the on-disk container: named arrays plus scalars,
// gob-encoded.
type fingerprintFile struct {
	Magic   string
	Version int

	Features        [][]float32
	SampleRate      int
	HopLength       int
	WindowLength    int
	NumCoefficients int
	StartTime       float64
	EndTime         float64
	Label           string
}

// Save writes the reference to path, creating parent directories.
func Save(ref *Reference, path string) error {
	if ref.NumFrames() == 0 {
		return ErrEmpty
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create fingerprint directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fingerprint file: %w", err)
	}
	defer f.Close()

	record := fingerprintFile{
		Magic:           storeMagic,
		Version:         storeVersion,
		Features:        ref.Features,
		SampleRate:      ref.SampleRate,
		HopLength:       ref.HopLength,
		WindowLength:    ref.WindowLength,
		NumCoefficients: ref.NumCoefficients,
		StartTime:       ref.StartTime,
		EndTime:         ref.EndTime,
		Label:           ref.Label,
	}

	if err := gob.NewEncoder(f).Encode(&record); err != nil {
		return fmt.Errorf("failed to encode fingerprint: %w", err)
	}

	logging.Debug("Fingerprint saved", logging.Fields{
		"path":   path,
		"frames": ref.NumFrames(),
		"label":  ref.Label,
	})

	return nil
}

// Load reads a reference from path and validates it against the extractor
// parameters in use.
func Load(path string, params spectral.ExtractorParams) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fingerprint file: %w", err)
	}
	defer f.Close()

	var record fingerprintFile
	if err := gob.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode fingerprint %s: %w", path, err)
	}

	if record.Magic != storeMagic {
		return nil, fmt.Errorf("%s is not a fingerprint file", path)
	}
	if record.Version != storeVersion {
		return nil, fmt.Errorf("unsupported fingerprint version %d in %s", record.Version, path)
	}

	ref := &Reference{
		Features:        record.Features,
		SampleRate:      record.SampleRate,
		HopLength:       record.HopLength,
		WindowLength:    record.WindowLength,
		NumCoefficients: record.NumCoefficients,
		StartTime:       record.StartTime,
		EndTime:         record.EndTime,
		Label:           record.Label,
	}

	if err := ref.Validate(params); err != nil {
		return nil, err
	}

	logging.Debug("Fingerprint loaded", logging.Fields{
		"path":     path,
		"frames":   ref.NumFrames(),
		"label":    ref.Label,
		"duration": ref.Duration(),
	})

	return ref, nil
}
