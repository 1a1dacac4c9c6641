// Package preset manages per-show configuration: which reference
// fingerprint to use and the default ducking parameters for that show.
package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samjhill/intro-tamer/logging"
)

// Preset is one show's detection and ducking defaults
type Preset struct {
	Name string `yaml:"name"`

	// Fingerprint is the reference fingerprint path; relative paths
	// resolve against the preset file's directory.
	Fingerprint string `yaml:"fingerprint,omitempty"`

	DuckDB      float64  `yaml:"duck_db"`
	FadeSeconds float64  `yaml:"fade_seconds"`
	TargetLUFS  *float64 `yaml:"target_lufs,omitempty"`

	MinScore            float64 `yaml:"min_score"`
	SearchWindowSeconds float64 `yaml:"search_window_seconds"`
	MinIntroSeconds     float64 `yaml:"min_intro_seconds"`
	MaxIntroSeconds     float64 `yaml:"max_intro_seconds"`
}

// Default returns a preset with standard values and the given name
func Default(name string) Preset {
	return Preset{
		Name:                name,
		DuckDB:              -9.0,
		FadeSeconds:         0.12,
		MinScore:            0.55,
		SearchWindowSeconds: 300.0,
		MinIntroSeconds:     15.0,
		MaxIntroSeconds:     90.0,
	}
}

// Load reads presets/<name>.yaml from the presets directory. Missing keys
// keep their default values.
func Load(name, presetsDir string) (*Preset, error) {
	path := filepath.Join(presetsDir, name+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset %q not found: %w", name, err)
	}

	p := Default(name)
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", path, err)
	}

	if p.Name == "" {
		p.Name = name
	}

	// Resolve the fingerprint path against the preset file location
	if p.Fingerprint != "" && !filepath.IsAbs(p.Fingerprint) {
		p.Fingerprint = filepath.Join(presetsDir, p.Fingerprint)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	logging.Debug("Preset loaded", logging.Fields{
		"preset":      p.Name,
		"fingerprint": p.Fingerprint,
		"duck_db":     p.DuckDB,
	})

	return &p, nil
}

// Save writes the preset to presets/<name>.yaml, creating the directory
func Save(p Preset, presetsDir string) error {
	if err := p.validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(presetsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create presets directory: %w", err)
	}

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("failed to serialize preset: %w", err)
	}

	path := filepath.Join(presetsDir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}

	return nil
}

func (p *Preset) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name is empty")
	}
	if p.DuckDB > 0 {
		return fmt.Errorf("preset %q: duck_db %.1f is amplification", p.Name, p.DuckDB)
	}
	if p.MinScore < 0 || p.MinScore > 1 {
		return fmt.Errorf("preset %q: min_score %.2f outside [0,1]", p.Name, p.MinScore)
	}
	if p.MinIntroSeconds < 0 || p.MaxIntroSeconds < p.MinIntroSeconds {
		return fmt.Errorf("preset %q: intro duration bounds invalid", p.Name)
	}
	return nil
}
