package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`

	ConfigDir string `mapstructure:"config_dir"`
	DataDir   string `mapstructure:"data_dir"`

	// Analysis configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Matching configuration
	Match MatchConfig `mapstructure:"match"`

	// External tool configuration
	Tools ToolsConfig `mapstructure:"tools"`

	// Ducking defaults when neither flags nor a preset supply them
	Duck DuckConfig `mapstructure:"duck"`

	// Batch configuration
	Batch BatchConfig `mapstructure:"batch"`
}

// AudioConfig contains feature extraction settings
type AudioConfig struct {
	SampleRate       int     `mapstructure:"sample_rate"`
	WindowMS         float64 `mapstructure:"window_ms"`
	HopMS            float64 `mapstructure:"hop_ms"`
	MelBands         int     `mapstructure:"mel_bands"`
	MFCCCoefficients int     `mapstructure:"mfcc_coefficients"`
}

// MatchConfig contains matcher search settings
type MatchConfig struct {
	Stride              int     `mapstructure:"stride"`
	TopK                int     `mapstructure:"top_k"`
	MinScore            float64 `mapstructure:"min_score"`
	SearchWindowSeconds float64 `mapstructure:"search_window_seconds"`
}

// ToolsConfig contains external tool paths and per-stage deadlines
type ToolsConfig struct {
	FFmpegPath    string        `mapstructure:"ffmpeg_path"`
	FFprobePath   string        `mapstructure:"ffprobe_path"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	DecodeTimeout time.Duration `mapstructure:"decode_timeout"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
}

// DuckConfig contains ducking defaults
type DuckConfig struct {
	DuckDB      float64 `mapstructure:"duck_db"`
	FadeSeconds float64 `mapstructure:"fade_seconds"`
}

// BatchConfig contains batch processing settings
type BatchConfig struct {
	Workers    int      `mapstructure:"workers"`
	Extensions []string `mapstructure:"extensions"`
}

// LoadConfig builds the configuration from viper's merged state
// (defaults, config file, environment, flags).
func LoadConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive: %d", c.Audio.SampleRate)
	}
	if c.Audio.WindowMS <= 0 || c.Audio.HopMS <= 0 {
		return fmt.Errorf("audio window and hop must be positive")
	}
	if c.Audio.MFCCCoefficients <= 0 || c.Audio.MelBands < c.Audio.MFCCCoefficients {
		return fmt.Errorf("audio.mfcc_coefficients must fit in audio.mel_bands")
	}
	if c.Match.MinScore < 0 || c.Match.MinScore > 1 {
		return fmt.Errorf("match.min_score must be in [0,1]: %f", c.Match.MinScore)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive: %d", c.Batch.Workers)
	}
	return nil
}

// PresetsDir returns the directory presets are stored in
func (c *Config) PresetsDir() string {
	return filepath.Join(c.ConfigDir, "presets")
}

// DefaultConfigDir returns the platform default configuration directory
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "intro-tamer")
}

// DefaultDataDir returns the platform default data directory
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "intro-tamer")
}
