package configs

import (
	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values
func SetDefaults() {
	// Application defaults
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_level", "info")

	// Directory defaults
	viper.SetDefault("config_dir", DefaultConfigDir())
	viper.SetDefault("data_dir", DefaultDataDir())

	// Feature extraction defaults
	viper.SetDefault("audio.sample_rate", 22050)
	viper.SetDefault("audio.window_ms", 25.0)
	viper.SetDefault("audio.hop_ms", 20.0)
	viper.SetDefault("audio.mel_bands", 40)
	viper.SetDefault("audio.mfcc_coefficients", 20)

	// Matcher defaults
	viper.SetDefault("match.stride", 25)
	viper.SetDefault("match.top_k", 8)
	viper.SetDefault("match.min_score", 0.55)
	viper.SetDefault("match.search_window_seconds", 300.0)

	// External tool defaults
	viper.SetDefault("tools.ffmpeg_path", "ffmpeg")
	viper.SetDefault("tools.ffprobe_path", "ffprobe")
	viper.SetDefault("tools.probe_timeout", "30s")
	viper.SetDefault("tools.decode_timeout", "10m")
	viper.SetDefault("tools.render_timeout", "30m")

	// Ducking defaults
	viper.SetDefault("duck.duck_db", -9.0)
	viper.SetDefault("duck.fade_seconds", 0.12)

	// Batch defaults
	viper.SetDefault("batch.workers", 4)
	viper.SetDefault("batch.extensions", []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".webm", ".ts"})
}
