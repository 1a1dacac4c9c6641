package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/samjhill/intro-tamer/configs"
	"github.com/samjhill/intro-tamer/internal/tamer"
)

var (
	configFile string
	configDir  string
	verbose    bool
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "intro-tamer",
	Short: "Automatic TV intro loudness reduction",
	Long: `Intro Tamer detects the opening-title sequence of TV episodes and
renders a copy with that interval ducked to a comfortable level.

Detection matches a per-show reference fingerprint (MFCC features) against
the episode audio; loudness targets follow EBU R128. Video and subtitle
streams are copied untouched, only audio is re-encoded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, viper.GetViper())
	},
}

// Execute runs the root command and maps the error taxonomy to exit codes
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(tamer.ExitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/intro-tamer/intro-tamer.yaml)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"config directory (default is $HOME/.config/intro-tamer)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "intro-tamer"))
		}
		viper.AddConfigPath("/etc/intro-tamer")
		viper.AddConfigPath(".")
		viper.SetConfigName("intro-tamer")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("INTRO_TAMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configs.SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		if err := v.BindEnv(f.Name, "INTRO_TAMER_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// invalidArgs wraps a user input problem so it exits with code 3
func invalidArgs(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{tamer.ErrInvalidArguments}, args...)...)
}
