// Package app assembles the runtime pieces a command needs: merged
// configuration, logging, and the pipeline engine.
package app

import (
	"fmt"

	"github.com/samjhill/intro-tamer/configs"
	"github.com/samjhill/intro-tamer/internal/tamer"
	"github.com/samjhill/intro-tamer/logging"
)

// Context holds the application context shared by commands
type Context struct {
	Config *configs.Config
	Logger logging.Logger
	Engine *tamer.Engine
}

// NewContext loads configuration, configures logging, and builds the
// pipeline engine.
func NewContext() (*Context, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.GetGlobalLogger()
	if config.Verbose {
		logger.SetLevel(logging.DebugLevel)
	} else {
		logger.SetLevel(logging.ParseLevel(config.LogLevel))
	}

	engine, err := tamer.NewEngine(config, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Application initialized", logging.Fields{
		"config_dir":  config.ConfigDir,
		"sample_rate": config.Audio.SampleRate,
	})

	return &Context{
		Config: config,
		Logger: logger,
		Engine: engine,
	}, nil
}
