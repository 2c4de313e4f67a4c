package cmd

import (
	"fmt"

	"equipix/codec"
	"equipix/compress"
	"equipix/config"
	"equipix/logger"
	"equipix/metrics"
)

// loadConfig reads the configuration and applies its logging section.
func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.File, cfg.Logging.Console || cfg.Logging.File == "", level); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// newCompressor builds the image codec and compressor for cfg, reporting
// every result to the metrics package.
func newCompressor(cfg *config.Config) (*compress.Compressor, error) {
	return compress.NewCompressor(codec.NewImageCodec(), cfg.Budget, compress.WithObserver(metrics.ObserveResult))
}
