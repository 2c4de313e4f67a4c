package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"equipix/compress"
	"equipix/logger"
)

type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Budget    compress.Budget       `mapstructure:"budget"`
	Batch     compress.BatchOptions `mapstructure:"batch"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Retention RetentionConfig       `mapstructure:"retention"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

type RetentionConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	b := compress.DefaultBudget()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.callback_timeout", "30s")
	v.SetDefault("server.poll_interval", "1s")

	v.SetDefault("budget.max_bytes", b.MaxBytes)
	v.SetDefault("budget.max_width", b.MaxWidth)
	v.SetDefault("budget.max_height", b.MaxHeight)
	v.SetDefault("budget.initial_quality", b.InitialQuality)
	v.SetDefault("budget.quality_step", b.QualityStep)
	v.SetDefault("budget.min_quality", b.MinQuality)
	v.SetDefault("budget.max_attempts", b.MaxAttempts)
	v.SetDefault("budget.target_format", b.TargetFormat)

	v.SetDefault("batch.max_items", compress.DefaultMaxBatchItems)
	v.SetDefault("batch.workers", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.console", true)

	v.SetDefault("retention.max_age", "720h")
	v.SetDefault("retention.interval", "24h")
}

// Load reads defaults, then an optional equipix.yaml, then EQUIPIX_*
// environment variables (EQUIPIX_BUDGET_MAX_BYTES and so on).
// configFile, when non-empty, is read instead of searching the usual paths.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("equipix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/equipix")
	}

	v.SetEnvPrefix("EQUIPIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Debug("no equipix.yaml found, using defaults and environment")
	} else {
		logger.Infof("loaded configuration from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the budget, batch limits and logging level.
func (c *Config) Validate() error {
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if c.Batch.MaxItems <= 0 {
		return fmt.Errorf("batch.max_items must be positive, got %d", c.Batch.MaxItems)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.PollInterval <= 0 {
		return fmt.Errorf("server.poll_interval must be positive, got %v", c.Server.PollInterval)
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive, got %v", c.Retention.Interval)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
