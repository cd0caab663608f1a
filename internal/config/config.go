// Package config loads and validates quicli configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Progress ProgressConfig `mapstructure:"progress"`
	Hub      HubConfig      `mapstructure:"hub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ProgressConfig controls renderer templates and timer cadence.
type ProgressConfig struct {
	Period             time.Duration `mapstructure:"period"`
	Resolution         string        `mapstructure:"resolution"`
	PercentageTemplate string        `mapstructure:"percentage_template"`
	TimeTemplate       string        `mapstructure:"time_template"`
}

// HubConfig sizes the progress event hub.
type HubConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SearchPaths lists the directories searched for quicli.{yaml,json,toml}
// when no explicit config file is given.
var SearchPaths = []string{".", "$HOME/.config/quicli"}

// Load builds a Config from disk, environment (QUICLI_ prefix) and flags.
// flags maps viper keys such as "progress.period" to the flag that
// overrides them; nil flags are skipped.
func Load(path string, flags map[string]*pflag.Flag) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUICLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("quicli")
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("progress.period", time.Second)
	v.SetDefault("progress.resolution", string(progress.ResolutionSeconds))
	v.SetDefault("progress.percentage_template", progress.DefaultPercentageTemplate)
	v.SetDefault("progress.time_template", "{{clock .Days .Seconds}}")
	v.SetDefault("hub.buffer_size", 256)
	v.SetDefault("hub.max_batch_events", 64)
	v.SetDefault("hub.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Progress.Period <= 0 {
		return fmt.Errorf("progress.period must be > 0")
	}
	switch progress.Resolution(c.Progress.Resolution) {
	case progress.ResolutionSeconds, progress.ResolutionMicroseconds:
	default:
		return fmt.Errorf("progress.resolution must be %q or %q", progress.ResolutionSeconds, progress.ResolutionMicroseconds)
	}
	if c.Progress.PercentageTemplate == "" || c.Progress.TimeTemplate == "" {
		return fmt.Errorf("progress templates must not be empty")
	}
	if c.Hub.BufferSize < 0 || c.Hub.MaxBatchEvents < 0 || c.Hub.MaxBatchWait < 0 {
		return fmt.Errorf("hub settings must be >= 0")
	}
	return nil
}

// HubOptions converts the hub settings into progress.HubConfig.
func (c Config) HubOptions() progress.HubConfig {
	return progress.HubConfig{
		BufferSize:     c.Hub.BufferSize,
		MaxBatchEvents: c.Hub.MaxBatchEvents,
		MaxBatchWait:   c.Hub.MaxBatchWait,
	}
}
