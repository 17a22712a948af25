package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for seda
type Config struct {
	Stage   StageDefaults `mapstructure:"stage" yaml:"stage"`
	Adjust  AdjustConfig  `mapstructure:"adjust" yaml:"adjust"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Demo    DemoConfig    `mapstructure:"demo" yaml:"demo"`
	NATS    NATSConfig    `mapstructure:"nats" yaml:"nats"`
}

// StageDefaults are applied to every stage the pipeline creates
type StageDefaults struct {
	// MinPoolSize is the lower bound of each worker pool (default: 1)
	MinPoolSize int `mapstructure:"min_pool_size" yaml:"min_pool_size"`
	// MaxPoolSize is the upper bound of each worker pool (default: 100)
	MaxPoolSize int `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	// MaxTolerableDelayMs is how long a message may wait in a queue before
	// the stage starts shedding load (default: 1000)
	MaxTolerableDelayMs int `mapstructure:"max_tolerable_delay_ms" yaml:"max_tolerable_delay_ms"`
}

// MaxTolerableDelay returns the tolerable queueing delay as a time.Duration
func (s StageDefaults) MaxTolerableDelay() time.Duration {
	return time.Duration(s.MaxTolerableDelayMs) * time.Millisecond
}

// AdjustConfig controls the periodic pool adjuster
type AdjustConfig struct {
	// Enabled starts the adjuster when the pipeline starts (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// IntervalMs is the tick period in milliseconds (default: 1000)
	// Ticks closer together than one second are ignored by the stages.
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// Interval returns the adjust tick period as a time.Duration
func (a AdjustConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMs) * time.Millisecond
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json" (default: "text")
	Format string `mapstructure:"format" yaml:"format"`
	// Dir writes logs to <dir>/seda.log instead of stderr (default: "")
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DemoConfig drives the built-in demo pipeline used by `seda run`
type DemoConfig struct {
	// Messages is the number of messages to produce, 0 = until the duration elapses (default: 10000)
	Messages int `mapstructure:"messages" yaml:"messages"`
	// Rate is the producer rate in messages per second, 0 = as fast as possible (default: 2000)
	Rate int `mapstructure:"rate" yaml:"rate"`
	// WorkMs is the simulated processing time per message in the enrich stage (default: 2)
	WorkMs int `mapstructure:"work_ms" yaml:"work_ms"`
	// FailEvery makes every Nth message fail in the enrich stage, 0 = never (default: 0)
	FailEvery int `mapstructure:"fail_every" yaml:"fail_every"`
	// DurationSec bounds the run in seconds, 0 = until all messages drain (default: 0)
	DurationSec int `mapstructure:"duration_sec" yaml:"duration_sec"`
}

// Work returns the simulated processing time as a time.Duration
func (d DemoConfig) Work() time.Duration {
	return time.Duration(d.WorkMs) * time.Millisecond
}

// Duration returns the run bound as a time.Duration
func (d DemoConfig) Duration() time.Duration {
	return time.Duration(d.DurationSec) * time.Second
}

// NATSConfig controls the optional NATS bridge
type NATSConfig struct {
	// URL of the NATS server; empty disables the bridge (default: "")
	URL string `mapstructure:"url" yaml:"url"`
	// Subject the source subscribes to (default: "seda.in")
	Subject string `mapstructure:"subject" yaml:"subject"`
	// RejectSubject receives rejected messages; empty disables publishing (default: "seda.rejects")
	RejectSubject string `mapstructure:"reject_subject" yaml:"reject_subject"`
}

// Enabled reports whether a NATS server is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Stage: StageDefaults{
			MinPoolSize:         1,
			MaxPoolSize:         100,
			MaxTolerableDelayMs: 1000,
		},
		Adjust: AdjustConfig{
			Enabled:    true,
			IntervalMs: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Demo: DemoConfig{
			Messages: 10000,
			Rate:     2000,
			WorkMs:   2,
		},
		NATS: NATSConfig{
			Subject:       "seda.in",
			RejectSubject: "seda.rejects",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Stage defaults
	viper.SetDefault("stage.min_pool_size", defaults.Stage.MinPoolSize)
	viper.SetDefault("stage.max_pool_size", defaults.Stage.MaxPoolSize)
	viper.SetDefault("stage.max_tolerable_delay_ms", defaults.Stage.MaxTolerableDelayMs)

	// Adjust defaults
	viper.SetDefault("adjust.enabled", defaults.Adjust.Enabled)
	viper.SetDefault("adjust.interval_ms", defaults.Adjust.IntervalMs)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Demo defaults
	viper.SetDefault("demo.messages", defaults.Demo.Messages)
	viper.SetDefault("demo.rate", defaults.Demo.Rate)
	viper.SetDefault("demo.work_ms", defaults.Demo.WorkMs)
	viper.SetDefault("demo.fail_every", defaults.Demo.FailEvery)
	viper.SetDefault("demo.duration_sec", defaults.Demo.DurationSec)

	// NATS defaults
	viper.SetDefault("nats.url", defaults.NATS.URL)
	viper.SetDefault("nats.subject", defaults.NATS.Subject)
	viper.SetDefault("nats.reject_subject", defaults.NATS.RejectSubject)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Watch reloads the configuration whenever the config file in use is
// written, and passes the result to onChange. An invalid file is reported
// through err and leaves the previous configuration in effect. Watch does
// nothing if no config file was read.
func Watch(onChange func(cfg *Config, err error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Load())
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "seda")
	}
	// Fall back to ~/.config/seda
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seda"
	}
	return filepath.Join(home, ".config", "seda")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
