// Package config loads procd's daemon configuration: viper layering a
// config file, PROCD_-prefixed environment variables, and hardcoded
// defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kdlbs/procd/internal/logger"
)

// Config is the daemon's full configuration surface.
type Config struct {
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Logging logger.Config `mapstructure:"logging"`
	Process ProcessConfig `mapstructure:"process"`
}

// DaemonConfig overrides the XDG-resolved paths and shutdown timing.
type DaemonConfig struct {
	DataDir             string `mapstructure:"dataDir"`
	RuntimeDir          string `mapstructure:"runtimeDir"`
	LogDir              string `mapstructure:"logDir"`
	ShutdownGraceMillis int    `mapstructure:"shutdownGraceMillis"`
}

// ProcessConfig tunes the per-process buffers and polling intervals.
type ProcessConfig struct {
	RingCapacity        int           `mapstructure:"ringCapacity"`
	WriterQueueCapacity int           `mapstructure:"writerQueueCapacity"`
	WriterBatchSize     int           `mapstructure:"writerBatchSize"`
	WriterBatchInterval time.Duration `mapstructure:"writerBatchInterval"`
	HubBufferSize       int           `mapstructure:"hubBufferSize"`
	PortPollInterval    time.Duration `mapstructure:"portPollInterval"`
	PortMaxPolls        int           `mapstructure:"portMaxPolls"`
	PortStablePolls     int           `mapstructure:"portStablePolls"`
	DefaultWaitTimeout  time.Duration `mapstructure:"defaultWaitTimeout"`
	HealthCheckDelay    time.Duration `mapstructure:"healthCheckDelay"`
}

// Defaults are the daemon's built-in tuning constants.
func Defaults() Config {
	return Config{
		Daemon: DaemonConfig{
			ShutdownGraceMillis: 500,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			OutputPath: "",
		},
		Process: ProcessConfig{
			RingCapacity:        10000,
			WriterQueueCapacity: 10000,
			WriterBatchSize:     100,
			WriterBatchInterval: 500 * time.Millisecond,
			HubBufferSize:       10000,
			PortPollInterval:    3 * time.Second,
			PortMaxPolls:        30,
			PortStablePolls:     3,
			DefaultWaitTimeout:  30 * time.Second,
			HealthCheckDelay:    500 * time.Millisecond,
		},
	}
}

// Load reads procd.yaml from the working directory or XDG config dir (if
// present), overlays PROCD_* environment variables, and falls back to
// Defaults() for anything unset.
func Load() (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("procd")
	v.AddConfigPath(".")
	v.AddConfigPath("$XDG_CONFIG_HOME/procd")
	v.AddConfigPath("$HOME/.config/procd")
	v.SetEnvPrefix("PROCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
