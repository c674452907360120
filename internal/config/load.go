package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	taskpatterns "github.com/Swind/go-task-patterns"
	"github.com/Swind/go-task-patterns/patterns"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKPATTERNS"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the file.
// An empty path looks for taskpatterns.{yaml,json,toml} in the working
// directory and tolerates its absence.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskpatterns")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags. Callers that override fields after Load
// must validate again.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := taskpatterns.DefaultCatalogConfig()

	v.SetDefault("pool.workers", def.Workers)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.poll_interval", time.Second)

	v.SetDefault("sequential.login_delay", def.Sequential.LoginDelay)
	v.SetDefault("sequential.profile_delay", def.Sequential.ProfileDelay)
	v.SetDefault("sequential.preferences_delay", def.Sequential.PreferencesDelay)

	v.SetDefault("timer.interval", def.Timer.Interval)
	v.SetDefault("timer.max_ticks", def.Timer.MaxTicks)

	v.SetDefault("remote_call.min_latency", def.RemoteCall.MinLatency)
	v.SetDefault("remote_call.max_latency", def.RemoteCall.MaxLatency)
	v.SetDefault("remote_call.failure_rate", def.RemoteCall.FailureRate)

	v.SetDefault("fan_out.temperature_delay", def.FanOut.TemperatureDelay)
	v.SetDefault("fan_out.humidity_delay", def.FanOut.HumidityDelay)
	v.SetDefault("fan_out.wind_delay", def.FanOut.WindDelay)

	files := make([]map[string]any, 0, len(def.Progress.Files))
	for _, f := range def.Progress.Files {
		files = append(files, map[string]any{
			"name":       f.Name,
			"min_chunks": f.MinChunks,
			"max_chunks": f.MaxChunks,
		})
	}
	v.SetDefault("progress.chunk_interval", def.Progress.ChunkInterval)
	v.SetDefault("progress.files", files)

	v.SetDefault("notifications.interval", def.Notifications.Interval)
	v.SetDefault("notifications.max_notifications", def.Notifications.MaxNotifications)
	v.SetDefault("notifications.messages", def.Notifications.Messages)
}

// CatalogConfig converts the loaded settings into the controllers' config.
func (c *Config) CatalogConfig() taskpatterns.CatalogConfig {
	files := make([]patterns.FileSpec, 0, len(c.Progress.Files))
	for _, f := range c.Progress.Files {
		files = append(files, patterns.FileSpec{Name: f.Name, MinChunks: f.MinChunks, MaxChunks: f.MaxChunks})
	}

	return taskpatterns.CatalogConfig{
		Workers: c.Pool.Workers,
		Sequential: patterns.SequentialConfig{
			LoginDelay:       c.Sequential.LoginDelay,
			ProfileDelay:     c.Sequential.ProfileDelay,
			PreferencesDelay: c.Sequential.PreferencesDelay,
		},
		Timer: patterns.TimerConfig{
			Interval: c.Timer.Interval,
			MaxTicks: c.Timer.MaxTicks,
		},
		RemoteCall: patterns.RemoteCallConfig{
			MinLatency:  c.RemoteCall.MinLatency,
			MaxLatency:  c.RemoteCall.MaxLatency,
			FailureRate: c.RemoteCall.FailureRate,
		},
		FanOut: patterns.FanOutConfig{
			TemperatureDelay: c.FanOut.TemperatureDelay,
			HumidityDelay:    c.FanOut.HumidityDelay,
			WindDelay:        c.FanOut.WindDelay,
		},
		Progress: patterns.ProgressConfig{
			ChunkInterval: c.Progress.ChunkInterval,
			Files:         files,
		},
		Notifications: patterns.NotificationConfig{
			Interval:         c.Notifications.Interval,
			MaxNotifications: c.Notifications.MaxNotifications,
			Messages:         append([]string(nil), c.Notifications.Messages...),
		},
	}
}
