package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Pool          PoolConfig          `mapstructure:"pool" validate:"required"`
	Log           LogConfig           `mapstructure:"log" validate:"required"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Sequential    SequentialConfig    `mapstructure:"sequential"`
	Timer         TimerConfig         `mapstructure:"timer"`
	RemoteCall    RemoteCallConfig    `mapstructure:"remote_call"`
	FanOut        FanOutConfig        `mapstructure:"fan_out"`
	Progress      ProgressConfig      `mapstructure:"progress"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// PoolConfig sizes the worker pool every controller shares.
type PoolConfig struct {
	Workers int `mapstructure:"workers" validate:"required,gt=0,lte=1024"`
}

// LogConfig contains the structured logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr         string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

type SequentialConfig struct {
	LoginDelay       time.Duration `mapstructure:"login_delay" validate:"gt=0"`
	ProfileDelay     time.Duration `mapstructure:"profile_delay" validate:"gt=0"`
	PreferencesDelay time.Duration `mapstructure:"preferences_delay" validate:"gt=0"`
}

type TimerConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxTicks int           `mapstructure:"max_ticks" validate:"gt=0"`
}

type RemoteCallConfig struct {
	MinLatency  time.Duration `mapstructure:"min_latency" validate:"gt=0"`
	MaxLatency  time.Duration `mapstructure:"max_latency" validate:"gtefield=MinLatency"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
}

type FanOutConfig struct {
	TemperatureDelay time.Duration `mapstructure:"temperature_delay" validate:"gt=0"`
	HumidityDelay    time.Duration `mapstructure:"humidity_delay" validate:"gt=0"`
	WindDelay        time.Duration `mapstructure:"wind_delay" validate:"gt=0"`
}

type ProgressConfig struct {
	ChunkInterval time.Duration `mapstructure:"chunk_interval" validate:"gt=0"`
	Files         []FileConfig  `mapstructure:"files" validate:"required,min=1,dive"`
}

// FileConfig describes one simulated download; the chunk count is drawn
// from [MinChunks, MaxChunks].
type FileConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	MinChunks int    `mapstructure:"min_chunks" validate:"gt=0"`
	MaxChunks int    `mapstructure:"max_chunks" validate:"gtefield=MinChunks"`
}

type NotificationsConfig struct {
	Interval         time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxNotifications int           `mapstructure:"max_notifications" validate:"gt=0"`
	Messages         []string      `mapstructure:"messages" validate:"required,min=1,dive,required"`
}
