package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Limit   LimitConfig   `mapstructure:"limit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	WSPath          string        `mapstructure:"ws_path"`
	StaticDir       string        `mapstructure:"static_dir"`       // served on every path except ws and metrics
	ReadLimit       int64         `mapstructure:"read_limit"`       // max size of an inbound frame in bytes
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // deadline for a single outbound frame
	SendQueue       int           `mapstructure:"send_queue"`       // outbound frames buffered per peer
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // how long to wait for peers on shutdown
}

// LimitConfig defines the per-peer inbound message rate
type LimitConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"` // 0 disables limiting
	Burst             int     `mapstructure:"burst"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RelayConfig defines the Redis pub/sub fan-out between instances
type RelayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("UPDOWN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	return decode()
}

// Watch calls onChange with the reloaded configuration every time the config file is written.
// It does nothing if Load found no config file
func Watch(onChange func(*Config, error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode())
	})
	viper.WatchConfig()
}

func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.ws_path", "/ws")
	viper.SetDefault("server.static_dir", "public")
	viper.SetDefault("server.read_limit", 4096)
	viper.SetDefault("server.write_timeout", "5s")
	viper.SetDefault("server.send_queue", 64)
	viper.SetDefault("server.shutdown_timeout", "5s")

	// Limits
	viper.SetDefault("limit.messages_per_second", 30)
	viper.SetDefault("limit.burst", 60)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Relay
	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.addr", "127.0.0.1:6379")
	viper.SetDefault("relay.channel", "updown:global")

	// Logger
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
