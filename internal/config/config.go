// Package config provides configuration management for skyplayer using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8090
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultPositionInterval  = 500 * time.Millisecond
	defaultHTTPTimeout       = 15 * time.Second
	defaultEventRateLimit    = 10.0
	defaultHistoryRetention  = 30 * 24 * time.Hour
	defaultHistoryFlushEvery = 10 * time.Second
	defaultLogFileMaxBytes   = 1024 * 1024
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Player   PlayerConfig   `mapstructure:"player"`
	History  HistoryConfig  `mapstructure:"history"`
	Remote   RemoteConfig   `mapstructure:"remote"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string        `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string        `mapstructure:"format"` // json, text
	AddSource  bool          `mapstructure:"add_source"`
	TimeFormat string        `mapstructure:"time_format"`
	File       LogFileConfig `mapstructure:"file"`
}

// LogFileConfig holds the optional rotating log file sink.
type LogFileConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// PlayerConfig holds playback engine configuration.
type PlayerConfig struct {
	// PositionInterval is how often the position ticker samples the engine.
	PositionInterval time.Duration `mapstructure:"position_interval"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	// EventRateLimit caps state frames per second on each SSE connection.
	EventRateLimit float64 `mapstructure:"event_rate_limit"`
	// InitialURL, when set, is loaded as soon as the server starts.
	InitialURL string `mapstructure:"initial_url"`
}

// HistoryConfig holds playback history configuration.
type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// RemoteConfig holds remote control adapters.
type RemoteConfig struct {
	MPRIS MPRISConfig `mapstructure:"mpris"`
}

// MPRISConfig holds the D-Bus MPRIS2 adapter configuration.
type MPRISConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with SKYPLAYER_ and use underscores for nesting.
// Example: SKYPLAYER_SERVER_PORT=8090.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/skyplayer")
		v.AddConfigPath("$HOME/.skyplayer")
	}

	v.SetEnvPrefix("SKYPLAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		byteSizeHook,
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// byteSizeHook decodes sizes such as "5MiB" or "10 MB" into int64 fields.
// Durations are int64 too and are left to the duration hook.
func byteSizeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int64 || to == reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	n, err := humanize.ParseBytes(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %w", data, err)
	}
	return int64(n), nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", 0) // SSE connections are long lived
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "skyplayer.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "skyplayer.log")
	v.SetDefault("logging.file.max_bytes", defaultLogFileMaxBytes)

	// Player defaults
	v.SetDefault("player.position_interval", defaultPositionInterval)
	v.SetDefault("player.http_timeout", defaultHTTPTimeout)
	v.SetDefault("player.user_agent", "")
	v.SetDefault("player.event_rate_limit", defaultEventRateLimit)
	v.SetDefault("player.initial_url", "")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.retention", defaultHistoryRetention)
	v.SetDefault("history.prune_schedule", "@hourly")
	v.SetDefault("history.flush_interval", defaultHistoryFlushEvery)

	// Remote defaults
	v.SetDefault("remote.mpris.enabled", false)
	v.SetDefault("remote.mpris.name", "skyplayer")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		return fmt.Errorf("logging.file.path is required when file logging is enabled")
	}

	if c.Player.PositionInterval <= 0 {
		return fmt.Errorf("player.position_interval must be positive")
	}
	if c.Player.EventRateLimit <= 0 {
		return fmt.Errorf("player.event_rate_limit must be positive")
	}

	if c.History.Enabled {
		if c.History.Retention <= 0 {
			return fmt.Errorf("history.retention must be positive")
		}
		if _, err := cron.ParseStandard(c.History.PruneSchedule); err != nil {
			return fmt.Errorf("history.prune_schedule is invalid: %w", err)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
