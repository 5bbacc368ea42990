package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the complete flatstore configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by cmd/flatstore)
//  2. Environment variables (FLATSTORE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains listener and lifecycle settings
	Server ServerConfig `mapstructure:"server"`

	// Storage configures the file storage root
	Storage StorageConfig `mapstructure:"storage"`

	// Pool configures the session worker pool
	Pool PoolConfig `mapstructure:"pool"`

	// Session contains per-connection settings
	Session SessionConfig `mapstructure:"session"`

	// Metrics configures the optional Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains listener and lifecycle settings.
type ServerConfig struct {
	// Address is the interface to bind. Empty means all interfaces.
	Address string `mapstructure:"address"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ShutdownTimeout is the maximum time to wait for active sessions to
	// drain during graceful shutdown before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig configures the file storage root.
type StorageConfig struct {
	// Path is the flat directory holding all stored files.
	// Created on first run if absent.
	Path string `mapstructure:"path" validate:"required"`
}

// PoolConfig configures the session worker pool.
type PoolConfig struct {
	// Size is the number of concurrent session workers. Each worker owns
	// one connection at a time for that connection's full lifetime.
	Size int `mapstructure:"size" validate:"min=1"`

	// QueueSize bounds the number of accepted connections waiting for a
	// free worker. When full, the accept loop blocks, pushing backpressure
	// into the kernel accept backlog.
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
}

// SessionConfig contains per-connection settings.
type SessionConfig struct {
	// IdleTimeout closes a session that sends nothing for this duration.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// WriteTimeout bounds a single response write. 0 means no timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// MaxFrameSize bounds the session read buffer. A session whose buffer
	// grows past this without a frame delimiter receives one ERROR
	// response and is closed.
	MaxFrameSize int `mapstructure:"max_frame_size" validate:"min=1"`

	// CommandsPerSecond throttles commands per session via a token bucket.
	// 0 means unlimited.
	CommandsPerSecond uint `mapstructure:"commands_per_second"`
}

// MetricsConfig configures the optional Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled starts the HTTP metrics server when true.
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port for the /metrics endpoint.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location; a missing file is not an error)
//
// Returns the loaded and validated configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file handling.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FLATSTORE_ prefix and underscores.
	// Example: FLATSTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FLATSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, falling back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flatstore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "flatstore")
}
