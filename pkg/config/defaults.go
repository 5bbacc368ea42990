package config

import (
	"strings"
	"time"
)

// Defaults carried from the reference deployment.
const (
	DefaultPort         = 6667
	DefaultPoolSize     = 5
	DefaultQueueSize    = 64
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultWriteTimeout = 30 * time.Second
	DefaultMaxFrameSize = 32 << 20 // 32 MiB
	DefaultStoragePath  = "/var/lib/flatstore/files"
	DefaultMetricsPort  = 9090
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyPoolDefaults(&cfg.Pool)
	applySessionDefaults(&cfg.Session)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultStoragePath
	}
}

func applyPoolDefaults(cfg *PoolConfig) {
	if cfg.Size == 0 {
		cfg.Size = DefaultPoolSize
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	// CommandsPerSecond defaults to 0 (unlimited)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
	// Enabled defaults to false
}
