package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a YAML config into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// No config file at this path; everything comes from defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.Path)
	assert.Equal(t, DefaultPoolSize, cfg.Pool.Size)
	assert.Equal(t, DefaultQueueSize, cfg.Pool.QueueSize)
	assert.Equal(t, DefaultIdleTimeout, cfg.Session.IdleTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Session.WriteTimeout)
	assert.Equal(t, DefaultMaxFrameSize, cfg.Session.MaxFrameSize)
	assert.Equal(t, uint(0), cfg.Session.CommandsPerSecond)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
server:
  address: 127.0.0.1
  port: 7000
  shutdown_timeout: 10s
storage:
  path: /tmp/flatstore-test
pool:
  size: 3
  queue_size: 16
session:
  idle_timeout: 5m
  max_frame_size: 1048576
  commands_per_second: 50
metrics:
  enabled: true
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Level is normalized to uppercase.
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/flatstore-test", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Pool.Size)
	assert.Equal(t, 16, cfg.Pool.QueueSize)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.Session.MaxFrameSize)
	assert.Equal(t, uint(50), cfg.Session.CommandsPerSecond)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)

	// Unset fields still get defaults.
	assert.Equal(t, DefaultWriteTimeout, cfg.Session.WriteTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: INFO
server:
  port: 7000
`)

	t.Setenv("FLATSTORE_LOGGING_LEVEL", "ERROR")
	t.Setenv("FLATSTORE_SERVER_PORT", "7100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "logging: [not: valid")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    "logging:\n  level: TRACE\n",
			wantErr: "oneof",
		},
		{
			name:    "port out of range",
			yaml:    "server:\n  port: 70000\n",
			wantErr: "max",
		},
		{
			name:    "relative storage path",
			yaml:    "storage:\n  path: relative/files\n",
			wantErr: "absolute",
		},
		{
			name:    "queue smaller than pool",
			yaml:    "pool:\n  size: 8\n  queue_size: 4\n",
			wantErr: "queue_size",
		},
		{
			name:    "metrics port conflict",
			yaml:    "server:\n  port: 9090\nmetrics:\n  enabled: true\n  port: 9090\n",
			wantErr: "conflicts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.yaml)

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Logging: LoggingConfig{Level: "warn"},
		Server:  ServerConfig{Port: 8000, ShutdownTimeout: time.Second},
		Pool:    PoolConfig{Size: 2, QueueSize: 2},
	}

	ApplyDefaults(&cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 2, cfg.Pool.Size)
	assert.Equal(t, 2, cfg.Pool.QueueSize)
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	assert.NoError(t, Validate(&cfg))
}
