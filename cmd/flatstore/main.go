package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cubeio/flatstore/internal/logger"
	"github.com/cubeio/flatstore/internal/server"
	"github.com/cubeio/flatstore/pkg/config"
	"github.com/cubeio/flatstore/pkg/metrics"
	prommetrics "github.com/cubeio/flatstore/pkg/metrics/prometheus"
)

func main() {
	// Server configuration flags; unset flags fall through to the config
	// file, environment, and defaults.
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/flatstore/config.yaml)")
	port := flag.Int("port", 0, "Port to listen on")
	poolSize := flag.Int("pool-size", 0, "Number of session workers")
	storagePath := flag.String("storage-path", "", "Directory holding stored files")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flags take precedence over file and environment.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *poolSize != 0 {
		cfg.Pool.Size = *poolSize
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Storage path: %s", cfg.Storage.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serverMetrics metrics.ServerMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		serverMetrics = prommetrics.NewServerMetrics()

		metricsServer := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Address:           cfg.Server.Address,
		Port:              cfg.Server.Port,
		StoragePath:       cfg.Storage.Path,
		PoolSize:          cfg.Pool.Size,
		QueueSize:         cfg.Pool.QueueSize,
		IdleTimeout:       cfg.Session.IdleTimeout,
		WriteTimeout:      cfg.Session.WriteTimeout,
		MaxFrameSize:      cfg.Session.MaxFrameSize,
		CommandsPerSecond: cfg.Session.CommandsPerSecond,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, serverMetrics)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, shutting down...", sig)
		cancel()
		if err := <-serverDone; err != nil {
			logger.Warn("Shutdown finished with error: %v", err)
			os.Exit(1)
		}
	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
	}
}
