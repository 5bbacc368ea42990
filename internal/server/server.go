package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cubeio/flatstore/internal/logger"
	"github.com/cubeio/flatstore/pkg/metrics"
)

// Server is the TCP file-store server.
//
// It owns the listener, the accept loop, and a fixed-size pool of session
// workers. Each accepted connection is queued to the pool; exactly one
// worker owns a connection for its entire lifetime.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. sessionCtx cancelled (sessions exit at the next frame boundary)
//  4. Task queue closed; workers drain and exit
//  5. Wait for workers up to ShutdownTimeout, then force-close remaining
//     connections
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is idempotent via
// sync.Once.
type Server struct {
	// config holds the server configuration (address, pool, timeouts)
	config Config

	// listener is the TCP listener for accepting client connections
	listener net.Listener

	// metrics provides optional metrics collection (never nil; a no-op
	// implementation is substituted when none is provided)
	metrics metrics.ServerMetrics

	// tasks is the bounded queue between the accept loop and the workers
	tasks chan net.Conn

	// workers tracks the worker goroutines for graceful drain
	workers sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once

	// shutdown signals that shutdown has been initiated
	shutdown chan struct{}

	// connCount tracks the current number of active sessions
	connCount atomic.Int32

	// sessionCtx is cancelled during shutdown; sessions check it between
	// frames so an in-flight command always completes and its response is
	// written before the session ends
	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	// activeConns maps remote address to net.Conn for forced closure
	// after the shutdown timeout
	activeConns sync.Map

	// listenerReady is closed once the listener is bound; Addr() blocks
	// on it so tests can dial a server started with port 0
	listenerReady chan struct{}
}

// Config holds the runtime configuration for the server.
//
// Zero values are replaced with defaults by applyDefaults.
type Config struct {
	// Address is the interface to bind. Empty binds all interfaces.
	Address string

	// Port is the TCP port to listen on. 0 lets the OS pick (tests).
	Port int

	// StoragePath is the flat directory holding stored files. Each worker
	// constructs its own handler set from this value.
	StoragePath string

	// PoolSize is the number of session workers.
	PoolSize int

	// QueueSize bounds the accepted-connection queue. When full, the
	// accept loop blocks.
	QueueSize int

	// IdleTimeout ends a session that sends nothing for this duration.
	IdleTimeout time.Duration

	// WriteTimeout bounds a single response write. 0 means no timeout.
	WriteTimeout time.Duration

	// MaxFrameSize bounds the session read buffer.
	MaxFrameSize int

	// CommandsPerSecond throttles each session's command rate.
	// 0 means unlimited.
	CommandsPerSecond uint

	// ShutdownTimeout is the maximum wait for sessions to drain before
	// remaining connections are force-closed.
	ShutdownTimeout time.Duration
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port < 0 {
		c.Port = 6667
	}
	if c.StoragePath == "" {
		c.StoragePath = "files"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 32 << 20
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("invalid PoolSize %d: must be > 0", c.PoolSize)
	}
	if c.QueueSize < c.PoolSize {
		return fmt.Errorf("invalid QueueSize %d: must be >= PoolSize %d", c.QueueSize, c.PoolSize)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("invalid MaxFrameSize %d: must be > 0", c.MaxFrameSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a Server with the specified configuration.
//
// The server is created in a stopped state; call Serve() to bind the
// listener and start accepting connections.
//
// Panics if config validation fails (programmer error).
func New(config Config, serverMetrics metrics.ServerMetrics) *Server {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	if serverMetrics == nil {
		serverMetrics = metrics.NewNoopServerMetrics()
	}

	sessionCtx, cancelSessions := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		metrics:        serverMetrics,
		tasks:          make(chan net.Conn, config.QueueSize),
		shutdown:       make(chan struct{}),
		sessionCtx:     sessionCtx,
		cancelSessions: cancelSessions,
		listenerReady:  make(chan struct{}),
	}
}

// Serve binds the listener, starts the worker pool, and runs the accept
// loop until the context is cancelled or an unrecoverable error occurs.
//
// Returns nil on graceful shutdown, an error if the listener cannot be
// bound or the drain timeout is exceeded.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Address, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener on %s: %w", addr, err)
	}

	s.listener = listener
	close(s.listenerReady)
	logger.Info("Server listening on %s (pool size %d)", listener.Addr(), s.config.PoolSize)
	logger.Debug("Server config: queue_size=%d idle_timeout=%v max_frame_size=%d",
		s.config.QueueSize, s.config.IdleTimeout, s.config.MaxFrameSize)

	if err := s.startWorkers(); err != nil {
		_ = listener.Close()
		return err
	}

	// Monitor context cancellation separately so the accept loop stays a
	// plain blocking loop.
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				// Expected: the listener was closed during shutdown.
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		s.metrics.RecordConnectionAccepted()
		logger.Debug("Connection accepted from %s", conn.RemoteAddr())

		// Queue the connection for a worker. Blocks when the queue is
		// full: backpressure lands in the kernel accept backlog instead
		// of server memory.
		select {
		case s.tasks <- conn:
			s.metrics.SetQueuedConnections(len(s.tasks))
		case <-s.shutdown:
			_ = conn.Close()
			return s.gracefulShutdown()
		}
	}
}

// initiateShutdown signals the server to begin graceful shutdown. Safe to
// call multiple times and from multiple goroutines.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Shutdown initiated")

		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}

		// Sessions observe this between frames: the command being served
		// completes and its response is written, then the session exits.
		s.cancelSessions()
	})
}

// gracefulShutdown closes the task queue, waits for workers to drain, and
// force-closes whatever remains after the timeout.
//
// Returns nil if all sessions completed gracefully, an error if the
// timeout was exceeded.
func (s *Server) gracefulShutdown() error {
	// No new submissions can happen: the accept loop has exited.
	close(s.tasks)

	active := s.connCount.Load()
	logger.Info("Graceful shutdown: waiting for %d active session(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown complete: all sessions closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded: %d session(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("shutdown timeout: %d sessions force-closed", remaining)
	}
}

// forceCloseConnections closes all tracked TCP connections. Sessions stuck
// in a blocking read fail immediately and their workers exit.
func (s *Server) forceCloseConnections() {
	closedCount := 0
	s.activeConns.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}

		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for sessions to finish.
//
// Safe to call multiple times and concurrently with Serve(). If ctx is
// nil the configured ShutdownTimeout applies; otherwise ctx bounds the
// wait.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		ctx2, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		ctx = ctx2
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections returns the number of sessions currently being served.
// Primarily used by tests and metrics logging.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the listener address. It blocks until the listener is
// bound, so tests that start the server with port 0 can discover the
// assigned port.
func (s *Server) Addr() net.Addr {
	<-s.listenerReady
	return s.listener.Addr()
}
