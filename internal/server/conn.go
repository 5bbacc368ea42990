package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/cubeio/flatstore/internal/logger"
	"github.com/cubeio/flatstore/internal/protocol"
	"github.com/cubeio/flatstore/internal/ratelimiter"
)

// readChunkSize bounds a single read so one slow or hostile client cannot
// make the server allocate arbitrarily per read.
const readChunkSize = 1 << 20 // 1 MiB

// session is the per-connection state machine.
//
// It owns the socket exclusively: reads chunks into the buffer, extracts
// complete frames, dispatches them in arrival order, and writes each
// response before reading again. That ordering is what guarantees
// one-response-per-command semantics when several commands arrive in a
// single read.
type session struct {
	server  *Server
	conn    net.Conn
	handler *Handler
	limiter *ratelimiter.CommandLimiter

	// buffer accumulates bytes until a frame delimiter is found, then is
	// trimmed past the extracted frame
	buffer []byte
}

func newSession(s *Server, conn net.Conn, handler *Handler) *session {
	var limiter *ratelimiter.CommandLimiter
	if s.config.CommandsPerSecond > 0 {
		limiter = ratelimiter.New(s.config.CommandsPerSecond, s.config.CommandsPerSecond*2)
	}

	return &session{
		server:  s,
		conn:    conn,
		handler: handler,
		limiter: limiter,
	}
}

// serve runs the session loop until EOF, idle timeout, shutdown, or an
// unrecoverable error.
//
// Panic recovery keeps a single misbehaving session from crashing the
// server; the connection is closed unconditionally on exit.
func (s *session) serve(ctx context.Context) {
	clientAddr := s.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in session from %s: %v", clientAddr, r)
		}
		_ = s.conn.Close()
	}()

	s.resetIdleDeadline(clientAddr)

	chunk := make([]byte, readChunkSize)

	for {
		// Exit between frames on shutdown; the command being served has
		// already completed and its response has been written.
		select {
		case <-ctx.Done():
			logger.Debug("Session from %s closed due to shutdown", clientAddr)
			return
		default:
		}

		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buffer = append(s.buffer, chunk[:n]...)

			if !s.drainFrames(ctx, clientAddr) {
				return
			}

			if len(s.buffer) > s.server.config.MaxFrameSize {
				logger.Warn("Session from %s exceeded max frame size (%d bytes buffered) - closing",
					clientAddr, len(s.buffer))
				s.writeResponse(protocol.Errorf("Frame too large"))
				return
			}

			s.resetIdleDeadline(clientAddr)
		}

		if err != nil {
			if err == io.EOF {
				logger.Debug("Session from %s closed by client", clientAddr)
			} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Debug("Session from %s timed out", clientAddr)
			} else {
				logger.Debug("Error reading from %s: %v", clientAddr, err)
			}
			return
		}
	}
}

// drainFrames serves every complete frame currently in the buffer, in
// order. Returns false if the session must end.
func (s *session) drainFrames(ctx context.Context, clientAddr string) bool {
	for {
		frame, rest, ok := protocol.ExtractFrame(s.buffer)
		if !ok {
			return true
		}
		s.buffer = rest

		if !s.serveFrame(ctx, clientAddr, frame) {
			return false
		}
	}
}

// serveFrame decodes one frame, dispatches it, and writes the response.
// Returns false if the session must end.
func (s *session) serveFrame(ctx context.Context, clientAddr string, frame []byte) bool {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			logger.Debug("Session from %s cancelled while throttled: %v", clientAddr, err)
			return false
		}
	}

	verb := "INVALID"
	start := time.Now()

	var resp *protocol.Response
	cmd, decodeErr := protocol.ParseCommand(string(frame))
	if decodeErr != nil {
		logger.Debug("Decode error from %s: %s", clientAddr, decodeErr.Message)
		resp = protocol.Errorf("%s", decodeErr.Message)
	} else {
		verb = string(cmd.Verb)
		resp = s.handler.Dispatch(ctx, cmd)
	}

	s.server.metrics.RecordCommand(verb, time.Since(start), resp.Status)

	return s.writeResponse(resp)
}

// writeResponse encodes and writes one response frame. Returns false on
// failure; an unwritable socket ends the session.
func (s *session) writeResponse(resp *protocol.Response) bool {
	encoded, err := protocol.EncodeResponse(resp)
	if err != nil {
		// Responses are built from validated fields; failing to marshal
		// one is an internal bug worth surfacing loudly.
		logger.Error("Failed to encode response: %v", err)
		return false
	}

	if s.server.config.WriteTimeout > 0 {
		deadline := time.Now().Add(s.server.config.WriteTimeout)
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			logger.Debug("Failed to set write deadline for %s: %v", s.conn.RemoteAddr(), err)
			return false
		}
	}

	if _, err := s.conn.Write(encoded); err != nil {
		logger.Debug("Error writing response to %s: %v", s.conn.RemoteAddr(), err)
		return false
	}

	return true
}

// resetIdleDeadline pushes the read deadline forward after activity.
func (s *session) resetIdleDeadline(clientAddr string) {
	if s.server.config.IdleTimeout <= 0 {
		return
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.server.config.IdleTimeout)); err != nil {
		logger.Warn("Failed to set deadline for %s: %v", clientAddr, err)
	}
}
