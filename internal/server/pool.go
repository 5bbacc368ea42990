package server

import (
	"fmt"
	"net"

	"github.com/cubeio/flatstore/internal/logger"
	"github.com/cubeio/flatstore/internal/storage"
)

// startWorkers launches the fixed-size session worker pool.
//
// Each worker builds its own handler set from the configured storage root,
// so no handler state is shared between workers. Workers consume accepted
// connections from the task queue and own one connection at a time for
// that connection's full lifetime.
func (s *Server) startWorkers() error {
	for i := 0; i < s.config.PoolSize; i++ {
		store, err := storage.NewStore(s.sessionCtx, s.config.StoragePath)
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}

		handler := NewHandler(store, s.metrics)

		s.workers.Add(1)
		go s.worker(i, handler)
	}

	logger.Debug("Started %d session workers", s.config.PoolSize)
	return nil
}

// worker serves queued connections until the task queue is closed and
// drained. A slow or long-lived session holds this worker for its whole
// duration; that is what bounds overall concurrency to the pool size.
func (s *Server) worker(id int, handler *Handler) {
	defer s.workers.Done()

	for conn := range s.tasks {
		s.metrics.SetQueuedConnections(len(s.tasks))
		s.serveConn(id, conn, handler)
	}

	logger.Debug("Worker %d exiting", id)
}

// serveConn tracks one connection and runs its session loop.
func (s *Server) serveConn(workerID int, conn net.Conn, handler *Handler) {
	addr := conn.RemoteAddr().String()
	s.activeConns.Store(addr, conn)
	current := s.connCount.Add(1)
	s.metrics.SetActiveConnections(current)

	logger.Debug("Worker %d serving connection from %s (active: %d)", workerID, addr, current)

	defer func() {
		s.activeConns.Delete(addr)
		current := s.connCount.Add(-1)
		s.metrics.RecordConnectionClosed()
		s.metrics.SetActiveConnections(current)

		logger.Debug("Connection from %s closed (active: %d)", addr, current)
	}()

	sess := newSession(s, conn, handler)
	sess.serve(s.sessionCtx)
}
