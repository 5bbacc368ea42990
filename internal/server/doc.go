// Package server implements the flatstore TCP server.
//
// # Architecture Overview
//
// The server follows a layered architecture:
//
//   - Server Layer (server.go): listener lifecycle, accept loop, shutdown
//   - Pool Layer (pool.go): fixed-size worker pool consuming accepted
//     connections from a bounded queue
//   - Session Layer (conn.go): per-connection framing, timeouts, panic
//     recovery
//   - Handler Layer (handler.go): command execution over the storage root
//
// # Concurrency Model
//
// A connection is bound to exactly one worker for its entire lifetime.
// Workers share nothing in memory: each builds its own handler set over
// the storage root, and the only shared resource is the filesystem itself.
// Within one session, responses are written in the exact order the
// commands arrived; across sessions no ordering is guaranteed.
//
// # Resource Bounds
//
//   - Pool size bounds concurrently served sessions
//   - Queue size bounds accepted-but-unserved connections; a full queue
//     blocks the accept loop
//   - MaxFrameSize bounds the per-session read buffer
//   - IdleTimeout reclaims abandoned connections
package server
