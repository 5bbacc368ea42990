package metrics

import "time"

// ServerMetrics provides observability for the file server.
//
// Implementations collect metrics about command execution, connection
// lifecycle, and throughput. The interface is optional - components given
// nil use a no-op implementation with zero overhead.
type ServerMetrics interface {
	// RecordCommand records a completed command with its verb, duration,
	// and response status ("OK" or "ERROR").
	RecordCommand(verb string, duration time.Duration, status string)

	// RecordBytesTransferred records stored or fetched file bytes.
	//
	// Parameters:
	//   - direction: "store" or "fetch"
	//   - bytes: decoded file size in bytes
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current session count.
	SetActiveConnections(count int32)

	// SetQueuedConnections updates the number of accepted connections
	// waiting for a free worker.
	SetQueuedConnections(count int)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// force-closed at shutdown timeout.
	RecordConnectionForceClosed()
}

// noopServerMetrics discards all observations.
type noopServerMetrics struct{}

// NewNoopServerMetrics returns a ServerMetrics that does nothing.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

func (noopServerMetrics) RecordCommand(verb string, duration time.Duration, status string) {}
func (noopServerMetrics) RecordBytesTransferred(direction string, bytes int64)             {}
func (noopServerMetrics) SetActiveConnections(count int32)                                 {}
func (noopServerMetrics) SetQueuedConnections(count int)                                   {}
func (noopServerMetrics) RecordConnectionAccepted()                                        {}
func (noopServerMetrics) RecordConnectionClosed()                                          {}
func (noopServerMetrics) RecordConnectionForceClosed()                                     {}
