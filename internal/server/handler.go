package server

import (
	"context"
	"encoding/base64"

	"github.com/cubeio/flatstore/internal/logger"
	"github.com/cubeio/flatstore/internal/protocol"
	"github.com/cubeio/flatstore/internal/storage"
	"github.com/cubeio/flatstore/pkg/metrics"
)

// Handler executes decoded commands against a storage root.
//
// Every failure path - missing argument, invalid filename, bad payload
// encoding, file not found, I/O failure - becomes an ERROR response;
// a handler never terminates the session. Each worker owns its own
// Handler, constructed from the explicit storage-root configuration.
type Handler struct {
	store   *storage.Store
	metrics metrics.ServerMetrics
}

// NewHandler creates a Handler over the given store.
func NewHandler(store *storage.Store, serverMetrics metrics.ServerMetrics) *Handler {
	if serverMetrics == nil {
		serverMetrics = metrics.NewNoopServerMetrics()
	}

	return &Handler{store: store, metrics: serverMetrics}
}

// Dispatch routes a command to its verb handler.
func (h *Handler) Dispatch(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	switch cmd.Verb {
	case protocol.VerbStore:
		return h.handleStore(ctx, cmd)
	case protocol.VerbFetch:
		return h.handleFetch(ctx, cmd)
	case protocol.VerbList:
		return h.handleList(ctx)
	case protocol.VerbRemove:
		return h.handleRemove(ctx, cmd)
	default:
		// ParseCommand only produces the four verbs above.
		return protocol.Errorf("Unknown command: %s", cmd.Verb)
	}
}

// handleStore decodes the base64 payload and overwrite-writes it under the
// given name.
func (h *Handler) handleStore(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	if cmd.Filename == "" || cmd.Payload == "" {
		return protocol.Errorf("STORE command requires filename and content")
	}

	if !storage.ValidFilename(cmd.Filename) {
		return protocol.Errorf("Invalid filename")
	}

	data, err := base64.StdEncoding.DecodeString(cmd.Payload)
	if err != nil {
		return protocol.Errorf("invalid content encoding")
	}

	size, err := h.store.Write(ctx, cmd.Filename, data)
	if err != nil {
		logger.Error("Store failed for %s: %v", cmd.Filename, err)
		return protocol.Errorf("Store failed: %v", err)
	}

	h.metrics.RecordBytesTransferred("store", size)
	logger.Info("File stored: %s (%d bytes)", cmd.Filename, size)

	return protocol.OK("File %s stored successfully", cmd.Filename).WithFileSize(size)
}

// handleFetch reads the named file and returns it base64-encoded.
func (h *Handler) handleFetch(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	if cmd.Filename == "" {
		return protocol.Errorf("FETCH command requires filename")
	}

	if !storage.ValidFilename(cmd.Filename) {
		return protocol.Errorf("Invalid filename")
	}

	data, err := h.store.Read(ctx, cmd.Filename)
	if err != nil {
		if err == storage.ErrNotFound {
			return protocol.Errorf("File not found: %s", cmd.Filename)
		}
		logger.Error("Fetch failed for %s: %v", cmd.Filename, err)
		return protocol.Errorf("Fetch failed: %v", err)
	}

	size := int64(len(data))
	h.metrics.RecordBytesTransferred("fetch", size)
	logger.Info("File fetched: %s (%d bytes)", cmd.Filename, size)

	return protocol.OK("File %s retrieved successfully", cmd.Filename).
		WithFileSize(size).
		WithPayload(base64.StdEncoding.EncodeToString(data))
}

// handleList enumerates the storage root. Entry order is whatever the
// filesystem yields; clients must not rely on it.
func (h *Handler) handleList(ctx context.Context) *protocol.Response {
	entries, err := h.store.List(ctx)
	if err != nil {
		logger.Error("List failed: %v", err)
		return protocol.Errorf("List failed: %v", err)
	}

	infos := make([]protocol.FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, protocol.FileInfo{Name: e.Name, Size: e.Size})
	}

	return protocol.OK("File list retrieved successfully").WithEntries(infos)
}

// handleRemove deletes the named file.
func (h *Handler) handleRemove(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	if cmd.Filename == "" {
		return protocol.Errorf("REMOVE command requires filename")
	}

	if !storage.ValidFilename(cmd.Filename) {
		return protocol.Errorf("Invalid filename")
	}

	if err := h.store.Remove(ctx, cmd.Filename); err != nil {
		if err == storage.ErrNotFound {
			return protocol.Errorf("File not found: %s", cmd.Filename)
		}
		logger.Error("Remove failed for %s: %v", cmd.Filename, err)
		return protocol.Errorf("Remove failed: %v", err)
	}

	logger.Info("File removed: %s", cmd.Filename)

	return protocol.OK("File %s removed successfully", cmd.Filename)
}
