package protocol

import (
	"encoding/json"
	"fmt"
)

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// FileInfo is one entry in a LIST response.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Response is the result of one command, serialized as a single JSON
// object followed by the frame delimiter.
//
// Message fields are human-authored constants or validated filenames and
// payloads are base64, so the delimiter can never appear inside an encoded
// response.
type Response struct {
	Status   string     `json:"status"`
	Message  string     `json:"message"`
	FileSize *int64     `json:"file_size,omitempty"`
	Payload  string     `json:"payload,omitempty"`
	Entries  []FileInfo `json:"entries,omitempty"`
	Count    *int       `json:"count,omitempty"`
}

// OK builds a success response with the given message.
func OK(format string, v ...any) *Response {
	return &Response{
		Status:  StatusOK,
		Message: fmt.Sprintf(format, v...),
	}
}

// Errorf builds an error response with the given message.
func Errorf(format string, v ...any) *Response {
	return &Response{
		Status:  StatusError,
		Message: fmt.Sprintf(format, v...),
	}
}

// WithFileSize attaches the file_size field.
func (r *Response) WithFileSize(size int64) *Response {
	r.FileSize = &size
	return r
}

// WithPayload attaches the base64-encoded payload field.
func (r *Response) WithPayload(payload string) *Response {
	r.Payload = payload
	return r
}

// WithEntries attaches the entries and count fields.
func (r *Response) WithEntries(entries []FileInfo) *Response {
	count := len(entries)
	r.Entries = entries
	r.Count = &count
	return r
}

// EncodeResponse serializes a response to one wire frame, delimiter
// included.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	return append(data, Delimiter...), nil
}

// DecodeResponse parses a response frame (without delimiter). Used by tests
// and clients.
func DecodeResponse(frame []byte) (*Response, error) {
	resp := &Response{}
	if err := json.Unmarshal(frame, resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp, nil
}
