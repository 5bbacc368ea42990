package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCommand verifies frame decoding into commands.
func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Command
		wantErr string
	}{
		{
			name:  "store with payload",
			frame: "STORE report.txt aGVsbG8=",
			want:  Command{Verb: VerbStore, Filename: "report.txt", Payload: "aGVsbG8="},
		},
		{
			name:  "payload keeps spaces",
			frame: "STORE f.txt part one and two",
			want:  Command{Verb: VerbStore, Filename: "f.txt", Payload: "part one and two"},
		},
		{
			name:  "fetch",
			frame: "FETCH report.txt",
			want:  Command{Verb: VerbFetch, Filename: "report.txt"},
		},
		{
			name:  "list bare",
			frame: "LIST",
			want:  Command{Verb: VerbList},
		},
		{
			name:  "remove",
			frame: "REMOVE old.bin",
			want:  Command{Verb: VerbRemove, Filename: "old.bin"},
		},
		{
			name:  "verb is case-insensitive",
			frame: "fetch report.txt",
			want:  Command{Verb: VerbFetch, Filename: "report.txt"},
		},
		{
			name:  "surrounding whitespace trimmed",
			frame: "  LIST  ",
			want:  Command{Verb: VerbList},
		},
		{
			name:    "empty frame",
			frame:   "",
			wantErr: "Empty command",
		},
		{
			name:    "whitespace only",
			frame:   "   ",
			wantErr: "Empty command",
		},
		{
			name:    "unknown verb",
			frame:   "FOO bar",
			wantErr: "Unknown command: FOO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, decodeErr := ParseCommand(tt.frame)

			if tt.wantErr != "" {
				require.NotNil(t, decodeErr)
				assert.Equal(t, tt.wantErr, decodeErr.Message)
				return
			}

			require.Nil(t, decodeErr)
			assert.Equal(t, tt.want, *cmd)
		})
	}
}

func TestEncodeResponse_AppendsDelimiter(t *testing.T) {
	frame, err := EncodeResponse(OK("done"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(string(frame), Delimiter))

	// Exactly one delimiter, at the end.
	assert.Equal(t, 1, strings.Count(string(frame), Delimiter))
}

func TestEncodeResponse_Fields(t *testing.T) {
	resp := OK("File a stored successfully").WithFileSize(42)

	frame, err := EncodeResponse(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frame[:len(frame)-len(Delimiter)], &decoded))

	assert.Equal(t, "OK", decoded["status"])
	assert.Equal(t, "File a stored successfully", decoded["message"])
	assert.Equal(t, float64(42), decoded["file_size"])

	// Optional fields stay absent when unset.
	assert.NotContains(t, decoded, "payload")
	assert.NotContains(t, decoded, "entries")
}

func TestEncodeResponse_Entries(t *testing.T) {
	resp := OK("File list retrieved successfully").WithEntries([]FileInfo{
		{Name: "a.txt", Size: 3},
		{Name: "b.bin", Size: 0},
	})

	frame, err := EncodeResponse(resp)
	require.NoError(t, err)

	roundTrip, err := DecodeResponse(frame[:len(frame)-len(Delimiter)])
	require.NoError(t, err)

	assert.Equal(t, StatusOK, roundTrip.Status)
	require.NotNil(t, roundTrip.Count)
	assert.Equal(t, 2, *roundTrip.Count)
	assert.Equal(t, []FileInfo{{Name: "a.txt", Size: 3}, {Name: "b.bin", Size: 0}}, roundTrip.Entries)
}

func TestExtractFrame(t *testing.T) {
	tests := []struct {
		name      string
		buf       string
		wantFrame string
		wantRest  string
		wantOK    bool
	}{
		{
			name:      "single complete frame",
			buf:       "LIST\r\n\r\n",
			wantFrame: "LIST",
			wantRest:  "",
			wantOK:    true,
		},
		{
			name:      "two frames leaves second",
			buf:       "LIST\r\n\r\nFETCH a\r\n\r\n",
			wantFrame: "LIST",
			wantRest:  "FETCH a\r\n\r\n",
			wantOK:    true,
		},
		{
			name:     "incomplete frame",
			buf:      "LIS",
			wantRest: "LIS",
			wantOK:   false,
		},
		{
			name:     "partial delimiter",
			buf:      "LIST\r\n\r",
			wantRest: "LIST\r\n\r",
			wantOK:   false,
		},
		{
			name:      "empty frame",
			buf:       "\r\n\r\n",
			wantFrame: "",
			wantRest:  "",
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, rest, ok := ExtractFrame([]byte(tt.buf))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRest, string(rest))
			if tt.wantOK {
				assert.Equal(t, tt.wantFrame, string(frame))
			}
		})
	}
}

// TestExtractFrame_Pipelined drains a buffer the way the session loop does.
func TestExtractFrame_Pipelined(t *testing.T) {
	buf := []byte("STORE a aGk=\r\n\r\nLIST\r\n\r\nREMOVE a\r\n\r\n")

	var frames []string
	for {
		frame, rest, ok := ExtractFrame(buf)
		if !ok {
			break
		}
		frames = append(frames, string(frame))
		buf = rest
	}

	assert.Equal(t, []string{"STORE a aGk=", "LIST", "REMOVE a"}, frames)
	assert.Empty(t, buf)
}
