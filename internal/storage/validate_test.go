package storage

import (
	"strings"
	"testing"
)

// TestValidFilename verifies the filename denylist.
func TestValidFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{"simple name", "report.txt", true},
		{"no extension", "README", true},
		{"dots allowed", "archive.tar.gz", true},
		{"spaces allowed", "my file.txt", true},
		{"unicode allowed", "café.txt", true},
		{"max length", strings.Repeat("a", 255), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 256), false},
		{"traversal", "../etc/passwd", false},
		{"bare dotdot", "..", false},
		{"forward slash", "dir/file.txt", false},
		{"backslash", "dir\\file.txt", false},
		{"colon", "c:file", false},
		{"asterisk", "*.txt", false},
		{"question mark", "what?.txt", false},
		{"double quote", "say\".txt", false},
		{"angle brackets", "<file>", false},
		{"pipe", "a|b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFilename(tt.filename); got != tt.want {
				t.Errorf("ValidFilename(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
