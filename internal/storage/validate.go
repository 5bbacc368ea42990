package storage

import "strings"

// maxFilenameLength bounds stored names to what common filesystems accept.
const maxFilenameLength = 255

// forbiddenSequences is a conservative denylist. It forbids traversal and
// nesting by construction ("..", separators) along with characters that are
// unsafe on at least one supported filesystem. It is not a canonical-path
// check: nothing that passes can escape the storage root.
var forbiddenSequences = []string{
	"..", "/", "\\", ":", "*", "?", "\"", "<", ">", "|",
}

// ValidFilename reports whether name is safe to use directly under the
// storage root. Pure function, no side effects.
func ValidFilename(name string) bool {
	if name == "" {
		return false
	}

	if len(name) > maxFilenameLength {
		return false
	}

	for _, seq := range forbiddenSequences {
		if strings.Contains(name, seq) {
			return false
		}
	}

	return true
}
