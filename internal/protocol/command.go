package protocol

import (
	"fmt"
	"strings"
)

// Verb identifies the operation requested by a command frame.
type Verb string

const (
	VerbStore  Verb = "STORE"
	VerbFetch  Verb = "FETCH"
	VerbList   Verb = "LIST"
	VerbRemove Verb = "REMOVE"
)

// Command is one decoded request frame.
//
// A frame is split on the first two spaces only: verb, filename, and the
// remainder as payload. The payload is the base64 text exactly as sent,
// so it may itself contain spaces.
type Command struct {
	Verb     Verb
	Filename string
	Payload  string
}

// DecodeError describes a frame that could not be turned into a Command.
// It is reported to the client as an ERROR response; it never ends the
// session.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

// ParseCommand decodes a raw frame into a Command.
//
// The verb is case-insensitive. Unknown verbs and empty frames return a
// *DecodeError carrying the client-facing message.
func ParseCommand(frame string) (*Command, *DecodeError) {
	trimmed := strings.TrimSpace(frame)
	if trimmed == "" {
		return nil, &DecodeError{Message: "Empty command"}
	}

	parts := strings.SplitN(trimmed, " ", 3)
	verb := Verb(strings.ToUpper(parts[0]))

	switch verb {
	case VerbStore, VerbFetch, VerbList, VerbRemove:
	default:
		return nil, &DecodeError{Message: fmt.Sprintf("Unknown command: %s", parts[0])}
	}

	cmd := &Command{Verb: verb}
	if len(parts) > 1 {
		cmd.Filename = parts[1]
	}
	if len(parts) > 2 {
		cmd.Payload = parts[2]
	}

	return cmd, nil
}
