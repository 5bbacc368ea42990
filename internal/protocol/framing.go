package protocol

import "bytes"

// Delimiter terminates every request and response frame. It cannot appear
// inside a well-formed frame body: commands are a verb, a validated
// filename, and base64 text.
const Delimiter = "\r\n\r\n"

var delimiterBytes = []byte(Delimiter)

// ExtractFrame pops the first complete frame from buf.
//
// Returns the frame without its delimiter, the remaining buffer, and
// whether a complete frame was found. The session loop calls this
// repeatedly after each read so that several commands arriving in one
// chunk are answered in order.
func ExtractFrame(buf []byte) (frame []byte, rest []byte, ok bool) {
	idx := bytes.Index(buf, delimiterBytes)
	if idx < 0 {
		return nil, buf, false
	}

	return buf[:idx], buf[idx+len(delimiterBytes):], true
}
