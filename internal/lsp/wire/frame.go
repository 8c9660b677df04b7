package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

var headerSep = []byte("\r\n\r\n")

// frame wraps a JSON body in the base-protocol header.
func frame(body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return buf.Bytes()
}

// splitFrame extracts the first complete message body from buf. It returns
// the body, the number of bytes consumed, and whether a complete message was
// present. Malformed headers are an error; the caller drops the buffer and
// lets framing recover on later input.
func splitFrame(buf []byte) (body []byte, consumed int, ok bool, err error) {
	sep := bytes.Index(buf, headerSep)
	if sep < 0 {
		return nil, 0, false, nil
	}

	length := -1
	for _, line := range strings.Split(string(buf[:sep]), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, 0, false, fmt.Errorf("malformed header line %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, convErr := strconv.Atoi(strings.TrimSpace(value))
			if convErr != nil {
				return nil, 0, false, fmt.Errorf("bad Content-Length %q", value)
			}
			length = n
		}
	}
	if length < 0 {
		return nil, 0, false, fmt.Errorf("missing Content-Length header")
	}

	start := sep + len(headerSep)
	if len(buf) < start+length {
		return nil, 0, false, nil
	}
	return buf[start : start+length], start + length, true, nil
}
