package httpclient

import (
	"bufio"
	"io"
	"strings"
)

// SSEFrame is one server-sent event: an optional event name and the
// joined data payload.
type SSEFrame struct {
	Event string
	Data  string
}

// SSEScanner reads server-sent event frames from a response body. It
// handles multi-line data fields, comment lines, and CRLF line endings.
// A frame is dispatched on the blank line that terminates it; a frame
// still pending at EOF is dispatched before io.EOF is returned.
type SSEScanner struct {
	reader  *bufio.Reader
	done    bool
	event   string
	data    []string
	pending bool
}

func NewSSEScanner(r io.Reader) *SSEScanner {
	return &SSEScanner{reader: bufio.NewReader(r)}
}

// Next returns the next complete frame, or io.EOF when the stream ends.
func (s *SSEScanner) Next() (SSEFrame, error) {
	if s.done {
		return SSEFrame{}, io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			// Flush a frame the upstream never terminated with a
			// blank line.
			if s.pending {
				return s.flush(), nil
			}
			if err == io.EOF {
				return SSEFrame{}, io.EOF
			}
			return SSEFrame{}, err
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if s.pending {
				return s.flush(), nil
			}
		case strings.HasPrefix(line, ":"):
			// Comment line, used by some providers as keepalive.
		case strings.HasPrefix(line, "event:"):
			s.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			s.pending = true
		case strings.HasPrefix(line, "data:"):
			s.data = append(s.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			s.pending = true
		}
	}
}

func (s *SSEScanner) flush() SSEFrame {
	frame := SSEFrame{
		Event: s.event,
		Data:  strings.Join(s.data, "\n"),
	}
	s.event = ""
	s.data = nil
	s.pending = false
	return frame
}
