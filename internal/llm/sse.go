package llm

import (
	"bufio"
	"io"
	"strings"
)

const maxEventSize = 4 << 20

// eventScanner reads the data payloads of a Server-Sent Events stream.
type eventScanner struct {
	scanner *bufio.Scanner
	data    string
}

func newEventScanner(r io.Reader) *eventScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &eventScanner{scanner: s}
}

// Scan advances to the next event carrying data. Multi-line data fields are
// joined with newlines. Comments and other fields are skipped.
func (s *eventScanner) Scan() bool {
	var lines []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if len(lines) > 0 {
				s.data = strings.Join(lines, "\n")
				return true
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			lines = append(lines, strings.TrimPrefix(value, " "))
		}
	}
	if len(lines) > 0 {
		s.data = strings.Join(lines, "\n")
		return true
	}
	return false
}

// Data returns the payload of the last event.
func (s *eventScanner) Data() string { return s.data }

// Err returns the first read error, if any.
func (s *eventScanner) Err() error { return s.scanner.Err() }
