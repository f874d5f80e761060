// ABOUTME: Output sinks for streaming sessions, including the Server-Sent Events writer.
// ABOUTME: A sink receives frames in order and reports the first write failure.

package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Event names written on the stream.
const (
	EventMessage   = "message"
	EventKeepalive = "keepalive"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Frame is one event on the stream. Data is a single line of JSON.
type Frame struct {
	Event string
	Data  []byte
}

// Sink is the exclusively owned output of one session.
type Sink interface {
	WriteFrame(Frame) error
}

// SSEWriter writes frames as Server-Sent Events and flushes after each one.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter wraps w. It fails if w does not implement http.Flusher.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteFrame writes one event in the form "event: <name>\ndata: <json>\n\n".
func (s *SSEWriter) WriteFrame(f Frame) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", f.Event, f.Data); err != nil {
		return fmt.Errorf("writing %s frame: %w", f.Event, err)
	}
	s.flusher.Flush()
	return nil
}

// Flush sends buffered headers without writing an event.
func (s *SSEWriter) Flush() {
	s.flusher.Flush()
}
