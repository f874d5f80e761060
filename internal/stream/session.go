// ABOUTME: Streaming session identity and lifecycle states.
// ABOUTME: A session moves from Created to Streaming and ends in exactly one closed state.

package stream

import (
	"fmt"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a streaming session.
type State int

const (
	StateCreated State = iota
	StateStreaming
	StateClosedGraceful
	StateClosedTimeout
	StateClosedError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStreaming:
		return "streaming"
	case StateClosedGraceful:
		return "closed_graceful"
	case StateClosedTimeout:
		return "closed_timeout"
	case StateClosedError:
		return "closed_error"
	default:
		return "unknown"
	}
}

// Closed reports whether s is terminal.
func (s State) Closed() bool {
	return s >= StateClosedGraceful
}

// Session is a snapshot of one streaming connection.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	State     State     `json:"-"`
}

// idSource builds session ids from the creation time and a process-wide
// counter so two sessions created within one clock tick still differ.
type idSource struct {
	counter atomic.Uint64
}

func (s *idSource) next(now time.Time) string {
	return fmt.Sprintf("%d-%d", now.UnixNano(), s.counter.Add(1))
}
