// ABOUTME: Streaming session manager that relays bridge traffic to long-lived subscribers.
// ABOUTME: Each session waits with a bounded timeout, sends keep-alives, and ends before a hard deadline.

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/2389/workspace-gateway/internal/bridge"
	"github.com/2389/workspace-gateway/internal/jsonrpc"
	"github.com/2389/workspace-gateway/internal/metrics"
)

// ErrNoBridge is returned by Serve when the manager was built without a bridge.
var ErrNoBridge = errors.New("stream manager has no bridge")

// Defaults for Config zero values.
const (
	DefaultKeepaliveInterval = 3 * time.Second
	DefaultMaxDuration       = 8 * time.Second
)

// Config holds configuration for the session manager.
type Config struct {
	Bridge *bridge.Bridge

	// KeepaliveInterval bounds each wait on the bridge. A keep-alive frame
	// is written whenever a wait ends without traffic.
	KeepaliveInterval time.Duration

	// MaxDuration is the hard ceiling on a session's lifetime. It should
	// sit safely below any execution limit imposed by the host.
	MaxDuration time.Duration

	Logger *slog.Logger
}

// Result summarizes a finished session.
type Result struct {
	Session    Session
	State      State
	Messages   int
	Keepalives int
}

type keepalive struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
}

// Manager owns the set of active streaming sessions.
type Manager struct {
	bridge            *bridge.Bridge
	keepaliveInterval time.Duration
	maxDuration       time.Duration
	logger            *slog.Logger

	ids      idSource
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager reading from cfg.Bridge.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keepaliveInterval := cfg.KeepaliveInterval
	if keepaliveInterval <= 0 {
		keepaliveInterval = DefaultKeepaliveInterval
	}
	maxDuration := cfg.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Manager{
		bridge:            cfg.Bridge,
		keepaliveInterval: keepaliveInterval,
		maxDuration:       maxDuration,
		logger:            logger.With("component", "stream"),
		sessions:          make(map[string]*Session),
	}
}

// Active returns the number of sessions currently registered.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions returns a snapshot of the active sessions, oldest first.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	out := make([]Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, *sess)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Serve runs a new session writing to sink until it closes. The returned
// error is the sink failure that ended the session, if any.
func (m *Manager) Serve(ctx context.Context, sink Sink) (*Result, error) {
	return m.run(ctx, m.open(), sink, nil)
}

// ServeHTTP upgrades a GET request to an event stream. Headers, including
// X-Session-Id, are flushed before the first event; no greeting is sent.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	sink, err := NewSSEWriter(w)
	if err != nil {
		m.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sess := m.open()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Session-Id", sess.ID)

	// Headers go out only once the session is subscribed, so a client that
	// posts as soon as it sees them cannot miss its own response.
	ready := func() {
		w.WriteHeader(http.StatusOK)
		sink.Flush()
	}

	result, err := m.run(r.Context(), sess, sink, ready)
	if errors.Is(err, ErrNoBridge) {
		m.logger.Error("stream requested without a bridge", "session_id", sess.ID)
		http.Error(w, "streaming unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		m.logger.Debug("stream ended by write failure", "session_id", sess.ID, "error", err)
		return
	}
	m.logger.Debug("stream ended",
		"session_id", sess.ID,
		"state", result.State.String(),
		"messages", result.Messages,
	)
}

// open registers a new session in the Created state.
func (m *Manager) open() *Session {
	now := time.Now()
	sess := &Session{
		ID:        m.ids.next(now),
		CreatedAt: now,
		State:     StateCreated,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	active := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionOpened()
	m.logger.Info("stream session opened", "session_id", sess.ID, "active_sessions", active)
	return sess
}

func (m *Manager) setState(sess *Session, state State) {
	m.mu.Lock()
	sess.State = state
	m.mu.Unlock()
}

// close moves sess to its terminal state and releases its slot.
func (m *Manager) close(sess *Session, state State) Session {
	m.mu.Lock()
	sess.State = state
	snapshot := *sess
	delete(m.sessions, sess.ID)
	active := len(m.sessions)
	m.mu.Unlock()

	metrics.SessionClosed(state.String())
	m.logger.Info("stream session closed",
		"session_id", sess.ID,
		"state", state.String(),
		"duration", time.Since(sess.CreatedAt).String(),
		"active_sessions", active,
	)
	return snapshot
}

// run is the session loop. Every exit path goes through finish, and the
// sink is never touched after finish. ready, when set, is called once the
// bridge subscription exists and before anything is written to sink.
func (m *Manager) run(ctx context.Context, sess *Session, sink Sink, ready func()) (*Result, error) {
	result := &Result{}
	finish := func(state State, err error) (*Result, error) {
		result.Session = m.close(sess, state)
		result.State = state
		return result, err
	}

	if m.bridge == nil {
		return finish(StateClosedError, ErrNoBridge)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	msgs, subID := m.bridge.Subscribe(subCtx)
	defer m.bridge.Unsubscribe(subID)

	m.setState(sess, StateStreaming)
	if ready != nil {
		ready()
	}
	deadline := sess.CreatedAt.Add(m.maxDuration)

	timer := time.NewTimer(m.keepaliveInterval)
	defer timer.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err := m.writeKeepalive(sink, sess); err != nil {
				return finish(StateClosedError, err)
			}
			result.Keepalives++
			return finish(StateClosedTimeout, nil)
		}
		timer.Reset(min(m.keepaliveInterval, remaining))

		select {
		case <-ctx.Done():
			return finish(StateClosedGraceful, nil)

		case msg, ok := <-msgs:
			if !ok {
				return finish(StateClosedGraceful, nil)
			}
			if err := m.writeMessage(sink, msg); err != nil {
				return finish(StateClosedError, err)
			}
			result.Messages++

		case <-timer.C:
			if time.Until(deadline) <= 0 {
				// The final keep-alive is written at the top of the loop.
				continue
			}
			if err := m.writeKeepalive(sink, sess); err != nil {
				return finish(StateClosedError, err)
			}
			result.Keepalives++
		}
	}
}

func (m *Manager) writeMessage(sink Sink, msg *bridge.Message) error {
	data, err := jsonrpc.Encode(msg.Envelope)
	if err != nil {
		m.logger.Error("failed to encode bridged envelope", "error", err)
		return nil
	}
	if err := sink.WriteFrame(Frame{Event: EventMessage, Data: data}); err != nil {
		return err
	}
	metrics.RecordFrame(EventMessage)
	return nil
}

func (m *Manager) writeKeepalive(sink Sink, sess *Session) error {
	data, _ := json.Marshal(keepalive{
		Type:      EventKeepalive,
		SessionID: sess.ID,
		Timestamp: time.Now().Unix(),
	})
	if err := sink.WriteFrame(Frame{Event: EventKeepalive, Data: data}); err != nil {
		return err
	}
	metrics.RecordFrame(EventKeepalive)
	return nil
}
