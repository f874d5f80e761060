// ABOUTME: In-memory fan-out bridge from the request-style transport to streaming sessions.
// ABOUTME: Every published envelope is offered to all current subscribers without blocking.

package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/workspace-gateway/internal/jsonrpc"
	"github.com/2389/workspace-gateway/internal/metrics"
)

// DefaultBufferSize is the channel buffer for each subscriber.
const DefaultBufferSize = 64

// Message is one envelope waiting to be streamed.
type Message struct {
	Envelope   *jsonrpc.Envelope
	EnqueuedAt time.Time
}

// Bridge provides in-memory pub/sub for response envelopes. Each subscriber
// owns a buffered channel; publishing never waits on a slow subscriber.
type Bridge struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Message
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

// New creates a bridge. A bufferSize of zero or less uses DefaultBufferSize.
// Pass nil logger for default.
func New(bufferSize int, logger *slog.Logger) *Bridge {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		subscribers: make(map[string]chan *Message),
		bufferSize:  bufferSize,
		logger:      logger.With("component", "bridge"),
	}
}

// Subscribe registers a subscriber and returns its channel and id. The
// subscription is removed and its channel closed when ctx is cancelled.
// After Close, Subscribe returns an already closed channel.
func (b *Bridge) Subscribe(ctx context.Context) (<-chan *Message, string) {
	subID := uuid.New().String()
	ch := make(chan *Message, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	count := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID, "subscribers", count)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish offers env to every subscriber and returns how many accepted it.
// Subscribers whose buffers are full miss this envelope. With no
// subscribers the envelope is discarded.
func (b *Bridge) Publish(env *jsonrpc.Envelope) int {
	msg := &Message{Envelope: env, EnqueuedAt: time.Now()}

	// Sends are non-blocking, so holding the read lock keeps Unsubscribe
	// from closing a channel mid-send without stalling anyone.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	delivered, dropped := 0, 0
	for subID, ch := range b.subscribers {
		select {
		case ch <- msg:
			delivered++
		default:
			dropped++
			b.logger.Debug("dropped envelope for slow subscriber", "sub_id", subID)
		}
	}

	metrics.RecordPublish(delivered, dropped)
	return delivered
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids
// are ignored.
func (b *Bridge) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Subscribers returns the number of live subscriptions.
func (b *Bridge) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts down the bridge and closes all subscriber channels. It is
// safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}

	b.logger.Debug("bridge closed")
}
