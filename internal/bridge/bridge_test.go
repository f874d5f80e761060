// ABOUTME: Tests for the fan-out bridge.
// ABOUTME: Covers delivery to every subscriber, slow consumers, cleanup, and shutdown.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/workspace-gateway/internal/jsonrpc"
)

func makeEnvelope(id int) *jsonrpc.Envelope {
	return &jsonrpc.Envelope{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(fmt.Sprint(id)),
		Result:  json.RawMessage(`{}`),
	}
}

func receive(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBridge_EverySubscriberReceivesEachEnvelope(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())
	ch3, _ := b.Subscribe(t.Context())

	before := time.Now()
	delivered := b.Publish(makeEnvelope(1))
	assert.Equal(t, 3, delivered)

	for i, ch := range []<-chan *Message{ch1, ch2, ch3} {
		msg := receive(t, ch)
		assert.JSONEq(t, `1`, string(msg.Envelope.ID), "subscriber %d got wrong envelope", i)
		assert.False(t, msg.EnqueuedAt.Before(before))
	}
}

func TestBridge_PreservesPublishOrder(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())
	for i := range 10 {
		b.Publish(makeEnvelope(i))
	}
	for i := range 10 {
		assert.JSONEq(t, fmt.Sprint(i), string(receive(t, ch).Envelope.ID))
	}
}

func TestBridge_PublishWithoutSubscribersIsDiscarded(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	assert.Equal(t, 0, b.Publish(makeEnvelope(1)))

	// A late subscriber does not see earlier envelopes.
	ch, _ := b.Subscribe(t.Context())
	select {
	case <-ch:
		t.Fatal("late subscriber should not receive earlier envelopes")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridge_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New(4, nil)
	defer b.Close()

	_, _ = b.Subscribe(t.Context())
	fast, _ := b.Subscribe(t.Context())

	done := make(chan struct{})
	received := 0
	go func() {
		defer close(done)
		for range fast {
			received++
			if received == 20 {
				return
			}
		}
	}()

	for i := range 20 {
		b.Publish(makeEnvelope(i))
		time.Sleep(time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fast subscriber starved")
	}
	assert.Equal(t, 20, received)
}

func TestBridge_FullBufferDropsForThatSubscriber(t *testing.T) {
	b := New(2, nil)
	defer b.Close()

	_, _ = b.Subscribe(t.Context())

	assert.Equal(t, 1, b.Publish(makeEnvelope(1)))
	assert.Equal(t, 1, b.Publish(makeEnvelope(2)))
	assert.Equal(t, 0, b.Publish(makeEnvelope(3)))
}

func TestBridge_ContextCancellationCleansUp(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	assert.Equal(t, 1, b.Subscribers())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBridge_ManualUnsubscribe(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context())
	b.Unsubscribe(subID)
	b.Unsubscribe(subID)
	b.Unsubscribe("never-existed")

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Publish(makeEnvelope(1)))
}

func TestBridge_CloseClosesAllSubscriptions(t *testing.T) {
	b := New(0, nil)

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Close()
	b.Close()

	for i, ch := range []<-chan *Message{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok, "channel %d should be closed after Close()", i)
	}

	late, _ := b.Subscribe(t.Context())
	_, ok := <-late
	assert.False(t, ok, "subscribe after Close should return a closed channel")
	assert.Equal(t, 0, b.Publish(makeEnvelope(1)))
}

func TestBridge_ConcurrentPublishSubscribe(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			ch, _ := b.Subscribe(ctx)
			for range 5 {
				select {
				case <-ch:
				case <-time.After(200 * time.Millisecond):
					return
				}
			}
		})
	}
	for range 10 {
		wg.Go(func() {
			for i := range 10 {
				b.Publish(makeEnvelope(i))
			}
		})
	}
	wg.Wait()
}

func TestBridge_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := New(0, nil)
	defer b.Close()

	_, id1 := b.Subscribe(t.Context())
	_, id2 := b.Subscribe(t.Context())
	require.NotEqual(t, id1, id2)
}
