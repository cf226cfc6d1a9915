package fanout_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-capture/fanout"
)

func receive(t *testing.T, ch <-chan fanout.Event) fanout.Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed before an event arrived")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return fanout.Event{}
	}
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub := fanout.NewHub()

	first, cancelFirst := hub.Subscribe("hook-1")
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe("hook-1")
	defer cancelSecond()

	ev := fanout.Event{PayloadID: 42, Timestamp: "2026-08-30T12:00:00Z", Payload: `{"a": 1}`}
	hub.Publish("hook-1", ev)

	assert.Equal(t, ev, receive(t, first))
	assert.Equal(t, ev, receive(t, second))
}

func TestChannelsAreIsolated(t *testing.T) {
	hub := fanout.NewHub()

	other, cancel := hub.Subscribe("hook-2")
	defer cancel()

	hub.Publish("hook-1", fanout.Event{PayloadID: 1})

	select {
	case ev := <-other:
		t.Fatalf("event leaked across channels: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := fanout.NewHub()

	ch, cancel := hub.Subscribe("hook-1")
	require.Equal(t, 1, hub.Subscribers("hook-1"))

	cancel()
	assert.Equal(t, 0, hub.Subscribers("hook-1"))

	// The stream is closed, and publishing afterwards must not panic.
	_, ok := <-ch
	assert.False(t, ok)
	hub.Publish("hook-1", fanout.Event{PayloadID: 1})

	// Idempotent.
	cancel()
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := fanout.NewHub()

	done := make(chan struct{})
	go func() {
		hub.Publish("hook-1", fanout.Event{PayloadID: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := fanout.NewHub()

	slow, cancelSlow := hub.Subscribe("hook-1")
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe("hook-1")
	defer cancelFast()

	// Overflow the slow subscriber's buffer without draining it.
	const published = 50
	for i := 0; i < published; i++ {
		hub.Publish("hook-1", fanout.Event{PayloadID: int64(i)})
		receive(t, fast)
	}

	// The slow subscriber kept the oldest events and lost the rest.
	drained := 0
	for {
		select {
		case <-slow:
			drained++
			continue
		default:
		}
		break
	}
	assert.Less(t, drained, published)
	assert.Greater(t, drained, 0)
}
