package fanout

import "sync"

/* Hub is an in-process, channel-based fanout: each endpoint ID names a
 * channel, and every event published to a channel is pushed to the
 * subscribers currently on it.
 *
 * Delivery is best-effort and at-most-once per subscriber: no acks, no
 * retries, no replay for subscribers that join later. A subscriber that
 * is not draining its buffer loses events; it never blocks the publisher
 * or other subscribers.
 */

// Event is what subscribers receive when a payload lands on their channel.
type Event struct {
	PayloadID int64  `json:"payload_id"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// subscriberBuffer is the per-subscriber event backlog before drops start.
const subscriberBuffer = 16

type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[chan Event]struct{}),
	}
}

/* Subscribe joins a channel and returns the event stream plus a cancel
 * function. Cancel is idempotent and closes the stream; callers must stop
 * ranging over the stream once they cancel
 */
func (h *Hub) Subscribe(channel string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.channels[channel] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.channels[channel]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.channels, channel)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers an event to every current subscriber of the channel.
// Subscribers with a full buffer are skipped.
func (h *Hub) Publish(channel string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.channels[channel] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
