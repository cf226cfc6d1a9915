package chi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/marcelsud/webhook-capture/fanout"
)

/* Realtime channel: a client connects to /ws, sends a join message naming
 * a webhook ID, and receives a new_payload event for every payload stored
 * on that endpoint while it stays connected. Joining another channel
 * replaces the previous subscription; there is no replay of missed events.
 */

// joinMessage is what clients send to pick a channel.
type joinMessage struct {
	Action    string `json:"action"`
	WebhookID string `json:"webhook_id"`
}

// eventMessage is what subscribers receive.
type eventMessage struct {
	Event string       `json:"event"`
	Data  fanout.Event `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The ingestion endpoint is public; the realtime view of it is too.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS handles GET /ws
func serveWS(hub *fanout.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		s := &wsSession{
			conn:   conn,
			hub:    hub,
			events: make(chan fanout.Event, 16),
			done:   make(chan struct{}),
		}
		s.run()
	})
}

type wsSession struct {
	conn   *websocket.Conn
	hub    *fanout.Hub
	events chan fanout.Event
	done   chan struct{}

	cancel func()
}

func (s *wsSession) run() {
	go s.writeLoop()
	s.readLoop()

	close(s.done)
	s.unsubscribe()
	s.conn.Close()
}

/* readLoop consumes join messages until the peer goes away.
 * Unknown actions are ignored rather than closing the connection
 */
func (s *wsSession) readLoop() {
	for {
		var msg joinMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Action == "join" && msg.WebhookID != "" {
			s.join(msg.WebhookID)
		}
	}
}

func (s *wsSession) join(webhookID string) {
	s.unsubscribe()

	ch, cancel := s.hub.Subscribe(webhookID)
	s.cancel = cancel
	go s.forward(ch)
}

// forward funnels one subscription into the session's single writer.
func (s *wsSession) forward(ch <-chan fanout.Event) {
	for ev := range ch {
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// writeLoop is the only goroutine writing to the connection.
func (s *wsSession) writeLoop() {
	for {
		select {
		case ev := <-s.events:
			msg := eventMessage{
				Event: "new_payload",
				Data:  ev,
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
