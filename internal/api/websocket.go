package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autotrader/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope wraps a bus payload with its topic for the wire.
type wsEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// websocket streams every engine event to the client until it disconnects.
// Slow clients lose events rather than stalling the bus.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"event bus not ready"}`))
		return
	}

	out := make(chan wsEnvelope, 256)
	done := make(chan struct{})

	for _, topic := range events.Topics() {
		stream, unsub := s.Bus.Subscribe(topic, 64)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for {
				select {
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case out <- wsEnvelope{Event: string(topic), Payload: msg}:
					default:
					}
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	// The read loop only exists to notice the client going away.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env := <-out:
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
