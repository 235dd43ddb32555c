package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHandler streams progress events to WebSocket clients. Each client
// gets its own publisher subscription; a slow client drops events rather
// than stalling the pipeline.
type EventHandler struct {
	pub *progress.Publisher
	log *zap.Logger
}

func NewEventHandler(pub *progress.Publisher, log *zap.Logger) *EventHandler {
	return &EventHandler{pub: pub, log: log}
}

// Stream handles GET /ws/events.
func (h *EventHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.pub.Subscribe(256)
	defer cancel()

	h.log.Info("event stream client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Drain client frames so close handshakes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
