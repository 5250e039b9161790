package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pumpdash/dashboard/internal/middleware"
	"pumpdash/dashboard/internal/notification"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type streamMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// streamCommand lets the browser hold, resume or dismiss over the socket.
type streamCommand struct {
	Event string `json:"event"`
	ID    string `json:"id"`
}

func (h HandlerSet) upgrader() websocket.Upgrader {
	policy := middleware.OriginPolicyFor(h.cfg)

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.SameHost(origin, r.Host) || policy.Allowed(origin)
		},
	}
}

// StreamNotifications pushes the full notification list on every change.
func (h HandlerSet) StreamNotifications(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	feed, cancel := pc.Notifications.Subscribe()
	done := make(chan struct{})

	go h.writePump(conn, feed, done)
	h.readPump(conn, pc.Notifications)

	cancel()
	<-done
}

func (h HandlerSet) readPump(conn *websocket.Conn, notes *notification.Registry) {
	defer conn.Close()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd streamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("notification stream closed")
			}
			return
		}

		switch cmd.Event {
		case "hold":
			notes.Hold(cmd.ID)
		case "resume":
			notes.Resume(cmd.ID)
		case "remove":
			notes.Remove(cmd.ID)
		default:
			h.log.Warn().Str("event", cmd.Event).Msg("unknown stream command")
		}
	}
}

func (h HandlerSet) writePump(conn *websocket.Conn, feed <-chan []notification.Notification, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case list, ok := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(streamMessage{Event: "notifications", Data: list}); err != nil {
				h.log.Debug().Err(err).Msg("notification stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
