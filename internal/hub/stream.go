package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve upgrades the request and streams every message broadcast for runID
// to the client. backlog is written first, in order.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, runID string, backlog [][]byte) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade stream", "run_id", runID, "error", err)
		return err
	}

	conn := h.NewConnection(ws, runID)
	h.Register(conn)
	ws.SetReadLimit(maxMessageSize)

	go h.writePump(conn, backlog)
	go h.readPump(conn)
	return nil
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(conn *Connection) {
	defer func() {
		h.Unregister(conn)
		_ = conn.Conn.Close()
	}()

	_ = conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("stream read error", "conn_id", conn.ID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *Connection, backlog [][]byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Conn.Close()
	}()

	for _, message := range backlog {
		if err := conn.write(websocket.TextMessage, message); err != nil {
			return
		}
	}

	for {
		select {
		case message, ok := <-conn.Send:
			if !ok {
				_ = conn.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.write(websocket.TextMessage, message); err != nil {
				h.logger.Debug("stream write failed", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
