package channel

import (
	"encoding/json"
	"time"

	"task-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB for larger JSON messages
)

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from the server.
// Acts as the watchdog for the connection: its exit is what triggers the
// reconnect cycle.
// -----------------------------------------------------------------------------

func (c *Connection) readPump(conn *websocket.Conn, gen int) {
	defer c.lost(gen)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Logger.Info("WebSocket error: %v", err)
			}
			return
		}

		var msg models.MChannelMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			// Malformed push events are log-only, never a crash
			c.Logger.Warning("Malformed channel message: %v", err)
			continue
		}

		c.dispatch(msg.Event, msg.Data)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to the server. One writer per connection;
// exits when the send channel is replaced or the write fails.
// -----------------------------------------------------------------------------

func (c *Connection) writePump(conn *websocket.Conn, send <-chan models.MChannelMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteJSON(message); err != nil {
				c.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
