package server

import (
	"encoding/json"
	"net/http"
	"time"

	"task-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *SimServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clientsMutex.Lock()
			s.clients[client] = struct{}{}
			s.clientsMutex.Unlock()

		case client := <-s.unregister:
			s.clientsMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientsMutex.Unlock()

		case sample := <-s.publish:
			raw, err := json.Marshal(sample)
			if err != nil {
				s.Logger.Warning("Failed to marshal quote: %v", err)
				continue
			}
			message := models.MChannelMessage{
				Event: models.EventQuoteUpdate,
				Data:  raw,
			}

			// Fan out to every client in the task's room
			s.clientsMutex.Lock()
			s.lastTick = time.Now().Unix()
			for client := range s.clients {
				if !client.inRoom(sample.TaskID) {
					continue
				}
				select {
				case client.send <- message:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.clientsMutex.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// PublishQuote queues a quote for fan-out to the clients in the task's
// room. Safe to call from the feed goroutine.
func (s *SimServer) PublishQuote(sample models.MQuoteSample) {
	// Large buffer set in NewSimServer makes blocking rare
	s.publish <- sample
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *SimServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send:  make(chan models.MChannelMessage, 256),
		rooms: make(map[int64]struct{}),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *SimServer) HandleClientMessage(client *Client, message []byte) {
	var msg models.MChannelMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch msg.Event {
	case models.EventJoinTaskRoom, models.EventLeaveTaskRoom:
		// Fall through to the room handling below
	default:
		s.Logger.Debug("Ignoring unknown event %q", msg.Event)
		return
	}

	var req models.MRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.Logger.Info("Malformed room request: %v", err)
		return
	}

	if msg.Event == models.EventJoinTaskRoom {
		client.joinRoom(req.TaskID)
		s.Logger.Debug("Client joined room for task %d", req.TaskID)
	} else {
		client.leaveRoom(req.TaskID)
		s.Logger.Debug("Client left room for task %d", req.TaskID)
	}
}
