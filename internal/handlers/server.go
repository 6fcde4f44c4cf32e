// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/falroman/partyquiz/internal/lobby"
	"github.com/falroman/partyquiz/internal/quiz"
	"github.com/falroman/partyquiz/internal/room"
)

// writeTimeout bounds a single WebSocket send.
const writeTimeout = 3 * time.Second

// Server is the WebSocket hub: it tracks live connections and implements the
// broadcast functions the lobby manager and orchestrator are wired with.
//
// Broadcasts are invoked while a room's critical section is held, so all
// writes happen asynchronously; a slow client must never block game logic.
type Server struct {
	log   *logrus.Logger
	lobby *lobby.Manager
	orch  *quiz.Orchestrator
	conns *room.ConnectionIndex

	allowedOrigins []string

	mu      sync.Mutex
	clients map[uuid.UUID]*websocket.Conn
}

// NewServer builds the hub over the shared stores.
func NewServer(log *logrus.Logger, mgr *lobby.Manager, orch *quiz.Orchestrator, conns *room.ConnectionIndex, allowedOrigins []string) *Server {
	return &Server{
		log:            log,
		lobby:          mgr,
		orch:           orch,
		conns:          conns,
		allowedOrigins: allowedOrigins,
		clients:        make(map[uuid.UUID]*websocket.Conn),
	}
}

func (s *Server) register(connID uuid.UUID, c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[connID] = c
}

func (s *Server) unregister(connID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, connID)
}

func (s *Server) client(connID uuid.UUID) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[connID]
}

// BroadcastToRoom sends the payload to every connection bound to the room.
// The payload is marshalled once and written asynchronously per connection.
func (s *Server) BroadcastToRoom(code string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).WithField("room", code).Error("marshal broadcast failed")
		return
	}

	bindings := s.conns.ListForRoom(code)
	conns := make([]*websocket.Conn, 0, len(bindings))
	s.mu.Lock()
	for _, b := range bindings {
		if c, ok := s.clients[b.ConnID]; ok {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	go func() {
		for _, c := range conns {
			s.write(c, data)
		}
	}()
}

// CloseRoomConnections closes every listed connection with the room-gone
// close code. Invoked by the lobby manager after a room has been torn down.
func (s *Server) CloseRoomConnections(code string, connIDs []uuid.UUID) {
	for _, connID := range connIDs {
		c := s.client(connID)
		if c == nil {
			continue
		}
		s.unregister(connID)
		s.log.WithFields(logrus.Fields{"room": code, "conn": connID}).Debug("closing connection, room gone")
		go c.Close(RoomGoneError, "room closed")
	}
}

// SendToConn sends the payload to a single connection, asynchronously.
func (s *Server) SendToConn(connID uuid.UUID, payload interface{}) {
	c := s.client(connID)
	if c == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).WithField("conn", connID).Error("marshal send failed")
		return
	}
	go s.write(c, data)
}

// write performs one bounded send. Failed sends are logged only; the client's
// read loop notices a dead connection and triggers disconnect handling.
func (s *Server) write(c *websocket.Conn, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.WithError(err).Debug("websocket write failed")
	}
}
