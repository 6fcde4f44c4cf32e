// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/falroman/partyquiz/internal/middleware"
	"github.com/falroman/partyquiz/internal/models"
	"github.com/falroman/partyquiz/internal/room"
)

// clientMessage is the inbound command envelope. Type selects the command;
// the remaining fields are read per command.
type clientMessage struct {
	Type string `json:"type"`

	Code        string `json:"code,omitempty"`
	PlayerID    string `json:"playerId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Locked      bool   `json:"locked,omitempty"`
	GameType    string `json:"gameType,omitempty"`
	Category    string `json:"category,omitempty"`
	OptionKey   string `json:"optionKey,omitempty"`
	VotedForID  string `json:"votedForId,omitempty"`
	TargetID    string `json:"targetId,omitempty"`
	Skill       int    `json:"skill,omitempty"`
}

// errorEvent is sent to the offending connection only, never broadcast.
type errorEvent struct {
	Type  string            `json:"type"`
	Error *models.GameError `json:"error"`
}

// WSHandler upgrades the connection, registers it with the hub and runs the
// read loop until the client goes away.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"quiz"},
			OriginPatterns: s.allowedOrigins,
		})
		if err != nil {
			s.log.WithError(err).Warn("websocket accept failed")
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal error")

		if c.Subprotocol() != "quiz" {
			c.Close(BadSubprotocolError, "client must use the 'quiz' subprotocol")
			return
		}

		connID := uuid.New()
		s.register(connID, c)
		middleware.LogWebSocketConnect(s.log, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := s.readMessages(ctx, connID, c)

		// Cleanup: the lobby manager keeps the player seated (disconnected)
		// until the janitor's grace expires.
		s.lobby.HandleDisconnect(connID)
		s.unregister(connID)
		middleware.LogWebSocketDisconnect(s.log, r.RemoteAddr, r.URL.Path, readErr)

		c.Close(websocket.StatusNormalClosure, "bye")
	}
}

// readMessages runs the per-connection read loop, dispatching each command.
func (s *Server) readMessages(ctx context.Context, connID uuid.UUID, c *websocket.Conn) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(connID, models.NewGameError(models.ErrInvalidState, "invalid JSON"))
			continue
		}
		s.dispatch(connID, msg)
	}
}

// dispatch routes one command. Player identity for in-game commands comes
// from the connection's binding, never from the message, so a client cannot
// act for another player.
func (s *Server) dispatch(connID uuid.UUID, msg clientMessage) {
	binding, bound := s.conns.Get(connID)

	// Room code defaults to the bound room.
	code := room.NormalizeCode(msg.Code)
	if code == "" && bound {
		code = binding.RoomCode
	}

	switch msg.Type {
	case "registerHost":
		if _, gameErr := s.lobby.RegisterHost(connID, code); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "joinRoom":
		if _, gameErr := s.lobby.JoinRoom(connID, code, msg.PlayerID, msg.DisplayName); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "leaveRoom":
		playerID := msg.PlayerID
		if bound && binding.Role == room.RolePlayer {
			playerID = binding.PlayerID
		}
		if gameErr := s.lobby.LeaveRoom(code, playerID); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "setRoomLocked":
		if gameErr := s.lobby.SetRoomLocked(code, connID, msg.Locked); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "startGame":
		if gameErr := s.lobby.StartGame(code, connID, msg.GameType); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "addBot":
		if _, gameErr := s.lobby.AddBot(code, connID, msg.Skill); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "selectCategory":
		playerID, gameErr := s.boundPlayer(binding, bound)
		if gameErr == nil {
			gameErr = s.orch.HandleSelectCategory(code, playerID, msg.Category)
		}
		if gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "submitAnswer":
		playerID, gameErr := s.boundPlayer(binding, bound)
		if gameErr == nil {
			gameErr = s.orch.HandleSubmitAnswer(code, playerID, msg.OptionKey)
		}
		if gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "submitRankingVote":
		playerID, gameErr := s.boundPlayer(binding, bound)
		if gameErr == nil {
			gameErr = s.orch.HandleSubmitRankingVote(code, playerID, msg.VotedForID)
		}
		if gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "useBooster":
		playerID, gameErr := s.boundPlayer(binding, bound)
		if gameErr == nil {
			gameErr = s.orch.HandleUseBooster(code, playerID, msg.TargetID)
		}
		if gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "nextQuestion":
		if gameErr := s.orch.HandleNextQuestion(code, connID); gameErr != nil {
			s.sendError(connID, gameErr)
		}

	case "ping":
		s.SendToConn(connID, map[string]string{"type": "pong"})

	default:
		s.sendError(connID, models.NewGameError(models.ErrInvalidState, "unknown command type: "+msg.Type))
	}
}

// boundPlayer resolves the player identity of a connection, rejecting
// connections that never joined as a player.
func (s *Server) boundPlayer(binding room.Binding, bound bool) (string, *models.GameError) {
	if !bound || binding.Role != room.RolePlayer {
		return "", models.NewGameError(models.ErrInvalidState, "connection has not joined as a player")
	}
	return binding.PlayerID, nil
}

func (s *Server) sendError(connID uuid.UUID, gameErr *models.GameError) {
	s.SendToConn(connID, errorEvent{Type: "Error", Error: gameErr})
}
