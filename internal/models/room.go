// internal/models/room.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoomStatus tracks the lifecycle of a room.
type RoomStatus string

const (
	RoomStatusLobby    RoomStatus = "lobby"
	RoomStatusInGame   RoomStatus = "in_game"
	RoomStatusFinished RoomStatus = "finished"
)

// DefaultMaxPlayers is the player cap applied to freshly created rooms.
const DefaultMaxPlayers = 8

// Room holds the authoritative in-memory record for a single game session
// container. All mutation happens under the per-room lock owned by the
// registry; the registry map itself only guards key access.
type Room struct {
	Code       string
	CreatedAt  time.Time
	Status     RoomStatus
	Locked     bool
	MaxPlayers int

	// HostConnectionID is nil while no host screen is attached.
	// HostDisconnectedAt records when the last known host connection dropped;
	// the janitor uses it to collect abandoned rooms.
	HostConnectionID   *uuid.UUID
	HostDisconnectedAt *time.Time

	Players map[string]*Player

	// CurrentGame is set once a game has been started in this room.
	CurrentGame *GameSessionInfo
}

// NewRoom builds an empty lobby room.
func NewRoom(code string, now time.Time) *Room {
	return &Room{
		Code:       code,
		CreatedAt:  now,
		Status:     RoomStatusLobby,
		MaxPlayers: DefaultMaxPlayers,
		Players:    make(map[string]*Player),
	}
}

// Player is an individual-device participant, identified by a client-provided
// stable id that is opaque to the server and unique within the room.
type Player struct {
	ID          string
	DisplayName string

	// ConnectionID is set iff Connected is true and that connection is bound
	// to this player in the connection index.
	ConnectionID *uuid.UUID
	Connected    bool
	LastSeen     time.Time

	Score int

	IsBot    bool
	BotSkill int // 0..100, only meaningful when IsBot
}

// GameSessionInfo describes the game currently or last attached to a room.
type GameSessionInfo struct {
	SessionID uuid.UUID `json:"sessionId"`
	GameType  string    `json:"gameType"`
	StartedAt time.Time `json:"startedAt"`
}

// HasNameTaken reports whether another player (any id except exceptID) already
// uses the display name, compared case-insensitively.
func (r *Room) HasNameTaken(name, exceptID string) bool {
	folded := strings.ToLower(strings.TrimSpace(name))
	for id, p := range r.Players {
		if id == exceptID {
			continue
		}
		if strings.ToLower(p.DisplayName) == folded {
			return true
		}
	}
	return false
}

// IsHostConnection reports whether the given connection currently hosts the room.
func (r *Room) IsHostConnection(connID uuid.UUID) bool {
	return r.HostConnectionID != nil && *r.HostConnectionID == connID
}

// ConnectedPlayerIDs returns the ids of all players currently marked connected.
func (r *Room) ConnectedPlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id, p := range r.Players {
		if p.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
