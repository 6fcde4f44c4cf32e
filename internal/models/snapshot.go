// internal/models/snapshot.go
package models

import (
	"sort"
	"time"
)

// PlayerSnapshot is the lobby-visible view of a player.
type PlayerSnapshot struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Connected   bool   `json:"connected"`
	Score       int    `json:"score"`
	IsBot       bool   `json:"isBot,omitempty"`
}

// RoomSnapshot is the wire view of a room, broadcast on every lobby-visible
// change and served by the HTTP lookup endpoint.
type RoomSnapshot struct {
	RoomCode    string           `json:"roomCode"`
	Status      RoomStatus       `json:"status"`
	Locked      bool             `json:"locked"`
	MaxPlayers  int              `json:"maxPlayers"`
	HasHost     bool             `json:"hasHost"`
	Players     []PlayerSnapshot `json:"players"`
	CurrentGame *GameSessionInfo `json:"currentGame,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Snapshot builds the broadcastable view of the room. Players are ordered by
// display name so the view is stable across emissions.
func (r *Room) Snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerSnapshot{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Connected:   p.Connected,
			Score:       p.Score,
			IsBot:       p.IsBot,
		})
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].DisplayName != players[j].DisplayName {
			return players[i].DisplayName < players[j].DisplayName
		}
		return players[i].PlayerID < players[j].PlayerID
	})

	return RoomSnapshot{
		RoomCode:    r.Code,
		Status:      r.Status,
		Locked:      r.Locked,
		MaxPlayers:  r.MaxPlayers,
		HasHost:     r.HostConnectionID != nil,
		Players:     players,
		CurrentGame: r.CurrentGame,
		CreatedAt:   r.CreatedAt,
	}
}
