// internal/models/snapshot_test.go
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomSnapshotJSONRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hostConn := uuid.New()
	r := &Room{
		Code:             "AB2C",
		CreatedAt:        created,
		Status:           RoomStatusInGame,
		Locked:           true,
		MaxPlayers:       DefaultMaxPlayers,
		HostConnectionID: &hostConn,
		Players: map[string]*Player{
			"p1": {ID: "p1", DisplayName: "Alice", Connected: true, Score: 120},
			"p2": {ID: "p2", DisplayName: "Bob", Score: 90, IsBot: true},
		},
		CurrentGame: &GameSessionInfo{
			SessionID: uuid.New(),
			GameType:  "quiz",
			StartedAt: created.Add(5 * time.Minute),
		},
	}

	snap := r.Snapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded RoomSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, snap, decoded)
}

func TestRoomSnapshotOrdersPlayersByName(t *testing.T) {
	r := NewRoom("AB2C", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r.Players["p2"] = &Player{ID: "p2", DisplayName: "Bob"}
	r.Players["p1"] = &Player{ID: "p1", DisplayName: "Alice"}
	r.Players["p3"] = &Player{ID: "p3", DisplayName: "Alice"}

	snap := r.Snapshot()
	require.Len(t, snap.Players, 3)
	assert.Equal(t, "p1", snap.Players[0].PlayerID)
	assert.Equal(t, "p3", snap.Players[1].PlayerID, "equal names fall back to id order")
	assert.Equal(t, "p2", snap.Players[2].PlayerID)
}
