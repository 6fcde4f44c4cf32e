// internal/room/connections.go
package room

import (
	"sync"

	"github.com/google/uuid"
)

// Role distinguishes the shared-screen host from individual players.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Binding maps a transport connection to its room and role. A host binding
// carries no player id; a player binding always does. A connection binds to at
// most one room at a time.
type Binding struct {
	ConnID   uuid.UUID
	RoomCode string
	Role     Role
	PlayerID string
}

// ConnectionIndex is the concurrent mapping from connection id to Binding.
type ConnectionIndex struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]Binding
}

// NewConnectionIndex returns an empty index.
func NewConnectionIndex() *ConnectionIndex {
	return &ConnectionIndex{byConn: make(map[uuid.UUID]Binding)}
}

// BindHost binds the connection as the host of a room, overwriting any
// previous binding atomically.
func (ci *ConnectionIndex) BindHost(connID uuid.UUID, roomCode string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.byConn[connID] = Binding{ConnID: connID, RoomCode: NormalizeCode(roomCode), Role: RoleHost}
}

// BindPlayer binds the connection as a player of a room, overwriting any
// previous binding atomically.
func (ci *ConnectionIndex) BindPlayer(connID uuid.UUID, roomCode, playerID string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.byConn[connID] = Binding{ConnID: connID, RoomCode: NormalizeCode(roomCode), Role: RolePlayer, PlayerID: playerID}
}

// Unbind removes the binding for a connection. Idempotent.
func (ci *ConnectionIndex) Unbind(connID uuid.UUID) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	delete(ci.byConn, connID)
}

// Get returns the binding for a connection, if any.
func (ci *ConnectionIndex) Get(connID uuid.UUID) (Binding, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	b, ok := ci.byConn[connID]
	return b, ok
}

// ListForRoom returns every binding currently attached to the room (the
// broadcast group).
func (ci *ConnectionIndex) ListForRoom(roomCode string) []Binding {
	roomCode = NormalizeCode(roomCode)
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []Binding
	for _, b := range ci.byConn {
		if b.RoomCode == roomCode {
			out = append(out, b)
		}
	}
	return out
}
