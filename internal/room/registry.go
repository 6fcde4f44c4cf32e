// internal/room/registry.go
package room

import (
	"sync"

	"github.com/falroman/partyquiz/internal/clock"
	"github.com/falroman/partyquiz/internal/models"
)

// Registry is the authoritative concurrent mapping from room code to Room.
// Key access is atomic, but any multi-step read-modify-write of a Room must
// hold the per-room mutex obtained via Lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
	locks map[string]*sync.Mutex
	clock clock.Clock
}

// NewRegistry returns an empty in-memory registry.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		rooms: make(map[string]*models.Room),
		locks: make(map[string]*sync.Mutex),
		clock: clk,
	}
}

// Create generates a unique code, inserts an empty lobby room and returns it.
// Safe against concurrent generation collisions: the insert happens under the
// registry lock and a lost race simply draws a new code.
func (s *Registry) Create() *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		code = GenerateCode()
		if _, exists := s.rooms[code]; !exists {
			break
		}
	}

	room := models.NewRoom(code, s.clock.Now())
	s.rooms[code] = room
	s.locks[code] = &sync.Mutex{}
	return room
}

// Get retrieves a room by code, case-insensitively. Unknown codes report
// absence rather than an error.
func (s *Registry) Get(code string) (*models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[NormalizeCode(code)]
	return r, ok
}

// Update stores the room in place. Callers must hold the room's lock.
func (s *Registry) Update(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = room
}

// Remove deletes a room. Idempotent.
func (s *Registry) Remove(code string) {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	delete(s.locks, code)
}

// All returns every room currently in the registry.
func (s *Registry) All() []*models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Lock returns the mutex serialising all operations on the given room. The
// mutex survives until the room is removed; locking the code of a missing
// room returns a throwaway mutex so callers can lock first and look up after.
func (s *Registry) Lock(code string) *sync.Mutex {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[code]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[code] = l
	return l
}
