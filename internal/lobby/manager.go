// internal/lobby/manager.go
//
// The lobby manager owns every room mutation outside a running quiz: host
// registration, joins and reconnects, voluntary leaves, disconnects, the lock
// flag and the game-start handoff. Every visible mutation broadcasts
// LobbyUpdated to the room group.
package lobby

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/falroman/partyquiz/internal/clock"
	"github.com/falroman/partyquiz/internal/models"
	"github.com/falroman/partyquiz/internal/room"
)

// MaxNameLength caps trimmed display names.
const MaxNameLength = 20

// Outbound event types.
const (
	EventLobbyUpdated = "LobbyUpdated"
	EventGameStarted  = "GameStarted"
)

// Event is the outbound lobby message envelope.
type Event struct {
	Type string                  `json:"type"`
	Room *models.RoomSnapshot    `json:"room,omitempty"`
	Game *models.GameSessionInfo `json:"game,omitempty"`
}

// Manager coordinates lobby operations over the shared registry and
// connection index. All per-room work runs under the registry's room lock.
type Manager struct {
	log      *logrus.Logger
	registry *room.Registry
	conns    *room.ConnectionIndex
	clock    clock.Clock

	// BroadcastFn sends an event to every connection of the room group.
	BroadcastFn func(roomCode string, ev Event)
	// OnStartGame hands a freshly started room to the orchestrator. It is
	// invoked after the room lock has been released, so the orchestrator can
	// take the lock itself.
	OnStartGame func(roomCode string)
	// OnResync pushes the current quiz state to one reconnected viewer. An
	// empty playerID means the host baseline view.
	OnResync func(roomCode string, connID uuid.UUID, playerID string)
	// OnRoomRemoved is invoked after a room has been torn down, with the
	// connections that were still attached to it. Runs outside the room lock.
	OnRoomRemoved func(roomCode string, connIDs []uuid.UUID)
}

// NewManager wires a manager over the shared room stores.
func NewManager(log *logrus.Logger, registry *room.Registry, conns *room.ConnectionIndex, clk clock.Clock) *Manager {
	return &Manager{log: log, registry: registry, conns: conns, clock: clk}
}

// CreateRoom makes a fresh lobby room and returns its snapshot.
func (m *Manager) CreateRoom() models.RoomSnapshot {
	r := m.registry.Create()
	m.log.WithField("room", r.Code).Info("room created")
	return r.Snapshot()
}

// GetRoom returns a snapshot of the room, if it exists.
func (m *Manager) GetRoom(code string) (models.RoomSnapshot, bool) {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return models.RoomSnapshot{}, false
	}
	return r.Snapshot(), true
}

// RegisterHost attaches a connection as the room's shared screen. A host
// reconnect clears the recorded disconnect instant; the last registration
// wins. A connection already hosting a different room is rejected.
func (m *Manager) RegisterHost(connID uuid.UUID, code string) (*models.RoomSnapshot, *models.GameError) {
	code = room.NormalizeCode(code)
	snap, resync, gameErr := m.registerHostLocked(connID, code)
	if gameErr != nil {
		return nil, gameErr
	}
	// Resync after the room lock is released; the orchestrator takes it
	// itself.
	if resync && m.OnResync != nil {
		m.OnResync(code, connID, "")
	}
	return snap, nil
}

func (m *Manager) registerHostLocked(connID uuid.UUID, code string) (*models.RoomSnapshot, bool, *models.GameError) {
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return nil, false, models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if b, bound := m.conns.Get(connID); bound && b.Role == room.RoleHost && b.RoomCode != code {
		return nil, false, models.NewGameError(models.ErrAlreadyHost, "connection already hosts another room")
	}

	hostConn := connID
	r.HostConnectionID = &hostConn
	r.HostDisconnectedAt = nil
	m.registry.Update(r)
	m.conns.BindHost(connID, code)

	m.log.WithFields(logrus.Fields{"room": code, "conn": connID}).Info("host registered")
	m.broadcastLobby(r)
	snap := r.Snapshot()
	return &snap, r.Status == models.RoomStatusInGame, nil
}

// JoinRoom adds a player, or reconnects one carrying a known player id. A
// reconnect ignores the lock flag and the player cap, may update the display
// name, and triggers a quiz-state resync when a game is running.
func (m *Manager) JoinRoom(connID uuid.UUID, code, playerID, displayName string) (*models.RoomSnapshot, *models.GameError) {
	code = room.NormalizeCode(code)
	snap, resync, gameErr := m.joinRoomLocked(connID, code, playerID, displayName)
	if gameErr != nil {
		return nil, gameErr
	}
	if resync && m.OnResync != nil {
		m.OnResync(code, connID, playerID)
	}
	return snap, nil
}

func (m *Manager) joinRoomLocked(connID uuid.UUID, code, playerID, displayName string) (*models.RoomSnapshot, bool, *models.GameError) {
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return nil, false, models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, false, models.NewGameError(models.ErrInvalidState, "playerId must not be empty")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, false, models.NewGameError(models.ErrNameInvalid, "display name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, false, models.NewGameError(models.ErrNameInvalid, fmt.Sprintf("display name exceeds %d characters", MaxNameLength))
	}
	if r.HasNameTaken(name, playerID) {
		return nil, false, models.NewGameError(models.ErrNameTaken, "display name is already in use")
	}

	now := m.clock.Now()
	playerConn := connID

	if p, present := r.Players[playerID]; present {
		// Reconnect path.
		p.DisplayName = name
		p.ConnectionID = &playerConn
		p.Connected = true
		p.LastSeen = now
		m.registry.Update(r)
		m.conns.BindPlayer(connID, code, playerID)

		m.log.WithFields(logrus.Fields{"room": code, "player": playerID}).Info("player reconnected")
		m.broadcastLobby(r)
		snap := r.Snapshot()
		return &snap, r.Status == models.RoomStatusInGame, nil
	}

	if r.Locked {
		return nil, false, models.NewGameError(models.ErrRoomLocked, "room is locked")
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, false, models.NewGameError(models.ErrRoomFull, "room is full")
	}

	r.Players[playerID] = &models.Player{
		ID:           playerID,
		DisplayName:  name,
		ConnectionID: &playerConn,
		Connected:    true,
		LastSeen:     now,
	}
	m.registry.Update(r)
	m.conns.BindPlayer(connID, code, playerID)

	m.log.WithFields(logrus.Fields{"room": code, "player": playerID, "name": name}).Info("player joined")
	m.broadcastLobby(r)
	snap := r.Snapshot()
	return &snap, false, nil
}

// LeaveRoom removes a player who quit on purpose. Unknown players are a no-op.
func (m *Manager) LeaveRoom(code, playerID string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	p, present := r.Players[playerID]
	if !present {
		return nil
	}
	if p.ConnectionID != nil {
		m.conns.Unbind(*p.ConnectionID)
	}
	delete(r.Players, playerID)
	m.registry.Update(r)

	m.log.WithFields(logrus.Fields{"room": code, "player": playerID}).Info("player left")
	m.broadcastLobby(r)
	return nil
}

// HandleDisconnect reacts to a transport-level connection loss. Players stay
// in the room, marked disconnected, until the janitor's grace expires; a
// host loss only records the instant the room became hostless.
func (m *Manager) HandleDisconnect(connID uuid.UUID) {
	b, bound := m.conns.Get(connID)
	if !bound {
		return
	}
	m.conns.Unbind(connID)

	lk := m.registry.Lock(b.RoomCode)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(b.RoomCode)
	if !ok {
		return
	}
	now := m.clock.Now()

	switch b.Role {
	case room.RoleHost:
		if !r.IsHostConnection(connID) {
			return
		}
		r.HostConnectionID = nil
		r.HostDisconnectedAt = &now
		m.registry.Update(r)
		m.log.WithField("room", r.Code).Info("host disconnected")
		m.broadcastLobby(r)

	case room.RolePlayer:
		p, present := r.Players[b.PlayerID]
		if !present || p.ConnectionID == nil || *p.ConnectionID != connID {
			return
		}
		p.Connected = false
		p.ConnectionID = nil
		p.LastSeen = now
		m.registry.Update(r)
		m.log.WithFields(logrus.Fields{"room": r.Code, "player": b.PlayerID}).Info("player disconnected")
		m.broadcastLobby(r)
	}
}

// SetRoomLocked flips the lock flag. Host only.
func (m *Manager) SetRoomLocked(code string, connID uuid.UUID, locked bool) *models.GameError {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if !r.IsHostConnection(connID) {
		return models.NewGameError(models.ErrNotHost, "only the host can lock the room")
	}
	r.Locked = locked
	m.registry.Update(r)
	m.broadcastLobby(r)
	return nil
}

// StartGame flips the room into a running game and hands off to the
// orchestrator. The handoff hook runs after the room lock is released.
func (m *Manager) StartGame(code string, connID uuid.UUID, gameType string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	gameErr := m.startGameLocked(code, connID, gameType)
	lk.Unlock()
	if gameErr != nil {
		return gameErr
	}
	if m.OnStartGame != nil {
		m.OnStartGame(code)
	}
	return nil
}

// startGameLocked runs under the room lock held by StartGame.
func (m *Manager) startGameLocked(code string, connID uuid.UUID, gameType string) *models.GameError {
	r, ok := m.registry.Get(code)
	if !ok {
		return models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if !r.IsHostConnection(connID) {
		return models.NewGameError(models.ErrNotHost, "only the host can start the game")
	}
	switch r.Status {
	case models.RoomStatusInGame:
		return models.NewGameError(models.ErrRoundAlreadyStarted, "a game is already running")
	case models.RoomStatusFinished:
		return models.NewGameError(models.ErrInvalidState, "this room's game has finished")
	}
	if len(r.Players) < 2 {
		return models.NewGameError(models.ErrNotEnoughPlayers, "at least two players are required")
	}

	gameType, gameErr := parseGameType(gameType)
	if gameErr != nil {
		return gameErr
	}
	r.Status = models.RoomStatusInGame
	r.Locked = true
	r.CurrentGame = &models.GameSessionInfo{
		SessionID: uuid.New(),
		GameType:  gameType,
		StartedAt: m.clock.Now(),
	}
	m.registry.Update(r)

	m.log.WithFields(logrus.Fields{"room": code, "gameType": gameType, "players": len(r.Players)}).Info("game starting")
	m.broadcastLobby(r)
	if m.BroadcastFn != nil {
		m.BroadcastFn(r.Code, Event{Type: EventGameStarted, Game: r.CurrentGame})
	}
	return nil
}

// parseGameType canonicalises a requested game type. The only game this
// server runs is the quiz; an empty request defaults to it, anything else is
// rejected.
func parseGameType(raw string) (string, *models.GameError) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quiz":
		return "quiz", nil
	default:
		return "", models.NewGameError(models.ErrInvalidState, fmt.Sprintf("unknown game type %q", raw))
	}
}

// AddBot seats a computer player. Host only, lobby only, capacity applies.
func (m *Manager) AddBot(code string, connID uuid.UUID, skill int) (*models.RoomSnapshot, *models.GameError) {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return nil, models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if !r.IsHostConnection(connID) {
		return nil, models.NewGameError(models.ErrNotHost, "only the host can add bots")
	}
	if r.Status != models.RoomStatusLobby {
		return nil, models.NewGameError(models.ErrInvalidState, "bots can only be added in the lobby")
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, models.NewGameError(models.ErrRoomFull, "room is full")
	}
	if skill < 0 {
		skill = 0
	}
	if skill > 100 {
		skill = 100
	}

	name := m.botName(r)
	id := "bot-" + uuid.NewString()
	r.Players[id] = &models.Player{
		ID:          id,
		DisplayName: name,
		Connected:   true,
		LastSeen:    m.clock.Now(),
		IsBot:       true,
		BotSkill:    skill,
	}
	m.registry.Update(r)

	m.log.WithFields(logrus.Fields{"room": code, "bot": name, "skill": skill}).Info("bot added")
	m.broadcastLobby(r)
	snap := r.Snapshot()
	return &snap, nil
}

// botName finds the first free "Bot N" name.
func (m *Manager) botName(r *models.Room) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("Bot %d", n)
		if !r.HasNameTaken(name, "") {
			return name
		}
	}
}

// RemoveDisconnectedPlayers evicts players whose disconnect outlasted the
// grace period. Returns how many were removed.
func (m *Manager) RemoveDisconnectedPlayers(code string, grace time.Duration) int {
	code = room.NormalizeCode(code)
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := m.registry.Get(code)
	if !ok {
		return 0
	}
	now := m.clock.Now()
	removed := 0
	for id, p := range r.Players {
		if !p.Connected && !p.IsBot && now.Sub(p.LastSeen) > grace {
			delete(r.Players, id)
			removed++
		}
	}
	if removed > 0 {
		m.registry.Update(r)
		m.log.WithFields(logrus.Fields{"room": code, "removed": removed}).Info("stale players removed")
		m.broadcastLobby(r)
	}
	return removed
}

// HostlessRoomsForCleanup returns the codes of rooms that lost (or never had)
// a host longer ago than ttl, measured from the host-disconnect instant or
// the room's creation.
func (m *Manager) HostlessRoomsForCleanup(ttl time.Duration) []string {
	now := m.clock.Now()
	var codes []string
	for _, r := range m.registry.All() {
		lk := m.registry.Lock(r.Code)
		lk.Lock()
		if r.HostConnectionID == nil {
			anchor := r.CreatedAt
			if r.HostDisconnectedAt != nil {
				anchor = *r.HostDisconnectedAt
			}
			if now.Sub(anchor) > ttl {
				codes = append(codes, r.Code)
			}
		}
		lk.Unlock()
	}
	return codes
}

// RemoveRoom tears a room down, unbinding every attached connection.
// Idempotent. The removed-room hook runs after the lock is released so the
// transport can close the orphaned connections.
func (m *Manager) RemoveRoom(code string) {
	code = room.NormalizeCode(code)
	connIDs, removed := m.removeRoomLocked(code)
	if removed && m.OnRoomRemoved != nil {
		m.OnRoomRemoved(code, connIDs)
	}
}

func (m *Manager) removeRoomLocked(code string) ([]uuid.UUID, bool) {
	lk := m.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	if _, ok := m.registry.Get(code); !ok {
		return nil, false
	}
	var connIDs []uuid.UUID
	for _, b := range m.conns.ListForRoom(code) {
		m.conns.Unbind(b.ConnID)
		connIDs = append(connIDs, b.ConnID)
	}
	m.registry.Remove(code)
	m.log.WithField("room", code).Info("room removed")
	return connIDs, true
}

func (m *Manager) broadcastLobby(r *models.Room) {
	if m.BroadcastFn == nil {
		return
	}
	snap := r.Snapshot()
	m.BroadcastFn(r.Code, Event{Type: EventLobbyUpdated, Room: &snap})
}
