// internal/lobby/manager_test.go
package lobby

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falroman/partyquiz/internal/clock"
	"github.com/falroman/partyquiz/internal/models"
	"github.com/falroman/partyquiz/internal/room"
)

// eventRecorder collects broadcasts instead of sending them over WS.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(code string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(t string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) last() *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return &r.events[len(r.events)-1]
}

func newTestManager(t *testing.T) (*Manager, *eventRecorder, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	mgr := NewManager(logger, room.NewRegistry(clk), room.NewConnectionIndex(), clk)
	rec := &eventRecorder{}
	mgr.BroadcastFn = rec.record
	return mgr, rec, clk
}

func playerNames(snap *models.RoomSnapshot) []string {
	var names []string
	for _, p := range snap.Players {
		names = append(names, p.DisplayName)
	}
	return names
}

func TestHappyJoinSequence(t *testing.T) {
	mgr, rec, _ := newTestManager(t)
	created := mgr.CreateRoom()

	_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	_, gameErr = mgr.JoinRoom(uuid.New(), strings.ToLower(created.RoomCode), "P2", "Bob")
	require.Nil(t, gameErr)
	snap, gameErr := mgr.RegisterHost(uuid.New(), created.RoomCode)
	require.Nil(t, gameErr)

	updates := rec.ofType(EventLobbyUpdated)
	require.Len(t, updates, 3)
	assert.Equal(t, []string{"Alice"}, playerNames(updates[0].Room))
	assert.Equal(t, []string{"Alice", "Bob"}, playerNames(updates[1].Room))
	assert.Equal(t, []string{"Alice", "Bob"}, playerNames(updates[2].Room))

	assert.Equal(t, models.RoomStatusLobby, snap.Status)
	assert.False(t, snap.Locked)
	assert.True(t, snap.HasHost)
	assert.Equal(t, []string{"Alice", "Bob"}, playerNames(snap))
}

func TestDuplicateNameRejectedCaseInsensitively(t *testing.T) {
	mgr, rec, _ := newTestManager(t)
	created := mgr.CreateRoom()
	_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	before := len(rec.ofType(EventLobbyUpdated))

	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P3", "alice")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNameTaken, gameErr.Code)

	// Room unchanged, nothing broadcast.
	assert.Len(t, rec.ofType(EventLobbyUpdated), before)
	snap, ok := mgr.GetRoom(created.RoomCode)
	require.True(t, ok)
	assert.Equal(t, []string{"Alice"}, playerNames(&snap))
}

func TestNameLengthBoundaries(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()

	_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", strings.Repeat("x", 20))
	assert.Nil(t, gameErr, "20 characters must be accepted")

	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P2", strings.Repeat("x", 21))
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNameInvalid, gameErr.Code)

	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P3", "   ")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNameInvalid, gameErr.Code)
}

func TestJoinUnknownRoom(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, gameErr := mgr.JoinRoom(uuid.New(), "ZZZZ", "P1", "Alice")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrRoomNotFound, gameErr.Code)
}

func TestLockedRoomRejectsNewPlayersButAcceptsReconnects(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)
	aliceConn := uuid.New()
	_, gameErr = mgr.JoinRoom(aliceConn, created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)

	require.Nil(t, mgr.SetRoomLocked(created.RoomCode, hostConn, true))

	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P2", "Bob")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrRoomLocked, gameErr.Code)

	// Same playerId with a fresh connection: reconnect, lock ignored, name updated.
	mgr.HandleDisconnect(aliceConn)
	snap, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice2")
	require.Nil(t, gameErr)
	assert.Equal(t, []string{"Alice2"}, playerNames(snap))
	assert.True(t, snap.Players[0].Connected)
}

func TestRoomFull(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	for i := 0; i < models.DefaultMaxPlayers; i++ {
		_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P"+strings.Repeat("x", i+1), "Player"+strings.Repeat("x", i+1))
		require.Nil(t, gameErr)
	}
	_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "Pz", "Straggler")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrRoomFull, gameErr.Code)
}

func TestStartGameGate(t *testing.T) {
	mgr, rec, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)

	var started []string
	mgr.OnStartGame = func(code string) { started = append(started, code) }

	// Not the host.
	playerConn := uuid.New()
	_, gameErr = mgr.JoinRoom(playerConn, created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	gameErr = mgr.StartGame(created.RoomCode, playerConn, "quiz")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNotHost, gameErr.Code)

	// Only one player.
	gameErr = mgr.StartGame(created.RoomCode, hostConn, "quiz")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNotEnoughPlayers, gameErr.Code)

	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P2", "Bob")
	require.Nil(t, gameErr)
	require.Nil(t, mgr.StartGame(created.RoomCode, hostConn, "quiz"))

	assert.Equal(t, []string{created.RoomCode}, started)
	require.Len(t, rec.ofType(EventGameStarted), 1)
	snap, _ := mgr.GetRoom(created.RoomCode)
	assert.Equal(t, models.RoomStatusInGame, snap.Status)
	assert.True(t, snap.Locked, "starting the game locks the room")
	require.NotNil(t, snap.CurrentGame)
	assert.Equal(t, "quiz", snap.CurrentGame.GameType)

	// Starting again is rejected.
	gameErr = mgr.StartGame(created.RoomCode, hostConn, "quiz")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrRoundAlreadyStarted, gameErr.Code)
}

func TestStartGameParsesGameType(t *testing.T) {
	gt, gameErr := parseGameType("")
	require.Nil(t, gameErr)
	assert.Equal(t, "quiz", gt, "empty request defaults to the quiz")

	mgr, rec, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr = mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)
	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P2", "Bob")
	require.Nil(t, gameErr)

	gameErr = mgr.StartGame(created.RoomCode, hostConn, "chess")
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrInvalidState, gameErr.Code)
	assert.Empty(t, rec.ofType(EventGameStarted))
	snap, _ := mgr.GetRoom(created.RoomCode)
	assert.Equal(t, models.RoomStatusLobby, snap.Status, "rejected start leaves the lobby untouched")

	// Case and surrounding whitespace are forgiven; the stored type is canonical.
	require.Nil(t, mgr.StartGame(created.RoomCode, hostConn, "  QuIz "))
	snap, _ = mgr.GetRoom(created.RoomCode)
	require.NotNil(t, snap.CurrentGame)
	assert.Equal(t, "quiz", snap.CurrentGame.GameType)
}

func TestRejoinAfterLeaveMatchesSingleJoin(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()

	first, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	require.Nil(t, mgr.LeaveRoom(created.RoomCode, "P1"))
	again, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)

	assert.Equal(t, *first, *again, "leave followed by rejoin restores the same room view")
}

func TestHostDisconnectRecordsInstantAndRevokesHostRights(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)
	playerConn := uuid.New()
	_, gameErr = mgr.JoinRoom(playerConn, created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)

	mgr.HandleDisconnect(hostConn)

	snap, _ := mgr.GetRoom(created.RoomCode)
	assert.False(t, snap.HasHost)

	// A player cannot exercise host rights afterwards.
	gameErr = mgr.SetRoomLocked(created.RoomCode, playerConn, true)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNotHost, gameErr.Code)

	// The janitor collects the room once the TTL passed.
	assert.Empty(t, mgr.HostlessRoomsForCleanup(10*time.Minute))
	clk.Advance(12 * time.Minute)
	assert.Equal(t, []string{created.RoomCode}, mgr.HostlessRoomsForCleanup(10*time.Minute))
}

func TestHostReconnectClearsDisconnectInstant(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)

	mgr.HandleDisconnect(hostConn)
	clk.Advance(12 * time.Minute)
	_, gameErr = mgr.RegisterHost(uuid.New(), created.RoomCode)
	require.Nil(t, gameErr)

	assert.Empty(t, mgr.HostlessRoomsForCleanup(10*time.Minute))
}

func TestRemoveDisconnectedPlayersHonoursGrace(t *testing.T) {
	mgr, _, clk := newTestManager(t)
	created := mgr.CreateRoom()
	aliceConn := uuid.New()
	_, gameErr := mgr.JoinRoom(aliceConn, created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)
	_, gameErr = mgr.JoinRoom(uuid.New(), created.RoomCode, "P2", "Bob")
	require.Nil(t, gameErr)

	mgr.HandleDisconnect(aliceConn)

	// Within grace: nobody removed.
	clk.Advance(60 * time.Second)
	assert.Zero(t, mgr.RemoveDisconnectedPlayers(created.RoomCode, 120*time.Second))

	clk.Advance(90 * time.Second)
	assert.Equal(t, 1, mgr.RemoveDisconnectedPlayers(created.RoomCode, 120*time.Second))

	snap, _ := mgr.GetRoom(created.RoomCode)
	assert.Equal(t, []string{"Bob"}, playerNames(&snap))
}

func TestLeaveRoomRemovesPlayer(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	_, gameErr := mgr.JoinRoom(uuid.New(), created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)

	require.Nil(t, mgr.LeaveRoom(created.RoomCode, "P1"))
	snap, _ := mgr.GetRoom(created.RoomCode)
	assert.Empty(t, snap.Players)

	// Leaving again is a no-op.
	require.Nil(t, mgr.LeaveRoom(created.RoomCode, "P1"))
}

func TestAddBot(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)

	// Host only.
	_, gameErr = mgr.AddBot(created.RoomCode, uuid.New(), 50)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrNotHost, gameErr.Code)

	snap, gameErr := mgr.AddBot(created.RoomCode, hostConn, 130)
	require.Nil(t, gameErr)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Bot 1", snap.Players[0].DisplayName)
	assert.True(t, snap.Players[0].IsBot)

	snap, gameErr = mgr.AddBot(created.RoomCode, hostConn, 50)
	require.Nil(t, gameErr)
	assert.Equal(t, []string{"Bot 1", "Bot 2"}, playerNames(snap))
}

func TestRemoveRoomUnbindsGroup(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)

	mgr.RemoveRoom(created.RoomCode)
	_, ok := mgr.GetRoom(created.RoomCode)
	assert.False(t, ok)

	mgr.RemoveRoom(created.RoomCode) // idempotent

	// The old host connection no longer carries a binding: re-registering
	// a fresh room with it must succeed.
	fresh := mgr.CreateRoom()
	_, gameErr = mgr.RegisterHost(hostConn, fresh.RoomCode)
	assert.Nil(t, gameErr)
}

func TestRemoveRoomNotifiesAttachedConnections(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	created := mgr.CreateRoom()
	hostConn := uuid.New()
	_, gameErr := mgr.RegisterHost(hostConn, created.RoomCode)
	require.Nil(t, gameErr)
	playerConn := uuid.New()
	_, gameErr = mgr.JoinRoom(playerConn, created.RoomCode, "P1", "Alice")
	require.Nil(t, gameErr)

	var codes []string
	var conns []uuid.UUID
	mgr.OnRoomRemoved = func(code string, connIDs []uuid.UUID) {
		codes = append(codes, code)
		conns = append(conns, connIDs...)
	}

	mgr.RemoveRoom(created.RoomCode)
	assert.Equal(t, []string{created.RoomCode}, codes)
	assert.ElementsMatch(t, []uuid.UUID{hostConn, playerConn}, conns)

	// A second removal finds nothing and stays silent.
	mgr.RemoveRoom(created.RoomCode)
	assert.Len(t, codes, 1)
}
