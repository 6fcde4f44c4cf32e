// internal/room/connections_test.go
package room

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndGet(t *testing.T) {
	ci := NewConnectionIndex()
	hostConn := uuid.New()
	playerConn := uuid.New()

	ci.BindHost(hostConn, "abcd")
	ci.BindPlayer(playerConn, "ABCD", "p1")

	b, ok := ci.Get(hostConn)
	require.True(t, ok)
	assert.Equal(t, RoleHost, b.Role)
	assert.Equal(t, "ABCD", b.RoomCode)
	assert.Empty(t, b.PlayerID)

	b, ok = ci.Get(playerConn)
	require.True(t, ok)
	assert.Equal(t, RolePlayer, b.Role)
	assert.Equal(t, "p1", b.PlayerID)
}

func TestRebindOverwritesAtomically(t *testing.T) {
	ci := NewConnectionIndex()
	conn := uuid.New()

	ci.BindHost(conn, "AAAA")
	ci.BindPlayer(conn, "BBBB", "p9")

	b, ok := ci.Get(conn)
	require.True(t, ok)
	assert.Equal(t, RolePlayer, b.Role)
	assert.Equal(t, "BBBB", b.RoomCode)

	assert.Empty(t, ci.ListForRoom("AAAA"))
	assert.Len(t, ci.ListForRoom("BBBB"), 1)
}

func TestUnbindIsIdempotent(t *testing.T) {
	ci := NewConnectionIndex()
	conn := uuid.New()
	ci.BindHost(conn, "CCCC")

	ci.Unbind(conn)
	_, ok := ci.Get(conn)
	assert.False(t, ok)

	ci.Unbind(conn)
	assert.Empty(t, ci.ListForRoom("CCCC"))
}

func TestListForRoomReturnsWholeGroup(t *testing.T) {
	ci := NewConnectionIndex()
	host := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()

	ci.BindHost(host, "DDDD")
	ci.BindPlayer(p1, "dddd", "p1")
	ci.BindPlayer(p2, "DDDD", "p2")
	ci.BindPlayer(uuid.New(), "EEEE", "p3")

	group := ci.ListForRoom("DDDD")
	assert.Len(t, group, 3)
}
