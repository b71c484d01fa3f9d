package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
)

func newTestMemory(ttl time.Duration) (*Memory, *time.Time) {
	m := NewMemory(ttl)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestMemory_RoomRoundTrip(t *testing.T) {
	m, _ := newTestMemory(time.Hour)
	ctx := context.Background()

	r := &room.Room{ID: "r-1", Code: "ABC123", StateVersion: 1}
	require.NoError(t, m.SaveRoom(ctx, r))

	got, ok, err := m.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r-1", got.ID)

	_, ok, err = m.GetRoomByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_CopyOnRead(t *testing.T) {
	m, _ := newTestMemory(time.Hour)
	ctx := context.Background()

	r := &room.Room{Code: "ABC123", StateVersion: 1, GameState: room.GameState{"phase": "setup"}}
	require.NoError(t, m.SaveRoom(ctx, r))

	a, _, err := m.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	a.StateVersion = 99
	a.GameState["phase"] = "mutated"

	// A second reader must not see the first reader's unsaved mutations.
	b, _, err := m.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, b.StateVersion)
	assert.Equal(t, "setup", b.GameState["phase"])
}

func TestMemory_LazyExpiry(t *testing.T) {
	m, clock := newTestMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.SaveRoom(ctx, &room.Room{Code: "ABC123"}))

	*clock = clock.Add(time.Hour + time.Second)
	_, ok, err := m.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok, "record past TTL must be gone on next access")
}

func TestMemory_SlidingTTL(t *testing.T) {
	m, clock := newTestMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.SaveRoom(ctx, &room.Room{Code: "ABC123"}))

	// Touch the room every 40 minutes; each read re-arms the TTL.
	for i := 0; i < 4; i++ {
		*clock = clock.Add(40 * time.Minute)
		_, ok, err := m.GetRoomByCode(ctx, "ABC123")
		require.NoError(t, err)
		require.True(t, ok, "active room must never expire mid-session")
	}

	// Stop touching it and the TTL finally lapses.
	*clock = clock.Add(time.Hour + time.Second)
	_, ok, _ := m.GetRoomByCode(ctx, "ABC123")
	assert.False(t, ok)
}

func TestMemory_SessionLifecycle(t *testing.T) {
	m, _ := newTestMemory(time.Hour)
	ctx := context.Background()

	s := &room.Session{Token: "tok-1", RoomCode: "ABC123", PlayerID: "ava"}
	require.NoError(t, m.SaveSession(ctx, s))

	got, ok, err := m.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ava", got.PlayerID)

	require.NoError(t, m.DeleteSession(ctx, "tok-1"))
	_, ok, _ = m.GetSession(ctx, "tok-1")
	assert.False(t, ok)
}

func TestMemory_DeleteRoomFreesCode(t *testing.T) {
	m, _ := newTestMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.SaveRoom(ctx, &room.Room{ID: "r-1", Code: "ABC123"}))
	require.NoError(t, m.DeleteRoom(ctx, "ABC123"))

	// The code is free for reuse once the old room is gone.
	require.NoError(t, m.SaveRoom(ctx, &room.Room{ID: "r-2", Code: "ABC123"}))
	got, ok, err := m.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r-2", got.ID)
}
