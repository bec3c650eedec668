package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/mirror"
	"github.com/cory-johannsen/diceraja/internal/storage/sqlite"
)

func openStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}

func TestStore_MirrorsFinishedGame(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	reg := room.NewRegistry(dice.NewSequenceSource(3821), dice.NewDie(dice.Faces(1)),
		room.WithClock(func() time.Time { return clock }))
	rm, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, mirror.FromRoom(rm)))

	_, err = reg.Join("4821", "Bob", "c2")
	require.NoError(t, err)
	for i, cell := range []int{0, 3, 1, 4, 2} {
		require.NoError(t, rm.Session.PlaceMark(i%2, cell))
	}
	clock = clock.Add(time.Minute)
	reg.Touch(rm)
	final := mirror.FromRoom(rm)
	require.NoError(t, store.Write(ctx, final))

	got, err := store.Get(ctx, "4821")
	require.NoError(t, err)
	assert.Equal(t, session.Grid, got.GameKind)
	require.NotNil(t, got.Winner)
	assert.Equal(t, 0, *got.Winner)
	require.NotNil(t, got.State)
	assert.Equal(t, "won", got.State.Status)
	assert.Equal(t, final.Results, got.Results)
	assert.True(t, got.UpdatedAt.Equal(final.UpdatedAt))
	assert.Len(t, got.Participants, 2)
}

func TestStore_StaleWriteIgnored(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	newer := mirror.Record{Code: "1000", GameKind: session.Race, Active: false, CreatedAt: t0, UpdatedAt: t0.Add(time.Second)}
	older := mirror.Record{Code: "1000", GameKind: session.Race, Active: true, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, store.Write(ctx, newer))
	require.NoError(t, store.Write(ctx, older))

	got, err := store.Get(ctx, "1000")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Nil(t, got.State)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, mirror.Record{Code: "2000", GameKind: session.Grid, Active: true, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, store.Close())

	again, err := sqlite.Open(path)
	require.NoError(t, err)
	defer again.Close()
	got, err := again.Get(ctx, "2000")
	require.NoError(t, err)
	assert.True(t, got.Active)

	_, err = again.Get(ctx, "2001")
	assert.ErrorIs(t, err, sqlite.ErrRoomNotFound)
}
