package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// codes scripts room codes; each code must be in 1000-9999.
func codes(cs ...int) dice.Source {
	vals := make([]int, len(cs))
	for i, c := range cs {
		vals[i] = c - 1000
	}
	return dice.NewSequenceSource(vals...)
}

func newRegistry(src dice.Source, opts ...room.Option) *room.Registry {
	return room.NewRegistry(src, dice.NewDie(dice.Faces(1)), opts...)
}

func TestCreate_SeatsCreator(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := newRegistry(codes(4821), room.WithClock(func() time.Time { return fixed }))

	rm, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)
	assert.Equal(t, "4821", rm.Code)
	assert.Equal(t, session.Grid, rm.Kind)
	assert.True(t, rm.Active)
	assert.False(t, rm.Started())
	assert.Nil(t, rm.State())
	require.Len(t, rm.Participants, 1)
	assert.Equal(t, room.Participant{ConnectionID: "c1", DisplayName: "Alice", Seat: 0}, rm.Participants[0])
	assert.Equal(t, fixed, rm.CreatedAt)
	assert.Equal(t, 1, reg.Len())
}

func TestCreate_InvalidKind(t *testing.T) {
	reg := newRegistry(codes(1000))
	_, err := reg.Create(session.Kind("chess"), "Alice", "c1")
	assert.ErrorIs(t, err, session.ErrUnknownKind)
	assert.Equal(t, 0, reg.Len())
}

func TestCreate_RetriesOnCollision(t *testing.T) {
	reg := newRegistry(codes(4821, 4821, 4821, 1234))
	first, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)
	second, err := reg.Create(session.Race, "Carol", "c3")
	require.NoError(t, err)

	assert.Equal(t, "4821", first.Code)
	assert.Equal(t, "1234", second.Code)
}

func TestCreate_CodeSpaceExhausted(t *testing.T) {
	reg := newRegistry(codes(4821), room.WithCodeAttempts(3))
	_, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)

	_, err = reg.Create(session.Grid, "Bob", "c2")
	assert.ErrorIs(t, err, room.ErrCodeSpaceExhausted)
	assert.Equal(t, 1, reg.Len())
}

func TestJoin_StartsGridSession(t *testing.T) {
	reg := newRegistry(codes(4821))
	_, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)

	rm, err := reg.Join("4821", "Bob", "c2")
	require.NoError(t, err)
	require.True(t, rm.Started())
	assert.Equal(t, []string{"c1", "c2"}, rm.ConnectionIDs())
	assert.Equal(t, 1, rm.Participants[1].Seat)

	st := rm.State()
	assert.Equal(t, 0, st.CurrentTurn)
	assert.Len(t, st.Cells, 9)
}

func TestJoin_StartsRaceSession(t *testing.T) {
	reg := newRegistry(codes(2000))
	_, err := reg.Create(session.Race, "Alice", "c1")
	require.NoError(t, err)
	rm, err := reg.Join("2000", "Bob", "c2")
	require.NoError(t, err)

	st := rm.State()
	assert.Equal(t, []session.TrackState{{}, {}}, st.Tracks)
	assert.Equal(t, 0, st.CurrentTurn)
}

func TestJoin_NotFound(t *testing.T) {
	reg := newRegistry(codes(4821))
	_, err := reg.Join("9999", "Bob", "c2")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestJoin_Full(t *testing.T) {
	reg := newRegistry(codes(4821))
	_, _ = reg.Create(session.Grid, "Alice", "c1")
	_, err := reg.Join("4821", "Bob", "c2")
	require.NoError(t, err)

	_, err = reg.Join("4821", "Eve", "c3")
	assert.ErrorIs(t, err, room.ErrRoomFull)
	rm, _ := reg.Lookup("4821")
	assert.Equal(t, []string{"c1", "c2"}, rm.ConnectionIDs())
}

func TestJoin_Inactive(t *testing.T) {
	reg := newRegistry(codes(4821))
	_, _ = reg.Create(session.Grid, "Alice", "c1")
	reg.RemoveByConnection("c1")

	_, err := reg.Join("4821", "Bob", "c2")
	assert.ErrorIs(t, err, session.ErrRoomInactive)
}

func TestRemoveByConnection(t *testing.T) {
	reg := newRegistry(codes(4821, 1111))
	_, _ = reg.Create(session.Grid, "Alice", "c1")
	_, _ = reg.Join("4821", "Bob", "c2")
	_, _ = reg.Create(session.Race, "Carol", "c3")

	affected := reg.RemoveByConnection("c2")
	require.Len(t, affected, 1)
	assert.Equal(t, "4821", affected[0].Code)
	assert.False(t, affected[0].Active)
	assert.Len(t, affected[0].Participants, 2, "seat is never freed")
	assert.Equal(t, 1, reg.ActiveLen())

	assert.Empty(t, reg.RemoveByConnection("c2"), "already inactive")
	assert.Empty(t, reg.RemoveByConnection("nobody"))
}

func TestInactiveCodeNeverReused(t *testing.T) {
	reg := newRegistry(codes(4821, 4821, 5000), room.WithCodeAttempts(2))
	_, _ = reg.Create(session.Grid, "Alice", "c1")
	reg.RemoveByConnection("c1")

	rm, err := reg.Create(session.Grid, "Bob", "c2")
	require.NoError(t, err)
	assert.Equal(t, "5000", rm.Code)
}

// Property: joining a full room always fails RoomFull and leaves the
// participants unchanged, and seats always equal their index.
func TestJoin_FullProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := room.NewRegistry(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), dice.NewDie(dice.Faces(1)))
		rm, err := reg.Create(session.Grid, "A", "c0")
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		extra := rapid.IntRange(1, 6).Draw(rt, "joins")
		for i := 1; i <= extra; i++ {
			before := rm.ParticipantList()
			_, err := reg.Join(rm.Code, "P", "c"+string(rune('0'+i)))
			if i < room.MaxSeats {
				if err != nil {
					rt.Fatalf("join %d: %v", i, err)
				}
				continue
			}
			if !assert.ErrorIs(rt, err, room.ErrRoomFull) {
				rt.FailNow()
			}
			assert.Equal(rt, before, rm.ParticipantList())
		}
		for i, p := range rm.Participants {
			if p.Seat != i {
				rt.Fatalf("participant %d has seat %d", i, p.Seat)
			}
		}
	})
}
