package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/race"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"grid": Grid, "GRID": Grid, "tictactoe": Grid,
		"race": Race, " race ": Race, "snakeladder": Race,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("chess")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNew_Grid(t *testing.T) {
	s, err := New(Grid, nil)
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, Grid, st.Kind)
	assert.Len(t, st.Cells, 9)
	for _, c := range st.Cells {
		assert.Nil(t, c)
	}
	assert.Equal(t, 0, st.CurrentTurn)
	assert.Nil(t, st.Winner)
	assert.Equal(t, "in_progress", st.Status)
}

func TestNew_Race(t *testing.T) {
	s, err := New(Race, dice.NewDie(dice.Faces(1)))
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, []TrackState{{}, {}}, st.Tracks)
	assert.Nil(t, st.LastRoll)
	assert.Equal(t, 0, st.CurrentTurn)
}

func TestNew_RaceRequiresDie(t *testing.T) {
	_, err := New(Race, nil)
	assert.Error(t, err)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(Kind("chess"), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestWrongKindActions(t *testing.T) {
	g, _ := New(Grid, nil)
	_, err := g.RollDice(0)
	assert.ErrorIs(t, err, ErrWrongKind)

	r, _ := New(Race, dice.NewDie(dice.Faces(1)))
	assert.ErrorIs(t, r.PlaceMark(0, 0), ErrWrongKind)
}

func TestCheckTurn_Order(t *testing.T) {
	s, _ := New(Grid, nil)

	assert.ErrorIs(t, CheckTurn(false, s, 0), ErrRoomInactive)
	assert.ErrorIs(t, CheckTurn(true, nil, 0), ErrGameNotStarted)
	assert.ErrorIs(t, CheckTurn(true, s, NoSeat), ErrNotInRoom)
	assert.ErrorIs(t, CheckTurn(true, s, 1), ErrNotYourTurn)
	assert.NoError(t, CheckTurn(true, s, 0))

	// inactive wins over every other failure
	assert.ErrorIs(t, CheckTurn(false, nil, NoSeat), ErrRoomInactive)
}

func TestCheckTurn_GameOver(t *testing.T) {
	tracks := [race.Seats]race.Track{{Position: 99, HasEntered: true}, {}}
	s := FromRace(race.Restore(dice.NewDie(dice.Faces(1)), tracks, 0))
	_, err := s.RollDice(0)
	require.NoError(t, err)

	assert.ErrorIs(t, CheckTurn(true, s, 0), ErrGameAlreadyOver)
	assert.ErrorIs(t, CheckTurn(true, s, 1), ErrGameAlreadyOver)

	st := s.State()
	require.NotNil(t, st.Winner)
	assert.Equal(t, 0, *st.Winner)
	assert.Equal(t, "won", st.Status)
	require.NotNil(t, st.LastRoll)
	assert.Equal(t, 1, *st.LastRoll)
}

func TestState_GridDraw(t *testing.T) {
	s, _ := New(Grid, nil)
	for _, c := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		require.NoError(t, s.PlaceMark(s.CurrentTurn(), c))
	}
	st := s.State()
	assert.True(t, st.Draw)
	assert.Equal(t, "draw", st.Status)
	assert.Nil(t, st.Winner)
	out := s.Outcome()
	assert.True(t, out.Over)
	assert.Equal(t, -1, out.Winner)
}

// Property: CheckTurn accepts exactly the current seat of a live session.
func TestCheckTurn_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, _ := New(Grid, nil)
		moves := rapid.IntRange(0, 4).Draw(rt, "moves")
		for i := 0; i < moves; i++ {
			if err := s.PlaceMark(s.CurrentTurn(), i); err != nil {
				rt.Fatalf("setup move: %v", err)
			}
		}
		seat := rapid.IntRange(0, 1).Draw(rt, "seat")
		err := CheckTurn(true, s, seat)
		if (err == nil) != (seat == s.CurrentTurn()) {
			rt.Fatalf("seat %d turn %d err %v", seat, s.CurrentTurn(), err)
		}
	})
}
