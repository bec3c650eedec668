// Package race implements the linear 0-100 dice race played by two seats.
//
// A seat must roll a 6 to enter the track at position 1. Entered seats advance
// by the roll, clamped at Finish; landing on Finish wins. A 6 grants the same
// seat another roll unless it ended the game.
package race

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
)

const (
	// Finish is the winning position.
	Finish = 100
	// EntryRoll is the face required to enter the track.
	EntryRoll = 6
	// EntryPosition is where a seat lands after entering.
	EntryPosition = 1
	// DieSides is the size of the race die.
	DieSides = 6
	// Seats is the number of seats on the track.
	Seats = 2
)

// Sentinel errors for illegal rolls.
var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrGameAlreadyOver = errors.New("game already over")
)

// Track is one seat's progress.
type Track struct {
	Position   int
	HasEntered bool
}

// Roll describes the outcome of a single RollDice call.
type Roll struct {
	Seat      int
	Value     int
	From      int
	To        int
	Entered   bool // this roll brought the seat onto the track
	ExtraTurn bool // the same seat rolls again
	Won       bool
}

// Game is the race state.
//
// Invariant: 0 <= Position <= Finish for every track; positions never
// decrease; once a winner is set it never changes.
type Game struct {
	die          dice.Die
	tracks       [Seats]Track
	currentTurn  int
	lastRoll     int
	lastRollSeat int
	winner       int
}

// New returns a race with both seats off the track and seat 0 to roll.
//
// Precondition: die must be non-nil.
func New(die dice.Die) *Game {
	return &Game{die: die, winner: -1, lastRollSeat: -1}
}

// RollDice rolls for seat and applies the movement and turn rules.
//
// Precondition: seat is 0 or 1.
// Postcondition: on error nothing changed and no die was rolled.
func (g *Game) RollDice(seat int) (Roll, error) {
	if g.winner >= 0 {
		return Roll{}, ErrGameAlreadyOver
	}
	if seat != g.currentTurn {
		return Roll{}, fmt.Errorf("%w: seat %d, current %d", ErrNotYourTurn, seat, g.currentTurn)
	}

	value := g.die.Roll(DieSides)
	tr := &g.tracks[seat]
	r := Roll{Seat: seat, Value: value, From: tr.Position}

	switch {
	case !tr.HasEntered && value == EntryRoll:
		tr.HasEntered = true
		tr.Position = EntryPosition
		r.Entered = true
	case tr.HasEntered:
		tr.Position = min(tr.Position+value, Finish)
	}
	r.To = tr.Position

	g.lastRoll = value
	g.lastRollSeat = seat

	if tr.Position == Finish {
		g.winner = seat
		r.Won = true
		return r, nil
	}

	if value == EntryRoll {
		r.ExtraTurn = true
	} else {
		g.currentTurn = 1 - g.currentTurn
	}
	return r, nil
}

// Tracks returns a copy of both seats' tracks.
func (g *Game) Tracks() [Seats]Track {
	return g.tracks
}

// CurrentTurn returns the seat expected to roll next.
func (g *Game) CurrentTurn() int {
	return g.currentTurn
}

// LastRoll returns the most recent face and the seat that rolled it.
// ok is false before the first roll.
func (g *Game) LastRoll() (value, seat int, ok bool) {
	return g.lastRoll, g.lastRollSeat, g.lastRollSeat >= 0
}

// Winner returns the winning seat, if any.
func (g *Game) Winner() (int, bool) {
	return g.winner, g.winner >= 0
}

// Over reports whether a seat has reached Finish.
func (g *Game) Over() bool {
	return g.winner >= 0
}

// Clone returns an independent copy sharing the same die.
func (g *Game) Clone() *Game {
	c := *g
	return &c
}

// Restore builds a game at an arbitrary position so tests can start near the
// finish. It does not validate reachability.
//
// Precondition: every position is in [0, Finish]; currentTurn is 0 or 1.
func Restore(die dice.Die, tracks [Seats]Track, currentTurn int) *Game {
	g := New(die)
	g.tracks = tracks
	g.currentTurn = currentTurn
	return g
}
