// Package session binds the game-kind variants to one turn envelope.
//
// A Session is a tagged variant: exactly one of the Grid or Race machines is
// set, selected by Kind. The turn coordinator in this package only reads the
// variant-independent fields (current turn and winner); everything else is
// delegated to the variant.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/grid"
	"github.com/cory-johannsen/diceraja/internal/game/race"
)

// Kind identifies a game variant.
type Kind string

const (
	// Grid is the 3x3 mark-placement game.
	Grid Kind = "grid"
	// Race is the 0-100 dice race.
	Race Kind = "race"
)

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown game kind")

// ErrWrongKind is returned when an action is sent to the other variant.
var ErrWrongKind = errors.New("action not valid for game kind")

// ParseKind maps a wire name to a Kind. The legacy client names
// "tictactoe" and "snakeladder" are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "grid", "tictactoe":
		return Grid, nil
	case "race", "snakeladder":
		return Race, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Grid || k == Race
}

// Session is the game state of a started room.
type Session struct {
	kind Kind
	grid *grid.Game
	race *race.Game
}

// New creates the initial session for kind. Race sessions roll with die.
//
// Precondition: die must be non-nil when kind is Race.
// Postcondition: seat 0 is to move and no winner is set.
func New(kind Kind, die dice.Die) (*Session, error) {
	switch kind {
	case Grid:
		return &Session{kind: Grid, grid: grid.New()}, nil
	case Race:
		if die == nil {
			return nil, errors.New("race session requires a die")
		}
		return &Session{kind: Race, race: race.New(die)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
}

// FromRace wraps an existing race machine, such as one built by race.Restore.
func FromRace(g *race.Game) *Session {
	return &Session{kind: Race, race: g}
}

// Kind returns the variant tag.
func (s *Session) Kind() Kind {
	return s.kind
}

// CurrentTurn returns the seat expected to act.
func (s *Session) CurrentTurn() int {
	if s.kind == Grid {
		return s.grid.CurrentTurn()
	}
	return s.race.CurrentTurn()
}

// Over reports whether the session has a result.
func (s *Session) Over() bool {
	if s.kind == Grid {
		return s.grid.Over()
	}
	return s.race.Over()
}

// Outcome summarises a finished session.
type Outcome struct {
	Over   bool
	Draw   bool
	Winner int // -1 unless a seat won
}

// Outcome returns the current result.
func (s *Session) Outcome() Outcome {
	if s.kind == Grid {
		switch s.grid.Status() {
		case grid.Won:
			w, _ := s.grid.Winner()
			return Outcome{Over: true, Winner: w}
		case grid.Draw:
			return Outcome{Over: true, Draw: true, Winner: -1}
		}
		return Outcome{Winner: -1}
	}
	if w, ok := s.race.Winner(); ok {
		return Outcome{Over: true, Winner: w}
	}
	return Outcome{Winner: -1}
}

// PlaceMark applies a Grid move.
//
// Postcondition: returns ErrWrongKind for Race sessions; on any error the
// session is unchanged.
func (s *Session) PlaceMark(seat, cell int) error {
	if s.kind != Grid {
		return ErrWrongKind
	}
	return s.grid.PlaceMark(seat, cell)
}

// RollDice applies a Race roll.
//
// Postcondition: returns ErrWrongKind for Grid sessions; on any error the
// session is unchanged.
func (s *Session) RollDice(seat int) (race.Roll, error) {
	if s.kind != Race {
		return race.Roll{}, ErrWrongKind
	}
	return s.race.RollDice(seat)
}
