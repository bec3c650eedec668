// Package grid implements the 3x3 mark-placement game played by two seats.
package grid

import (
	"errors"
	"fmt"
)

// CellCount is the number of cells on the board.
const CellCount = 9

// Empty marks a cell no seat has claimed.
const Empty = -1

// Sentinel errors for illegal placements.
var (
	ErrCellOutOfRange  = errors.New("cell out of range")
	ErrCellOccupied    = errors.New("cell occupied")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrGameAlreadyOver = errors.New("game already over")
)

// Status is the state of a Game.
type Status int

const (
	// InProgress means moves are still accepted.
	InProgress Status = iota
	// Won means a seat completed a triple.
	Won
	// Draw means the board filled with no triple.
	Draw
)

// String returns the lowercase status name used on the wire.
func (s Status) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Won:
		return "won"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// lines are the 8 winning triples, evaluated in this order.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// Lines returns the winning triples in evaluation order.
func Lines() [8][3]int {
	return lines
}

// Game is the board plus turn bookkeeping.
//
// Invariant: every non-Empty cell holds 0 or 1; CurrentTurn is 0 or 1;
// once Status leaves InProgress it never changes again.
type Game struct {
	cells       [CellCount]int
	currentTurn int
	status      Status
	winner      int
}

// New returns an empty board with seat 0 to move.
//
// Postcondition: all cells Empty, CurrentTurn() == 0, Status() == InProgress.
func New() *Game {
	g := &Game{winner: Empty}
	for i := range g.cells {
		g.cells[i] = Empty
	}
	return g
}

// PlaceMark claims cell for seat.
//
// Precondition: seat is 0 or 1.
// Postcondition: on success cells[cell] == seat and exactly one of Won, Draw
// or a turn flip has happened; on error the game is unchanged.
func (g *Game) PlaceMark(seat, cell int) error {
	if g.status != InProgress {
		return ErrGameAlreadyOver
	}
	if seat != g.currentTurn {
		return ErrNotYourTurn
	}
	if cell < 0 || cell >= CellCount {
		return fmt.Errorf("%w: %d", ErrCellOutOfRange, cell)
	}
	if g.cells[cell] != Empty {
		return fmt.Errorf("%w: %d", ErrCellOccupied, cell)
	}

	g.cells[cell] = seat

	if w, ok := g.findWinner(); ok {
		g.status = Won
		g.winner = w
		return nil
	}
	if g.full() {
		g.status = Draw
		return nil
	}
	g.currentTurn = 1 - g.currentTurn
	return nil
}

// findWinner checks all triples; only the last placed mark can complete one,
// so scanning all of them gives the same answer as scanning the touched ones.
func (g *Game) findWinner() (int, bool) {
	for _, l := range lines {
		a := g.cells[l[0]]
		if a != Empty && a == g.cells[l[1]] && a == g.cells[l[2]] {
			return a, true
		}
	}
	return Empty, false
}

func (g *Game) full() bool {
	for _, c := range g.cells {
		if c == Empty {
			return false
		}
	}
	return true
}

// Cells returns a copy of the board.
func (g *Game) Cells() [CellCount]int {
	return g.cells
}

// CurrentTurn returns the seat expected to move next.
func (g *Game) CurrentTurn() int {
	return g.currentTurn
}

// Status returns the game status.
func (g *Game) Status() Status {
	return g.status
}

// Winner returns the winning seat when Status() == Won.
func (g *Game) Winner() (int, bool) {
	return g.winner, g.status == Won
}

// Over reports whether the game has ended in a win or a draw.
func (g *Game) Over() bool {
	return g.status != InProgress
}

// Clone returns an independent copy.
func (g *Game) Clone() *Game {
	c := *g
	return &c
}
