package session

import "errors"

// Envelope errors, checked in this order by CheckTurn.
var (
	ErrRoomInactive    = errors.New("room inactive")
	ErrGameNotStarted  = errors.New("game not started")
	ErrGameAlreadyOver = errors.New("game already over")
	ErrNotInRoom       = errors.New("not in room")
	ErrNotYourTurn     = errors.New("not your turn")
)

// NoSeat is passed to CheckTurn when the acting connection holds no seat.
const NoSeat = -1

// CheckTurn validates the variant-independent envelope of an action by seat.
// It never mutates anything.
//
// Precondition: s may be nil (the room is still waiting for a second seat).
// Postcondition: returns nil only if the room is active, the session exists
// and is not over, and seat is the current turn.
func CheckTurn(active bool, s *Session, seat int) error {
	if !active {
		return ErrRoomInactive
	}
	if s == nil {
		return ErrGameNotStarted
	}
	if s.Over() {
		return ErrGameAlreadyOver
	}
	if seat == NoSeat {
		return ErrNotInRoom
	}
	if seat != s.CurrentTurn() {
		return ErrNotYourTurn
	}
	return nil
}
