package protocol

import (
	"errors"

	"github.com/cory-johannsen/diceraja/internal/game/grid"
	"github.com/cory-johannsen/diceraja/internal/game/race"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// Reason is the wire code of a rejected action.
type Reason string

// Rejection reasons.
const (
	RoomNotFound             Reason = "RoomNotFound"
	RoomFull                 Reason = "RoomFull"
	NotYourTurn              Reason = "NotYourTurn"
	GameAlreadyOver          Reason = "GameAlreadyOver"
	RoomInactive             Reason = "RoomInactive"
	CellOutOfRange           Reason = "CellOutOfRange"
	CellOccupied             Reason = "CellOccupied"
	InvalidGameKindForAction Reason = "InvalidGameKindForAction"
	CodeSpaceExhausted       Reason = "CodeSpaceExhausted"
	GameNotStarted           Reason = "GameNotStarted"
	NotInRoom                Reason = "NotInRoom"
	MalformedAction          Reason = "MalformedAction"
	Internal                 Reason = "Internal"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{room.ErrRoomNotFound, RoomNotFound},
	{room.ErrRoomFull, RoomFull},
	{room.ErrCodeSpaceExhausted, CodeSpaceExhausted},
	{session.ErrRoomInactive, RoomInactive},
	{session.ErrGameNotStarted, GameNotStarted},
	{session.ErrGameAlreadyOver, GameAlreadyOver},
	{grid.ErrGameAlreadyOver, GameAlreadyOver},
	{race.ErrGameAlreadyOver, GameAlreadyOver},
	{session.ErrNotInRoom, NotInRoom},
	{session.ErrNotYourTurn, NotYourTurn},
	{grid.ErrNotYourTurn, NotYourTurn},
	{race.ErrNotYourTurn, NotYourTurn},
	{grid.ErrCellOutOfRange, CellOutOfRange},
	{grid.ErrCellOccupied, CellOccupied},
	{session.ErrWrongKind, InvalidGameKindForAction},
	{session.ErrUnknownKind, InvalidGameKindForAction},
	{ErrMalformed, MalformedAction},
}

var messages = map[Reason]string{
	RoomNotFound:             "No room has that code.",
	RoomFull:                 "That room already has two players.",
	NotYourTurn:              "It is not your turn.",
	GameAlreadyOver:          "The game is already over.",
	RoomInactive:             "That room is closed.",
	CellOutOfRange:           "Cells are numbered 0 to 8.",
	CellOccupied:             "That cell is already taken.",
	InvalidGameKindForAction: "That action does not fit this game.",
	CodeSpaceExhausted:       "No room codes are free. Try again later.",
	GameNotStarted:           "The game has not started yet.",
	NotInRoom:                "You are not seated in that room.",
	MalformedAction:          "The request could not be understood.",
}

// Message returns the fixed client-facing text for r. Error details stay in
// the server log.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return "Something went wrong."
}

// ReasonFor maps an action error to its wire reason. Unknown errors map to
// Internal.
func ReasonFor(err error) Reason {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return Internal
}
