// Package mirror carries write-only snapshots of rooms to durable or shared
// stores. The in-memory registry stays authoritative; nothing is read back.
package mirror

import (
	"time"

	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// Result is a seat's outcome once a game is over.
type Result string

// Seat results.
const (
	Win  Result = "WIN"
	Loss Result = "LOSS"
	Draw Result = "DRAW"
)

// SeatResult records how one participant finished.
type SeatResult struct {
	Seat        int    `json:"seatIndex"`
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId,omitempty"`
	Result      Result `json:"result"`
}

// Record is the mirrored form of a room.
type Record struct {
	Code         string             `json:"code"`
	GameKind     session.Kind       `json:"gameKind"`
	Participants []room.Participant `json:"participants"`
	State        *session.State     `json:"state,omitempty"`
	Active       bool               `json:"active"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Winner       *int               `json:"winner,omitempty"`
	Results      []SeatResult       `json:"results,omitempty"`
}

// Over reports whether the record carries final results.
func (r Record) Over() bool {
	return len(r.Results) > 0
}

// FromRoom snapshots rm. Results are filled only when the session is over.
//
// Precondition: rm must be non-nil.
func FromRoom(rm *room.Room) Record {
	rec := Record{
		Code:         rm.Code,
		GameKind:     rm.Kind,
		Participants: rm.ParticipantList(),
		State:        rm.State(),
		Active:       rm.Active,
		CreatedAt:    rm.CreatedAt,
		UpdatedAt:    rm.UpdatedAt,
	}
	if rm.Session == nil {
		return rec
	}
	out := rm.Session.Outcome()
	if !out.Over {
		return rec
	}
	if !out.Draw {
		w := out.Winner
		rec.Winner = &w
	}
	for _, p := range rm.Participants {
		res := Loss
		switch {
		case out.Draw:
			res = Draw
		case p.Seat == out.Winner:
			res = Win
		}
		rec.Results = append(rec.Results, SeatResult{
			Seat:        p.Seat,
			DisplayName: p.DisplayName,
			UserID:      p.UserID,
			Result:      res,
		})
	}
	return rec
}
