// Package room holds the two-seat room aggregate and the process-wide
// registry of rooms keyed by their join code.
package room

import (
	"time"

	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// MaxSeats is the number of participants a room holds.
const MaxSeats = 2

// Participant is a seated connection. It is immutable once created.
type Participant struct {
	ConnectionID string `json:"connectionId" yaml:"connectionId"`
	DisplayName  string `json:"displayName" yaml:"displayName"`
	Seat         int    `json:"seatIndex" yaml:"seatIndex"`
	UserID       string `json:"userId,omitempty" yaml:"userId,omitempty"`
}

// Room binds up to two participants to one game session.
//
// Invariant: len(Participants) <= MaxSeats and Participants[i].Seat == i;
// Session is nil until the second seat is filled; Active only goes
// true -> false.
type Room struct {
	Code         string
	Kind         session.Kind
	Participants []Participant
	Session      *session.Session
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SeatOf returns the first seat held by connID, or session.NoSeat.
func (r *Room) SeatOf(connID string) int {
	for _, p := range r.Participants {
		if p.ConnectionID == connID {
			return p.Seat
		}
	}
	return session.NoSeat
}

// Full reports whether both seats are taken.
func (r *Room) Full() bool {
	return len(r.Participants) >= MaxSeats
}

// Started reports whether the session has been created.
func (r *Room) Started() bool {
	return r.Session != nil
}

// State returns the session snapshot, or nil while the room is waiting.
func (r *Room) State() *session.State {
	if r.Session == nil {
		return nil
	}
	st := r.Session.State()
	return &st
}

// ParticipantList returns a copy of the participants.
func (r *Room) ParticipantList() []Participant {
	out := make([]Participant, len(r.Participants))
	copy(out, r.Participants)
	return out
}

// ConnectionIDs returns the connection of every seat in seat order.
func (r *Room) ConnectionIDs() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.ConnectionID)
	}
	return ids
}

// NameOf returns the display name seated at seat, or "" if empty.
func (r *Room) NameOf(seat int) string {
	if seat < 0 || seat >= len(r.Participants) {
		return ""
	}
	return r.Participants[seat].DisplayName
}
