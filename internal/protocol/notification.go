package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// Outbound notification names.
const (
	TypeRoomCreated             = "roomCreated"
	TypeParticipantJoined       = "participantJoined"
	TypeSessionStarted          = "sessionStarted"
	TypeStateChanged            = "stateChanged"
	TypeGameOver                = "gameOver"
	TypeParticipantDisconnected = "participantDisconnected"
	TypeActionRejected          = "actionRejected"
)

// DrawWinner is the gameOver winner field when the game ended in a draw.
const DrawWinner = "draw"

// Notification is one outbound message. Payload is one of the payload types
// below.
type Notification struct {
	Type    string
	Payload any
}

// MarshalJSON encodes the notification as an Envelope.
func (n Notification) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", n.Type, err)
	}
	return json.Marshal(Envelope{Type: n.Type, Payload: raw})
}

// Code returns the room code the notification concerns, or "".
func (n Notification) Code() string {
	switch p := n.Payload.(type) {
	case RoomCreated:
		return p.Code
	case ParticipantJoined:
		return p.Code
	case SessionStarted:
		return p.Code
	case StateChanged:
		return p.Code
	case GameOver:
		return p.Code
	case ParticipantDisconnected:
		return p.Code
	case ActionRejected:
		return p.Code
	}
	return ""
}

// RoomCreated is sent to the creator once the room exists.
type RoomCreated struct {
	Code     string           `json:"code"`
	GameKind session.Kind     `json:"gameKind"`
	Seat0    room.Participant `json:"seat0"`
}

// ParticipantJoined is sent to the room when a seat is filled.
type ParticipantJoined struct {
	Code         string             `json:"code"`
	GameKind     session.Kind       `json:"gameKind"`
	Participants []room.Participant `json:"participants"`
}

// SessionStarted follows ParticipantJoined when the second seat is filled.
type SessionStarted struct {
	Code         string             `json:"code"`
	GameKind     session.Kind       `json:"gameKind"`
	Participants []room.Participant `json:"participants"`
	InitialState session.State      `json:"initialState"`
}

// RollDetail describes the roll that produced a race state change.
type RollDetail struct {
	Seat      int  `json:"seat"`
	Value     int  `json:"value"`
	From      int  `json:"from"`
	To        int  `json:"to"`
	Entered   bool `json:"entered"`
	ExtraTurn bool `json:"extraTurn"`
}

// StateChanged carries the snapshot after a non-terminal move.
type StateChanged struct {
	Code     string        `json:"code"`
	NewState session.State `json:"newState"`
	Roll     *RollDetail   `json:"roll,omitempty"`
}

// GameOver carries the final snapshot. Winner is the winning display name or
// DrawWinner.
type GameOver struct {
	Code       string        `json:"code"`
	Winner     string        `json:"winner"`
	FinalState session.State `json:"finalState"`
}

// ParticipantDisconnected tells the remaining seat the room went inactive.
type ParticipantDisconnected struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// ActionRejected is sent to the originating connection only.
type ActionRejected struct {
	Reason  Reason `json:"reasonCode"`
	Action  string `json:"action"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Rejected builds an ActionRejected notification for err. Only the reason
// code and its fixed message reach the client.
func Rejected(action, code string, err error) Notification {
	reason := ReasonFor(err)
	return Notification{
		Type: TypeActionRejected,
		Payload: ActionRejected{
			Reason:  reason,
			Action:  action,
			Code:    code,
			Message: reason.Message(),
		},
	}
}
