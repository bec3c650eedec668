// Package protocol defines the inbound actions, outbound notifications and
// rejection reason codes exchanged with clients, independent of transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Inbound action names.
const (
	ActionCreateRoom = "createRoom"
	ActionJoinRoom   = "joinRoom"
	ActionPlaceMark  = "placeMark"
	ActionRollDice   = "rollDice"
	ActionDisconnect = "disconnect"
)

// ErrMalformed is returned when an inbound frame cannot be decoded.
var ErrMalformed = errors.New("malformed action")

// MaxDisplayNameLength is the longest display name accepted, in characters.
const MaxDisplayNameLength = 32

// CheckDisplayName trims surrounding space from name and validates it.
//
// Postcondition: returns the trimmed name, or an error wrapping ErrMalformed
// for an empty name or one longer than MaxDisplayNameLength.
func CheckDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: displayName required", ErrMalformed)
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayNameLength {
		return "", fmt.Errorf("%w: displayName has %d characters, limit is %d", ErrMalformed, n, MaxDisplayNameLength)
	}
	return name, nil
}

// Action is one inbound request from a connection.
type Action interface {
	// Name returns the wire name of the action.
	Name() string
	// Connection returns the originating connection id.
	Connection() string
}

// CreateRoom asks for a new room of GameKind with the sender at seat 0.
type CreateRoom struct {
	ConnID      string
	GameKind    string
	DisplayName string
	UserID      string
}

// JoinRoom asks to take the free seat of Code.
type JoinRoom struct {
	ConnID      string
	Code        string
	DisplayName string
	UserID      string
}

// PlaceMark claims Cell in a Grid room.
type PlaceMark struct {
	ConnID string
	Code   string
	Cell   int
}

// RollDice rolls for the sender in a Race room.
type RollDice struct {
	ConnID string
	Code   string
}

// Disconnect reports that the transport lost the connection.
type Disconnect struct {
	ConnID string
}

func (a CreateRoom) Name() string { return ActionCreateRoom }
func (a JoinRoom) Name() string   { return ActionJoinRoom }
func (a PlaceMark) Name() string  { return ActionPlaceMark }
func (a RollDice) Name() string   { return ActionRollDice }
func (a Disconnect) Name() string { return ActionDisconnect }

func (a CreateRoom) Connection() string { return a.ConnID }
func (a JoinRoom) Connection() string   { return a.ConnID }
func (a PlaceMark) Connection() string  { return a.ConnID }
func (a RollDice) Connection() string   { return a.ConnID }
func (a Disconnect) Connection() string { return a.ConnID }

// Envelope is the JSON frame used in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type createRoomPayload struct {
	GameKind    string `json:"gameKind"`
	GameType    string `json:"gameType"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

type joinRoomPayload struct {
	Code        string `json:"code"`
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

type placeMarkPayload struct {
	Code      string `json:"code"`
	RoomID    string `json:"roomId"`
	CellIndex *int   `json:"cellIndex"`
}

type rollDicePayload struct {
	Code   string `json:"code"`
	RoomID string `json:"roomId"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// DecodeAction parses a JSON envelope received on connID. userID is the
// authenticated identity of the connection, if any. Field names of the
// legacy socket client (gameType, username, roomId) are accepted.
//
// Postcondition: returns an error wrapping ErrMalformed for anything that is
// not a well-formed createRoom, joinRoom, placeMark or rollDice frame.
func DecodeAction(connID, userID string, data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch env.Type {
	case ActionCreateRoom:
		var p createRoomPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		name, err := CheckDisplayName(firstNonEmpty(p.DisplayName, p.Username))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return CreateRoom{ConnID: connID, GameKind: firstNonEmpty(p.GameKind, p.GameType), DisplayName: name, UserID: userID}, nil
	case ActionJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		code := firstNonEmpty(p.Code, p.RoomID)
		if code == "" {
			return nil, fmt.Errorf("%w: %s: code required", ErrMalformed, env.Type)
		}
		name, err := CheckDisplayName(firstNonEmpty(p.DisplayName, p.Username))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return JoinRoom{ConnID: connID, Code: code, DisplayName: name, UserID: userID}, nil
	case ActionPlaceMark, "ticTacToeMove":
		var p placeMarkPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		code := firstNonEmpty(p.Code, p.RoomID)
		if code == "" || p.CellIndex == nil {
			return nil, fmt.Errorf("%w: %s: code and cellIndex required", ErrMalformed, env.Type)
		}
		return PlaceMark{ConnID: connID, Code: code, Cell: *p.CellIndex}, nil
	case ActionRollDice:
		var p rollDicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		code := firstNonEmpty(p.Code, p.RoomID)
		if code == "" {
			return nil, fmt.Errorf("%w: %s: code required", ErrMalformed, env.Type)
		}
		return RollDice{ConnID: connID, Code: code}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
}
