package telnet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// ErrUsage is returned for a line that is not a valid command.
var ErrUsage = errors.New("usage")

// Command is a parsed input line. Exactly one of Action, Login, Help or
// Quit is set.
type Command struct {
	Action protocol.Action
	Login  string
	Help   bool
	Quit   bool
}

// HelpText lists the accepted commands.
var HelpText = []string{
	"Commands:",
	"  create <grid|race> <name>   open a room and take seat 0",
	"  join <code> <name>          take the free seat of a room",
	"  place <code> <cell>         mark a grid cell (0-8)",
	"  roll <code>                 roll the die in a race",
	"  login <token>               identify with a bearer token",
	"  help                        show this list",
	"  quit                        leave",
}

// ParseCommand turns one input line from connID into a Command. Names may
// contain spaces.
//
// Postcondition: returns an error wrapping ErrUsage for unknown or
// incomplete commands; an empty line yields the zero Command.
func ParseCommand(connID, line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "help", "?":
		return Command{Help: true}, nil
	case "quit", "exit":
		return Command{Quit: true}, nil
	case "login":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: login <token>", ErrUsage)
		}
		return Command{Login: args[0]}, nil
	case "create":
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: create <grid|race> <name>", ErrUsage)
		}
		return Command{Action: protocol.CreateRoom{
			ConnID:      connID,
			GameKind:    args[0],
			DisplayName: strings.Join(args[1:], " "),
		}}, nil
	case "join":
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: join <code> <name>", ErrUsage)
		}
		return Command{Action: protocol.JoinRoom{
			ConnID:      connID,
			Code:        args[0],
			DisplayName: strings.Join(args[1:], " "),
		}}, nil
	case "place", "mark":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: place <code> <cell>", ErrUsage)
		}
		cell, err := strconv.Atoi(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: cell must be a number, got %q", ErrUsage, args[1])
		}
		return Command{Action: protocol.PlaceMark{ConnID: connID, Code: args[0], Cell: cell}}, nil
	case "roll":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: roll <code>", ErrUsage)
		}
		return Command{Action: protocol.RollDice{ConnID: connID, Code: args[0]}}, nil
	}
	return Command{}, fmt.Errorf("%w: unknown command %q, type help", ErrUsage, verb)
}

// withUser stamps userID on the actions that seat a participant.
func withUser(a protocol.Action, userID string) protocol.Action {
	switch act := a.(type) {
	case protocol.CreateRoom:
		act.UserID = userID
		return act
	case protocol.JoinRoom:
		act.UserID = userID
		return act
	}
	return a
}
