package telnet

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/diceraja/internal/game/race"
	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// marks are the grid symbols of seat 0 and seat 1.
var marks = [2]string{"X", "O"}

// trackWidth is the number of characters in a rendered race track.
const trackWidth = 20

// Renderer formats notifications as Telnet text. It remembers the
// participants of each room it has seen so moves can be attributed by name.
// A Renderer belongs to one connection and is not safe for concurrent use.
type Renderer struct {
	names map[string][]string
}

// NewRenderer creates an empty Renderer.
func NewRenderer() *Renderer {
	return &Renderer{names: make(map[string][]string)}
}

func (r *Renderer) name(code string, seat int) string {
	if names := r.names[code]; seat >= 0 && seat < len(names) && names[seat] != "" {
		return names[seat]
	}
	return fmt.Sprintf("seat %d", seat)
}

func (r *Renderer) remember(code string, participants []string) {
	r.names[code] = participants
}

// Render returns the lines for n, without line terminators.
func (r *Renderer) Render(n protocol.Notification) []string {
	switch p := n.Payload.(type) {
	case protocol.RoomCreated:
		r.remember(p.Code, []string{p.Seat0.DisplayName})
		wait := fmt.Sprintf("Waiting for an opponent to join %s.", p.Code)
		if p.GameKind == session.Grid {
			wait = fmt.Sprintf("You are %s. %s", marks[0], wait)
		}
		return []string{Colorize(Green, fmt.Sprintf("Room %s created (%s).", p.Code, p.GameKind)), wait}
	case protocol.ParticipantJoined:
		names := make([]string, len(p.Participants))
		for i, pt := range p.Participants {
			names[i] = pt.DisplayName
		}
		r.remember(p.Code, names)
		last := p.Participants[len(p.Participants)-1]
		return []string{fmt.Sprintf("%s joined room %s.", last.DisplayName, p.Code)}
	case protocol.SessionStarted:
		headline := fmt.Sprintf("Game on in room %s: %s vs %s.", p.Code, r.name(p.Code, 0), r.name(p.Code, 1))
		if p.GameKind == session.Grid {
			headline = fmt.Sprintf("Game on in room %s: %s (%s) vs %s (%s).",
				p.Code, r.name(p.Code, 0), marks[0], r.name(p.Code, 1), marks[1])
		}
		lines := []string{Colorize(Bold, headline)}
		lines = append(lines, r.state(p.Code, p.InitialState)...)
		return append(lines, r.turn(p.Code, p.InitialState))
	case protocol.StateChanged:
		var lines []string
		if p.Roll != nil {
			lines = append(lines, r.roll(p.Code, *p.Roll))
		}
		lines = append(lines, r.state(p.Code, p.NewState)...)
		return append(lines, r.turn(p.Code, p.NewState))
	case protocol.GameOver:
		lines := r.state(p.Code, p.FinalState)
		if p.Winner == protocol.DrawWinner {
			return append(lines, Colorize(Bold, fmt.Sprintf("Room %s: draw.", p.Code)))
		}
		return append(lines, Colorize(Green, fmt.Sprintf("Room %s: %s wins!", p.Code, p.Winner)))
	case protocol.ParticipantDisconnected:
		return []string{Colorize(Dim, fmt.Sprintf("%s left room %s. The room is closed.", p.DisplayName, p.Code))}
	case protocol.ActionRejected:
		msg := fmt.Sprintf("Rejected %s (%s)", p.Action, p.Reason)
		if p.Code != "" {
			msg += " in room " + p.Code
		}
		msg += "."
		if p.Message != "" {
			msg += " " + p.Message
		}
		return []string{Colorize(Red, msg)}
	}
	return []string{fmt.Sprintf("[%s]", n.Type)}
}

func (r *Renderer) turn(code string, st session.State) string {
	return fmt.Sprintf("%s to move.", r.name(code, st.CurrentTurn))
}

func (r *Renderer) roll(code string, d protocol.RollDetail) string {
	who := r.name(code, d.Seat)
	var line string
	switch {
	case d.Entered:
		line = fmt.Sprintf("%s rolled %d and entered the track.", who, d.Value)
	case d.From == d.To && d.To == 0:
		line = fmt.Sprintf("%s rolled %d but needs a %d to enter.", who, d.Value, race.EntryRoll)
	default:
		line = fmt.Sprintf("%s rolled %d: %d -> %d.", who, d.Value, d.From, d.To)
	}
	if d.ExtraTurn {
		line += " Roll again."
	}
	return line
}

func (r *Renderer) state(code string, st session.State) []string {
	if st.Kind == session.Race {
		return r.tracks(code, st.Tracks)
	}
	return board(st.Cells)
}

// board draws the 3x3 grid. Empty cells show their index.
func board(cells []*int) []string {
	const sep = "---+---+---"
	var lines []string
	for row := 0; row < 3; row++ {
		if row > 0 {
			lines = append(lines, sep)
		}
		parts := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			switch {
			case i >= len(cells) || cells[i] == nil:
				parts[col] = Colorize(Dim, fmt.Sprint(i))
			case *cells[i] == 0:
				parts[col] = Colorize(Red, marks[0])
			default:
				parts[col] = Colorize(Cyan, marks[1])
			}
		}
		lines = append(lines, " "+strings.Join(parts, " | ")+" ")
	}
	return lines
}

func (r *Renderer) tracks(code string, tracks []session.TrackState) []string {
	lines := make([]string, 0, len(tracks))
	for seat, tr := range tracks {
		filled := tr.Position * trackWidth / race.Finish
		bar := strings.Repeat("#", filled) + strings.Repeat(".", trackWidth-filled)
		pos := fmt.Sprintf("%3d", tr.Position)
		if !tr.HasEntered {
			pos = "off"
		}
		lines = append(lines, fmt.Sprintf("  %-12s [%s] %s", r.name(code, seat), bar, pos))
	}
	return lines
}
