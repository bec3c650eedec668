package session

import (
	"github.com/cory-johannsen/diceraja/internal/game/grid"
)

// TrackState is the wire form of one race track.
type TrackState struct {
	Position   int  `json:"position" yaml:"position"`
	HasEntered bool `json:"hasEntered" yaml:"hasEntered"`
}

// State is an immutable snapshot of a session, shared by notifications and
// the persistence mirror.
type State struct {
	Kind        Kind   `json:"gameKind" yaml:"gameKind"`
	Status      string `json:"status" yaml:"status"`
	CurrentTurn int    `json:"currentTurn" yaml:"currentTurn"`
	Winner      *int   `json:"winner" yaml:"winner"`
	Draw        bool   `json:"draw,omitempty" yaml:"draw,omitempty"`

	// Grid only. A nil entry is an empty cell.
	Cells []*int `json:"cells,omitempty" yaml:"cells,omitempty"`

	// Race only.
	Tracks       []TrackState `json:"tracks,omitempty" yaml:"tracks,omitempty"`
	LastRoll     *int         `json:"lastRoll,omitempty" yaml:"lastRoll,omitempty"`
	LastRollSeat *int         `json:"lastRollSeat,omitempty" yaml:"lastRollSeat,omitempty"`
}

func intPtr(v int) *int { return &v }

// State returns a snapshot of the session.
func (s *Session) State() State {
	out := s.Outcome()
	st := State{
		Kind:        s.kind,
		Status:      "in_progress",
		CurrentTurn: s.CurrentTurn(),
		Draw:        out.Draw,
	}
	switch {
	case out.Draw:
		st.Status = "draw"
	case out.Over:
		st.Status = "won"
		st.Winner = intPtr(out.Winner)
	}

	switch s.kind {
	case Grid:
		cells := s.grid.Cells()
		st.Cells = make([]*int, len(cells))
		for i, c := range cells {
			if c != grid.Empty {
				st.Cells[i] = intPtr(c)
			}
		}
	case Race:
		tracks := s.race.Tracks()
		st.Tracks = make([]TrackState, len(tracks))
		for i, tr := range tracks {
			st.Tracks[i] = TrackState{Position: tr.Position, HasEntered: tr.HasEntered}
		}
		if v, seat, ok := s.race.LastRoll(); ok {
			st.LastRoll = intPtr(v)
			st.LastRollSeat = intPtr(seat)
		}
	}
	return st
}
