package gameserver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/gameserver"
	"github.com/cory-johannsen/diceraja/internal/protocol"
)

type scenario struct {
	Name  string `yaml:"name"`
	Codes []int  `yaml:"codes"`
	Faces []int  `yaml:"faces"`
	Steps []step `yaml:"steps"`
}

type step struct {
	Conn   string      `yaml:"conn"`
	Action string      `yaml:"action"`
	Kind   string      `yaml:"kind"`
	Name   string      `yaml:"name"`
	Code   string      `yaml:"code"`
	Cell   int         `yaml:"cell"`
	Expect expectation `yaml:"expect"`
}

type expectation struct {
	Code          string      `yaml:"code"`
	Notifications []string    `yaml:"notifications"`
	Reason        string      `yaml:"reason"`
	CurrentTurn   *int        `yaml:"currentTurn"`
	Cells         map[int]int `yaml:"cells"`
	Positions     []int       `yaml:"positions"`
	LastRoll      *int        `yaml:"lastRoll"`
	Winner        *int        `yaml:"winner"`
	WinnerName    string      `yaml:"winnerName"`
	Active        *bool       `yaml:"active"`
}

func (s step) action(t *testing.T) protocol.Action {
	t.Helper()
	switch s.Action {
	case protocol.ActionCreateRoom:
		return protocol.CreateRoom{ConnID: s.Conn, GameKind: s.Kind, DisplayName: s.Name}
	case protocol.ActionJoinRoom:
		return protocol.JoinRoom{ConnID: s.Conn, Code: s.Code, DisplayName: s.Name}
	case protocol.ActionPlaceMark:
		return protocol.PlaceMark{ConnID: s.Conn, Code: s.Code, Cell: s.Cell}
	case protocol.ActionRollDice:
		return protocol.RollDice{ConnID: s.Conn, Code: s.Code}
	case protocol.ActionDisconnect:
		return protocol.Disconnect{ConnID: s.Conn}
	}
	t.Fatalf("unknown scenario action %q", s.Action)
	return nil
}

func loadScenarios(t *testing.T) map[string]scenario {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	out := make(map[string]scenario, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		var sc scenario
		require.NoError(t, yaml.Unmarshal(data, &sc), p)
		out[filepath.Base(p)] = sc
	}
	return out
}

func TestScenarios(t *testing.T) {
	for file, sc := range loadScenarios(t) {
		t.Run(file, func(t *testing.T) {
			faces := sc.Faces
			if len(faces) == 0 {
				faces = []int{1}
			}
			reg := room.NewRegistry(dice.NewSequenceSource(sc.Codes...), dice.NewDie(dice.Faces(faces...)))
			d := gameserver.NewDispatcher(reg, gameserver.NewHub(0, zaptest.NewLogger(t)), nil, zaptest.NewLogger(t), 0)

			for i, st := range sc.Steps {
				out := d.Dispatch(st.action(t))
				checkStep(t, sc.Name, i, reg, st, out)
			}
		})
	}
}

func checkStep(t *testing.T, name string, i int, reg *room.Registry, st step, out gameserver.Outcome) {
	t.Helper()
	msg := []any{"%s: step %d (%s by %s)", name, i, st.Action, st.Conn}
	exp := st.Expect

	if exp.Reason != "" {
		require.True(t, out.Rejected(), msg...)
		assert.Equal(t, protocol.Reason(exp.Reason), out.Reason(), msg...)
		require.Len(t, out.Deliveries, 1, msg...)
		assert.Equal(t, []string{st.Conn}, out.Deliveries[0].To, msg...)
		assert.Empty(t, out.Records, msg...)
	} else {
		require.False(t, out.Rejected(), append([]any{"%s: step %d: %v"}, name, i, out.Err)...)
	}

	if exp.Notifications != nil {
		types := make([]string, 0, len(out.Deliveries))
		for _, dl := range out.Deliveries {
			types = append(types, dl.Notification.Type)
		}
		assert.Equal(t, exp.Notifications, types, msg...)
	}
	if exp.Code != "" {
		assert.Equal(t, exp.Code, out.Code, msg...)
	}

	code := out.Code
	if code == "" {
		code = st.Code
	}
	rm, err := reg.Lookup(code)
	if err != nil {
		return
	}
	if exp.Active != nil {
		assert.Equal(t, *exp.Active, rm.Active, msg...)
	}
	state := rm.State()
	if state == nil {
		return
	}
	if exp.CurrentTurn != nil {
		assert.Equal(t, *exp.CurrentTurn, state.CurrentTurn, msg...)
	}
	for cell, seat := range exp.Cells {
		require.NotNil(t, state.Cells[cell], msg...)
		assert.Equal(t, seat, *state.Cells[cell], msg...)
	}
	if exp.Positions != nil {
		got := make([]int, 0, len(state.Tracks))
		for _, tr := range state.Tracks {
			got = append(got, tr.Position)
		}
		assert.Equal(t, exp.Positions, got, msg...)
	}
	if exp.LastRoll != nil {
		require.NotNil(t, state.LastRoll, msg...)
		assert.Equal(t, *exp.LastRoll, *state.LastRoll, msg...)
	}
	if exp.Winner != nil {
		require.NotNil(t, state.Winner, msg...)
		assert.Equal(t, *exp.Winner, *state.Winner, msg...)
	}
	if exp.WinnerName != "" {
		require.NotEmpty(t, out.Deliveries, msg...)
		over, ok := out.Deliveries[0].Notification.Payload.(protocol.GameOver)
		require.True(t, ok, msg...)
		assert.Equal(t, exp.WinnerName, over.Winner, msg...)
	}
}
