package mirror_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/mirror"
)

type memorySink struct {
	mu      sync.Mutex
	records []mirror.Record
	err     error
}

func (m *memorySink) Write(_ context.Context, rec mirror.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Code)
	}
	return out
}

func startedGrid(t *testing.T) *room.Room {
	t.Helper()
	reg := room.NewRegistry(dice.NewSequenceSource(3821), dice.NewDie(dice.Faces(1)))
	rm, err := reg.Create(session.Grid, "Alice", "c1")
	require.NoError(t, err)
	_, err = reg.Join(rm.Code, "Bob", "c2")
	require.NoError(t, err)
	return rm
}

func TestFromRoom_Waiting(t *testing.T) {
	reg := room.NewRegistry(dice.NewSequenceSource(3821), dice.NewDie(dice.Faces(1)))
	rm, err := reg.Create(session.Race, "Alice", "c1")
	require.NoError(t, err)

	rec := mirror.FromRoom(rm)
	assert.Equal(t, "4821", rec.Code)
	assert.Equal(t, session.Race, rec.GameKind)
	assert.True(t, rec.Active)
	assert.Nil(t, rec.State)
	assert.Nil(t, rec.Winner)
	assert.False(t, rec.Over())
	require.Len(t, rec.Participants, 1)
}

func TestFromRoom_WinResults(t *testing.T) {
	rm := startedGrid(t)
	// Alice: 0,1,2  Bob: 3,4
	for i, cell := range []int{0, 3, 1, 4, 2} {
		require.NoError(t, rm.Session.PlaceMark(i%2, cell))
	}
	rec := mirror.FromRoom(rm)
	require.NotNil(t, rec.Winner)
	assert.Equal(t, 0, *rec.Winner)
	require.True(t, rec.Over())
	assert.Equal(t, mirror.Win, rec.Results[0].Result)
	assert.Equal(t, "Alice", rec.Results[0].DisplayName)
	assert.Equal(t, mirror.Loss, rec.Results[1].Result)
}

func TestFromRoom_DrawResults(t *testing.T) {
	rm := startedGrid(t)
	for i, cell := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		require.NoError(t, rm.Session.PlaceMark(i%2, cell))
	}
	rec := mirror.FromRoom(rm)
	assert.Nil(t, rec.Winner)
	require.Len(t, rec.Results, 2)
	assert.Equal(t, mirror.Draw, rec.Results[0].Result)
	assert.Equal(t, mirror.Draw, rec.Results[1].Result)
}

func TestFanout_WritesAllAndJoinsErrors(t *testing.T) {
	good := &memorySink{}
	bad := &memorySink{err: errors.New("down")}
	f := mirror.Fanout{{Name: "bad", Sink: bad}, {Name: "good", Sink: good}}

	err := f.Write(context.Background(), mirror.Record{Code: "1234"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad: down")
	assert.Equal(t, []string{"1234"}, good.codes())
}

func TestAsync_DrainsInOrder(t *testing.T) {
	sink := &memorySink{}
	a := mirror.NewAsync(sink, 8, time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for _, c := range []string{"1000", "1001", "1002"} {
		require.True(t, a.Enqueue(mirror.Record{Code: c}))
	}
	require.Eventually(t, func() bool { return len(sink.codes()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"1000", "1001", "1002"}, sink.codes())
}

func TestAsync_FullQueueDrops(t *testing.T) {
	a := mirror.NewAsync(mirror.Nop{}, 1, 0, zaptest.NewLogger(t))
	assert.True(t, a.Enqueue(mirror.Record{Code: "1000"}))
	assert.False(t, a.Enqueue(mirror.Record{Code: "1001"}))
	assert.Equal(t, 1, a.Pending())
}

func TestAsync_FlushesOnStop(t *testing.T) {
	sink := &memorySink{}
	a := mirror.NewAsync(sink, 4, 0, zaptest.NewLogger(t))
	require.True(t, a.Enqueue(mirror.Record{Code: "1000"}))
	require.True(t, a.Enqueue(mirror.Record{Code: "1001"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
	assert.Len(t, sink.codes(), 2)
}

func TestAsync_WriteFailureIsSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("down")}
	a := mirror.NewAsync(sink, 4, 0, zaptest.NewLogger(t))
	require.True(t, a.Enqueue(mirror.Record{Code: "1000"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
	assert.Equal(t, 0, a.Pending())
}
