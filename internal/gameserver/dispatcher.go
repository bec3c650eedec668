package gameserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceraja/internal/game/room"
	"github.com/cory-johannsen/diceraja/internal/game/session"
	"github.com/cory-johannsen/diceraja/internal/mirror"
	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("dispatcher stopped")

// DefaultQueueSize is the inbound action buffer used by NewDispatcher.
const DefaultQueueSize = 256

// Delivery addresses one notification to a set of connections.
type Delivery struct {
	To           []string
	Notification protocol.Notification
}

// Outcome is the result of applying one action. A rejected outcome carries
// Err and a single actionRejected delivery to the sender; nothing was
// mutated.
type Outcome struct {
	Action     string
	Code       string
	Deliveries []Delivery
	Records    []mirror.Record
	Err        error
}

// Rejected reports whether the action was refused.
func (o Outcome) Rejected() bool {
	return o.Err != nil
}

// Reason returns the wire reason of a rejected outcome, or "".
func (o Outcome) Reason() protocol.Reason {
	if o.Err == nil {
		return ""
	}
	return protocol.ReasonFor(o.Err)
}

// Recorder accepts mirror records without blocking.
type Recorder interface {
	Enqueue(rec mirror.Record) bool
}

type request struct {
	action protocol.Action
	reply  chan Outcome
}

// Dispatcher is the single writer of the room registry. Every action passes
// through one goroutine (Run), so actions are applied strictly in arrival
// order.
type Dispatcher struct {
	registry *room.Registry
	hub      *Hub
	recorder Recorder
	logger   *zap.Logger
	queue    chan request
	done     chan struct{}
}

// NewDispatcher wires a dispatcher. recorder may be nil to disable mirroring.
//
// Precondition: registry, hub and logger must be non-nil.
func NewDispatcher(registry *room.Registry, hub *Hub, recorder Recorder, logger *zap.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		registry: registry,
		hub:      hub,
		recorder: recorder,
		logger:   logger,
		queue:    make(chan request, queueSize),
		done:     make(chan struct{}),
	}
}

// Run applies submitted actions until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.queue:
			req.reply <- d.Apply(req.action)
		}
	}
}

// Submit queues a and waits until it has been applied.
//
// Postcondition: returns ErrStopped if Run is not (or no longer) consuming,
// or ctx.Err() if ctx ends first.
func (d *Dispatcher) Submit(ctx context.Context, a protocol.Action) (Outcome, error) {
	req := request{action: a, reply: make(chan Outcome, 1)}
	select {
	case d.queue <- req:
	case <-d.done:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-d.done:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Apply dispatches a, publishes its notifications and enqueues its mirror
// records. It must only be called from the goroutine that owns the registry.
func (d *Dispatcher) Apply(a protocol.Action) Outcome {
	out := d.Dispatch(a)

	fields := []zap.Field{
		zap.String("action", out.Action),
		zap.String("conn", a.Connection()),
		zap.String("code", out.Code),
	}
	if out.Rejected() {
		d.logger.Info("action rejected", append(fields,
			zap.String("reason", string(out.Reason())),
			zap.Error(out.Err),
		)...)
	} else {
		d.logger.Debug("action applied", append(fields, zap.Int("notifications", len(out.Deliveries)))...)
		if opensOrClosesRooms(out) {
			d.logger.Info("room table changed",
				zap.String("action", out.Action),
				zap.Int("rooms", d.registry.Len()),
				zap.Int("active_rooms", d.registry.ActiveLen()),
			)
		}
	}

	for _, dl := range out.Deliveries {
		d.hub.Publish(dl.To, dl.Notification)
	}
	if d.recorder != nil {
		for _, rec := range out.Records {
			d.recorder.Enqueue(rec)
		}
	}
	return out
}

// opensOrClosesRooms reports whether an applied outcome changed the number of
// active rooms.
func opensOrClosesRooms(out Outcome) bool {
	switch out.Action {
	case protocol.ActionCreateRoom:
		return true
	case protocol.ActionDisconnect:
		return len(out.Records) > 0
	}
	return false
}

// Dispatch applies a to the registry and returns the resulting
// notifications and mirror records. It performs no I/O.
//
// Postcondition: if the outcome is rejected, no room or session changed.
func (d *Dispatcher) Dispatch(a protocol.Action) Outcome {
	switch act := a.(type) {
	case protocol.CreateRoom:
		return d.createRoom(act)
	case protocol.JoinRoom:
		return d.joinRoom(act)
	case protocol.PlaceMark:
		return d.placeMark(act)
	case protocol.RollDice:
		return d.rollDice(act)
	case protocol.Disconnect:
		return d.disconnect(act)
	}
	return reject(a.Name(), a.Connection(), "", fmt.Errorf("%w: unsupported action %T", protocol.ErrMalformed, a))
}

func reject(action, connID, code string, err error) Outcome {
	return Outcome{
		Action: action,
		Code:   code,
		Err:    err,
		Deliveries: []Delivery{{
			To:           []string{connID},
			Notification: protocol.Rejected(action, code, err),
		}},
	}
}

func (d *Dispatcher) createRoom(a protocol.CreateRoom) Outcome {
	name, err := protocol.CheckDisplayName(a.DisplayName)
	if err != nil {
		return reject(a.Name(), a.ConnID, "", err)
	}
	kind, err := session.ParseKind(a.GameKind)
	if err != nil {
		return reject(a.Name(), a.ConnID, "", err)
	}
	rm, err := d.registry.Create(kind, name, a.ConnID)
	if err != nil {
		return reject(a.Name(), a.ConnID, "", err)
	}
	rm.Participants[0].UserID = a.UserID

	return Outcome{
		Action: a.Name(),
		Code:   rm.Code,
		Deliveries: []Delivery{{
			To: []string{a.ConnID},
			Notification: protocol.Notification{
				Type: protocol.TypeRoomCreated,
				Payload: protocol.RoomCreated{
					Code:     rm.Code,
					GameKind: rm.Kind,
					Seat0:    rm.Participants[0],
				},
			},
		}},
		Records: []mirror.Record{mirror.FromRoom(rm)},
	}
}

func (d *Dispatcher) joinRoom(a protocol.JoinRoom) Outcome {
	name, err := protocol.CheckDisplayName(a.DisplayName)
	if err != nil {
		return reject(a.Name(), a.ConnID, a.Code, err)
	}
	rm, err := d.registry.Join(a.Code, name, a.ConnID)
	if err != nil {
		return reject(a.Name(), a.ConnID, a.Code, err)
	}
	rm.Participants[len(rm.Participants)-1].UserID = a.UserID

	to := rm.ConnectionIDs()
	participants := rm.ParticipantList()
	out := Outcome{
		Action: a.Name(),
		Code:   rm.Code,
		Deliveries: []Delivery{{
			To: to,
			Notification: protocol.Notification{
				Type: protocol.TypeParticipantJoined,
				Payload: protocol.ParticipantJoined{
					Code:         rm.Code,
					GameKind:     rm.Kind,
					Participants: participants,
				},
			},
		}},
	}
	if st := rm.State(); st != nil {
		out.Deliveries = append(out.Deliveries, Delivery{
			To: to,
			Notification: protocol.Notification{
				Type: protocol.TypeSessionStarted,
				Payload: protocol.SessionStarted{
					Code:         rm.Code,
					GameKind:     rm.Kind,
					Participants: participants,
					InitialState: *st,
				},
			},
		})
	}
	out.Records = []mirror.Record{mirror.FromRoom(rm)}
	return out
}

// seated resolves the room and the sender's seat and validates the turn.
func (d *Dispatcher) seated(code, connID string) (*room.Room, int, error) {
	rm, err := d.registry.Lookup(code)
	if err != nil {
		return nil, session.NoSeat, err
	}
	seat := rm.SeatOf(connID)
	if err := session.CheckTurn(rm.Active, rm.Session, seat); err != nil {
		return nil, seat, fmt.Errorf("room %s: %w", code, err)
	}
	return rm, seat, nil
}

func (d *Dispatcher) placeMark(a protocol.PlaceMark) Outcome {
	rm, seat, err := d.seated(a.Code, a.ConnID)
	if err != nil {
		return reject(a.Name(), a.ConnID, a.Code, err)
	}
	if err := rm.Session.PlaceMark(seat, a.Cell); err != nil {
		return reject(a.Name(), a.ConnID, a.Code, fmt.Errorf("room %s cell %d: %w", a.Code, a.Cell, err))
	}
	d.registry.Touch(rm)
	return d.moved(a.Name(), rm, nil)
}

func (d *Dispatcher) rollDice(a protocol.RollDice) Outcome {
	rm, seat, err := d.seated(a.Code, a.ConnID)
	if err != nil {
		return reject(a.Name(), a.ConnID, a.Code, err)
	}
	roll, err := rm.Session.RollDice(seat)
	if err != nil {
		return reject(a.Name(), a.ConnID, a.Code, fmt.Errorf("room %s: %w", a.Code, err))
	}
	d.registry.Touch(rm)
	return d.moved(a.Name(), rm, &protocol.RollDetail{
		Seat:      roll.Seat,
		Value:     roll.Value,
		From:      roll.From,
		To:        roll.To,
		Entered:   roll.Entered,
		ExtraTurn: roll.ExtraTurn,
	})
}

// moved builds the notification for a successful move: gameOver when the
// move ended the game, stateChanged otherwise.
func (d *Dispatcher) moved(action string, rm *room.Room, roll *protocol.RollDetail) Outcome {
	st := rm.Session.State()
	var n protocol.Notification
	if res := rm.Session.Outcome(); res.Over {
		winner := protocol.DrawWinner
		if !res.Draw {
			winner = rm.NameOf(res.Winner)
		}
		n = protocol.Notification{
			Type:    protocol.TypeGameOver,
			Payload: protocol.GameOver{Code: rm.Code, Winner: winner, FinalState: st},
		}
	} else {
		n = protocol.Notification{
			Type:    protocol.TypeStateChanged,
			Payload: protocol.StateChanged{Code: rm.Code, NewState: st, Roll: roll},
		}
	}
	return Outcome{
		Action:     action,
		Code:       rm.Code,
		Deliveries: []Delivery{{To: rm.ConnectionIDs(), Notification: n}},
		Records:    []mirror.Record{mirror.FromRoom(rm)},
	}
}

func (d *Dispatcher) disconnect(a protocol.Disconnect) Outcome {
	out := Outcome{Action: a.Name()}
	for _, rm := range d.registry.RemoveByConnection(a.ConnID) {
		name := rm.NameOf(rm.SeatOf(a.ConnID))
		var others []string
		for _, id := range rm.ConnectionIDs() {
			if id != a.ConnID {
				others = append(others, id)
			}
		}
		if len(others) > 0 {
			out.Deliveries = append(out.Deliveries, Delivery{
				To: others,
				Notification: protocol.Notification{
					Type:    protocol.TypeParticipantDisconnected,
					Payload: protocol.ParticipantDisconnected{Code: rm.Code, DisplayName: name},
				},
			})
		}
		out.Records = append(out.Records, mirror.FromRoom(rm))
		if out.Code == "" {
			out.Code = rm.Code
		}
	}
	return out
}
