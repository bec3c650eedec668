package room

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cory-johannsen/diceraja/internal/game/dice"
	"github.com/cory-johannsen/diceraja/internal/game/session"
)

// Code space: four digits without a leading zero.
const (
	codeMin  = 1000
	codeSpan = 9000
)

// DefaultCodeAttempts bounds code generation retries on collision.
const DefaultCodeAttempts = 64

// Registry errors.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room full")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// Registry is the process-wide table of rooms.
//
// Registry is NOT safe for concurrent use: it is owned by a single writer
// (the dispatcher goroutine), which serializes every mutation.
type Registry struct {
	rooms    map[string]*Room
	src      dice.Source
	die      dice.Die
	attempts int
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithCodeAttempts sets the collision retry bound.
func WithCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithClock overrides the time source for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry. codes draws room codes; die rolls
// for race sessions.
//
// Precondition: codes and die must be non-nil.
func NewRegistry(codes dice.Source, die dice.Die, opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		src:      codes,
		die:      die,
		attempts: DefaultCodeAttempts,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// newCode draws a code not present in the table. Codes of inactive rooms
// stay in the table, so they are never handed out again.
func (r *Registry) newCode() (string, error) {
	for i := 0; i < r.attempts; i++ {
		code := strconv.Itoa(codeMin + r.src.Intn(codeSpan))
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts (%d rooms)", ErrCodeSpaceExhausted, r.attempts, len(r.rooms))
}

// Create registers a new waiting room with the creator at seat 0.
//
// Precondition: kind must be valid; connID must be non-empty.
// Postcondition: the returned room is active, has one participant and no session.
func (r *Registry) Create(kind session.Kind, creatorName, connID string) (*Room, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", session.ErrUnknownKind, string(kind))
	}
	code, err := r.newCode()
	if err != nil {
		return nil, err
	}
	now := r.now()
	rm := &Room{
		Code: code,
		Kind: kind,
		Participants: []Participant{
			{ConnectionID: connID, DisplayName: creatorName, Seat: 0},
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.rooms[code] = rm
	return rm, nil
}

// Join seats connID in the room identified by code. Filling the second seat
// starts the session.
//
// Postcondition: on error the room is unchanged.
func (r *Registry) Join(code, name, connID string) (*Room, error) {
	rm, ok := r.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, code)
	}
	if !rm.Active {
		return nil, fmt.Errorf("%w: %q", session.ErrRoomInactive, code)
	}
	if rm.Full() {
		return nil, fmt.Errorf("%w: %q", ErrRoomFull, code)
	}

	seat := len(rm.Participants)
	var sess *session.Session
	if seat+1 == MaxSeats {
		s, err := session.New(rm.Kind, r.die)
		if err != nil {
			return nil, fmt.Errorf("starting session in %q: %w", code, err)
		}
		sess = s
	}

	rm.Participants = append(rm.Participants, Participant{
		ConnectionID: connID,
		DisplayName:  name,
		Seat:         seat,
	})
	rm.Session = sess
	rm.UpdatedAt = r.now()
	return rm, nil
}

// Lookup returns the room for code, active or not.
func (r *Registry) Lookup(code string) (*Room, error) {
	rm, ok := r.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, code)
	}
	return rm, nil
}

// Touch bumps the room's UpdatedAt after a session mutation.
func (r *Registry) Touch(rm *Room) {
	rm.UpdatedAt = r.now()
}

// RemoveByConnection marks every active room seating connID inactive and
// returns them. Seats are never freed or reassigned.
//
// Postcondition: every returned room has Active == false.
func (r *Registry) RemoveByConnection(connID string) []*Room {
	var affected []*Room
	for _, rm := range r.rooms {
		if !rm.Active || rm.SeatOf(connID) == session.NoSeat {
			continue
		}
		rm.Active = false
		rm.UpdatedAt = r.now()
		affected = append(affected, rm)
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].Code < affected[j].Code })
	return affected
}

// Len returns the number of rooms known to the process.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// ActiveLen returns the number of active rooms.
func (r *Registry) ActiveLen() int {
	n := 0
	for _, rm := range r.rooms {
		if rm.Active {
			n++
		}
	}
	return n
}
