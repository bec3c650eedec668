package gameserver

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// DefaultOutboxSize is the per-connection notification buffer.
const DefaultOutboxSize = 64

// Outbox buffers notifications for one connection until its transport
// writes them out.
type Outbox struct {
	connID string
	events chan protocol.Notification
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for connID.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(connID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = DefaultOutboxSize
	}
	return &Outbox{
		connID: connID,
		events: make(chan protocol.Notification, bufferSize),
	}
}

// ConnectionID returns the owning connection.
func (o *Outbox) ConnectionID() string {
	return o.connID
}

// Push enqueues n without blocking.
//
// Postcondition: n is enqueued, or an error is returned if the outbox is
// closed or full.
func (o *Outbox) Push(n protocol.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.connID)
	}
	select {
	case o.events <- n:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.connID)
	}
}

// Events returns the channel the transport's writer drains. It is closed
// by Close.
func (o *Outbox) Events() <-chan protocol.Notification {
	return o.events
}

// Close closes the events channel. It is safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
