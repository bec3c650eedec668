package gameserver

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceraja/internal/protocol"
)

// Hub routes notifications to the outboxes of live connections.
// It is safe for concurrent use: transports register and unregister from
// their own goroutines while the dispatcher publishes.
type Hub struct {
	mu         sync.RWMutex
	outboxes   map[string]*Outbox
	bufferSize int
	logger     *zap.Logger
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	return &Hub{
		outboxes:   make(map[string]*Outbox),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Register creates the outbox for connID.
//
// Postcondition: returns an error if connID is already registered.
func (h *Hub) Register(connID string) (*Outbox, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.outboxes[connID]; ok {
		return nil, fmt.Errorf("connection %s already registered", connID)
	}
	o := NewOutbox(connID, h.bufferSize)
	h.outboxes[connID] = o
	return o, nil
}

// Unregister removes and closes the outbox for connID, if any.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	o, ok := h.outboxes[connID]
	delete(h.outboxes, connID)
	h.mu.Unlock()

	if ok {
		o.Close()
	}
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outboxes)
}

// Publish pushes n to every registered connection in connIDs. Connections
// that are no longer registered are skipped; full outboxes drop n.
func (h *Hub) Publish(connIDs []string, n protocol.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range connIDs {
		o, ok := h.outboxes[id]
		if !ok {
			continue
		}
		if err := o.Push(n); err != nil {
			h.logger.Warn("dropping notification",
				zap.String("conn", id),
				zap.String("type", n.Type),
				zap.String("code", n.Code()),
				zap.Error(err),
			)
		}
	}
}
