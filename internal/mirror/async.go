package mirror

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueSize is used when NewAsync is given a non-positive size.
const DefaultQueueSize = 256

// Async decouples callers from a slow Sink with a bounded queue drained by a
// single worker. Enqueue never blocks.
type Async struct {
	sink    Sink
	queue   chan Record
	timeout time.Duration
	logger  *zap.Logger
}

// NewAsync creates an Async writer. Call Run to start draining.
//
// Precondition: sink and logger must be non-nil.
func NewAsync(sink Sink, queueSize int, timeout time.Duration, logger *zap.Logger) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Async{
		sink:    sink,
		queue:   make(chan Record, queueSize),
		timeout: timeout,
		logger:  logger,
	}
}

// Enqueue queues rec for writing.
//
// Postcondition: returns false and logs a warning if the queue is full.
func (a *Async) Enqueue(rec Record) bool {
	select {
	case a.queue <- rec:
		return true
	default:
		a.logger.Warn("mirror queue full, dropping record",
			zap.String("code", rec.Code),
			zap.Int("capacity", cap(a.queue)),
		)
		return false
	}
}

// Pending returns the number of queued records.
func (a *Async) Pending() int {
	return len(a.queue)
}

// Run writes queued records until ctx is cancelled, then flushes what is
// still queued before returning.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-a.queue:
			a.write(ctx, rec)
		case <-ctx.Done():
			a.flush()
			return nil
		}
	}
}

func (a *Async) flush() {
	for {
		select {
		case rec := <-a.queue:
			a.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (a *Async) write(parent context.Context, rec Record) {
	ctx := parent
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, a.timeout)
		defer cancel()
	}
	if err := a.sink.Write(ctx, rec); err != nil {
		a.logger.Error("mirror write failed",
			zap.String("code", rec.Code),
			zap.Bool("active", rec.Active),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("mirrored room", zap.String("code", rec.Code), zap.Bool("active", rec.Active))
}
