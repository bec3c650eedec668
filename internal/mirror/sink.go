package mirror

import (
	"context"
	"errors"
	"fmt"
)

// Sink writes one record. Implementations must tolerate repeated writes of
// the same code; the latest write wins.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Nop discards every record.
type Nop struct{}

// Write does nothing.
func (Nop) Write(context.Context, Record) error { return nil }

// Named labels a sink for error messages.
type Named struct {
	Name string
	Sink Sink
}

// Fanout writes each record to every sink in order.
type Fanout []Named

// Write attempts every sink even when an earlier one fails.
//
// Postcondition: returns the joined errors of all failed sinks, or nil.
func (f Fanout) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, n := range f {
		if err := n.Sink.Write(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}
