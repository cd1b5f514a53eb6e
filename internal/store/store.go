// Package store selects and opens the event journal backend.
package store

import (
	"context"
	"io"

	"github.com/jensholdgaard/trinity/internal/event"
)

// Repositories groups the handles returned by a store driver.
type Repositories struct {
	Events event.Store
	// Closer is called to release underlying resources (e.g. DB connection).
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// CloserFunc adapts a func() error into an io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
