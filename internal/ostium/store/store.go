package store

import (
	"context"
	"errors"
)

// ErrNotFound marks an expected missing record (unregistered credential,
// absent reservation, unknown activity). It is never recorded as a fault;
// any other store error is treated as transient.
var ErrNotFound = errors.New("record not found")

// Backend exposes the health surface of the remote store for the
// connectivity resilience manager. Reconnect is a blocking, bounded
// re-dial/re-authentication sequence; the caller is responsible for
// feeding the watchdog while it runs.
type Backend interface {
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
}
