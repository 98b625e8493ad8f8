package store

import (
	"context"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

// ActivityRecord is the raw activity row as stored remotely. The schedule
// strings are loosely validated wall-clock values; parsing into typed
// minutes happens at the resolver boundary, not here.
type ActivityRecord struct {
	Kind      string
	StartTime string
	EndTime   string
}

// ReservationEntry pairs an activity reference with its counter record.
type ReservationEntry struct {
	ActivityRef string
	Record      types.ReservationRecord
}

// DirectoryStore is the remote hierarchical directory the controller
// resolves credentials against. Every method is a single remote read or
// write; retries across cycles are the caller's concern.
type DirectoryStore interface {
	// ResolveCredential maps a raw credential identifier to an identity.
	ResolveCredential(ctx context.Context, identifier string) (string, error)

	// DisplayName returns the profile display name for an identity.
	DisplayName(ctx context.Context, identity string) (string, error)

	// Reservations returns the identity's reservation entries ordered by
	// activity reference. ErrNotFound when the identity has none.
	Reservations(ctx context.Context, identity string) ([]ReservationEntry, error)

	// Activity returns the raw activity row for a reference.
	Activity(ctx context.Context, ref string) (ActivityRecord, error)

	// PutReservation overwrites one reservation record. The store must
	// write the record as a single unit so a concurrent export snapshot
	// never observes a partially-written record.
	PutReservation(ctx context.Context, identity, ref string, rec types.ReservationRecord) error
}
