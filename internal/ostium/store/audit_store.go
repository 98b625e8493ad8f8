package store

import (
	"context"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

// AuditStore persists decision outcomes and faults remotely. Appends are
// best-effort from the controller's perspective; a failed audit write must
// never block or reverse a decision.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec types.AuditRecord) error
	AppendFault(ctx context.Context, rec types.FaultRecord) error

	// BumpFaultCounter increments the per-type occurrence counter and
	// returns the new value. The increment is a read-modify-write, not
	// atomic; safe only under the single-writer-per-door assumption, and
	// eventually consistent with respect to export snapshots.
	BumpFaultCounter(ctx context.Context, faultType string) (int64, error)
}
