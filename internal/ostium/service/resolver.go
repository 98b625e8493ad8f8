package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

// ResolveStatus classifies the outcome of the lookup chain.
type ResolveStatus int

const (
	// ResolveOK: full chain succeeded; Identity, Reservation and Activity
	// are populated and the decision engine takes over.
	ResolveOK ResolveStatus = iota

	// ResolveBypass: a reserved identity with unconditional access; no
	// further lookups were made.
	ResolveBypass

	// ResolveUnregistered: the identifier is not in the credential index.
	// Expected outcome, never a fault.
	ResolveUnregistered

	// ResolveNoReservation: the identity exists but holds no reservation
	// entries. Expected outcome; produces a denial verdict.
	ResolveNoReservation

	// ResolveFault: a transient failure ended the chain. FaultType and
	// Detail carry what to record; the cycle ends without a verdict.
	ResolveFault
)

// Resolution is the outcome of one lookup chain run.
type Resolution struct {
	Status      ResolveStatus
	Identity    string
	DisplayName string
	ActivityRef string
	Reservation types.ReservationRecord
	Activity    types.ActivityWindow
	FaultType   string
	Detail      string
}

// Resolver performs the ordered remote lookups for one presented
// credential: identifier → identity → profile → reservation → activity.
// Each step short-circuits on the first non-success. The resolver makes no
// policy decisions beyond the bypass check; it only classifies.
type Resolver struct {
	dir    store.DirectoryStore
	bypass map[string]struct{}
	logger *zap.Logger
}

func NewResolver(dir store.DirectoryStore, bypassIdentities []string, logger *zap.Logger) *Resolver {
	bypass := make(map[string]struct{}, len(bypassIdentities))
	for _, id := range bypassIdentities {
		if id != "" {
			bypass[id] = struct{}{}
		}
	}
	return &Resolver{
		dir:    dir,
		bypass: bypass,
		logger: logger.With(zap.String("mod", "resolver")),
	}
}

func (r *Resolver) Resolve(ctx context.Context, identifier string) Resolution {
	identity, err := r.dir.ResolveCredential(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return Resolution{Status: ResolveUnregistered}
	}
	if err != nil {
		return fault(FaultResolveIdentity, err)
	}

	if _, ok := r.bypass[identity]; ok {
		return Resolution{Status: ResolveBypass, Identity: identity}
	}

	name, err := r.dir.DisplayName(ctx, identity)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		res := fault(FaultResolveProfile, err)
		res.Identity = identity
		return res
	}
	// A missing profile is tolerated: the name is display-only.

	entries, err := r.dir.Reservations(ctx, identity)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(entries) == 0) {
		return Resolution{Status: ResolveNoReservation, Identity: identity, DisplayName: name}
	}
	if err != nil {
		res := fault(FaultResolveReservation, err)
		res.Identity = identity
		return res
	}

	// Exactly one entry is expected; with more, the first by reference
	// order wins deterministically.
	entry := entries[0]

	raw, err := r.dir.Activity(ctx, entry.ActivityRef)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		res := fault(FaultResolveActivity, err)
		res.Identity = identity
		return res
	}
	// A dangling activity reference resolves to an empty row, whose
	// schedule fails to parse below; the engine denies it fail-safe.

	start, startErr := types.ParseTimeOfDay(raw.StartTime)
	end, endErr := types.ParseTimeOfDay(raw.EndTime)
	if startErr != nil || endErr != nil {
		r.logger.Warn("unparseable activity schedule",
			zap.String("activity_ref", entry.ActivityRef),
			zap.String("start_time", raw.StartTime),
			zap.String("end_time", raw.EndTime),
		)
	}

	return Resolution{
		Status:      ResolveOK,
		Identity:    identity,
		DisplayName: name,
		ActivityRef: entry.ActivityRef,
		Reservation: entry.Record,
		Activity: types.ActivityWindow{
			Ref:        entry.ActivityRef,
			Kind:       types.ActivityKind(raw.Kind),
			Start:      start,
			End:        end,
			ScheduleOK: startErr == nil && endErr == nil,
		},
	}
}

func fault(faultType string, err error) Resolution {
	return Resolution{Status: ResolveFault, FaultType: faultType, Detail: err.Error()}
}
