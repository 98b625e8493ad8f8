package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

// Fault types recorded by the controller.
const (
	FaultLinkDown           = "link_down"
	FaultBackendDown        = "backend_unreachable"
	FaultResolveIdentity    = "resolve_identity"
	FaultResolveProfile     = "resolve_profile"
	FaultResolveReservation = "resolve_reservation"
	FaultResolveActivity    = "resolve_activity"
	FaultPersistAttempt     = "persist_attempt"
)

// Journal is the on-device diagnostic log, written even when the remote
// store is unreachable.
type Journal interface {
	AppendCycle(ctx context.Context, e diag.CycleEntry) error
	AppendFault(ctx context.Context, rec types.FaultRecord) error
}

// AuditLogger persists decision outcomes and faults. Audit appends are
// best-effort: a failed write lands in the local diagnostic channel only,
// never in a recursive fault record. Fault writes are rate-limited per
// type and degrade to local-only while connectivity is unhealthy.
type AuditLogger struct {
	remote      store.AuditStore
	journal     Journal
	clock       Clock
	suppression time.Duration
	limiters    map[string]*rate.Limiter
	healthy     func() bool
	metrics     *Metrics
	logger      *zap.Logger
}

func NewAuditLogger(remote store.AuditStore, journal Journal, clock Clock, suppression time.Duration, metrics *Metrics, logger *zap.Logger) *AuditLogger {
	if suppression <= 0 {
		suppression = 30 * time.Second
	}
	return &AuditLogger{
		remote:      remote,
		journal:     journal,
		clock:       clock,
		suppression: suppression,
		limiters:    make(map[string]*rate.Limiter),
		metrics:     metrics,
		logger:      logger.With(zap.String("mod", "audit")),
	}
}

// BindHealth wires the connectivity view in after construction; the health
// manager itself records faults, so the two reference each other.
func (l *AuditLogger) BindHealth(healthy func() bool) {
	l.healthy = healthy
}

// RecordAudit appends one decision outcome to the remote audit log, keyed
// by identity and epoch. Errors are deliberately not returned — a failed
// audit write must never affect an already-communicated verdict.
func (l *AuditLogger) RecordAudit(ctx context.Context, rec types.AuditRecord) {
	if err := l.remote.AppendAudit(ctx, rec); err != nil {
		l.logger.Error("audit append failed (local only)",
			zap.String("identity", rec.Identity),
			zap.Int64("epoch", rec.Epoch),
			zap.Error(err),
		)
	}
}

// RecordFault records one fault occurrence, subject to per-type
// suppression: a repeat of the same type inside the suppression window is
// dropped after a debug log. Outside the window the fault goes to the
// local journal, and — when connectivity allows — to the remote fault log
// plus its per-type counter.
func (l *AuditLogger) RecordFault(ctx context.Context, faultType, detail string) {
	now := l.clock.Now()

	lim, ok := l.limiters[faultType]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.suppression), 1)
		l.limiters[faultType] = lim
	}
	if !lim.AllowN(now, 1) {
		l.logger.Debug("fault suppressed",
			zap.String("fault_type", faultType),
			zap.String("detail", detail),
		)
		return
	}

	l.metrics.Faults.WithLabelValues(faultType).Inc()

	rec := types.FaultRecord{
		Epoch:  now.Unix(),
		Date:   now.Format("2006-01-02"),
		Time:   now.Format("15:04:05"),
		Type:   faultType,
		Detail: detail,
	}

	if err := l.journal.AppendFault(ctx, rec); err != nil {
		l.logger.Error("journal fault write failed", zap.Error(err))
	}

	if l.healthy != nil && !l.healthy() {
		// The remote store is the thing that is broken; trying to tell it
		// so would only stack more failures.
		l.logger.Warn("fault recorded locally only",
			zap.String("fault_type", faultType),
			zap.String("detail", detail),
		)
		return
	}

	if err := l.remote.AppendFault(ctx, rec); err != nil {
		l.logger.Error("remote fault append failed",
			zap.String("fault_type", faultType),
			zap.Error(err),
		)
		return
	}
	if _, err := l.remote.BumpFaultCounter(ctx, faultType); err != nil {
		l.logger.Error("fault counter bump failed",
			zap.String("fault_type", faultType),
			zap.Error(err),
		)
	}
}
