package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/ostium/types"
	"github.com/ostium-io/ostium/internal/peripheral"
)

// Display hold times.
const (
	admitHold = 4 * time.Second
	denyHold  = 4 * time.Second
	errHold   = 3 * time.Second
)

// Dependencies wires a Controller. Everything is an interface or a
// component constructed by the caller; the controller owns no goroutines
// beyond its own loop.
type Dependencies struct {
	Reader    peripheral.Reader
	Display   peripheral.Display
	Clock     Clock
	Debounce  *Debounce
	Health    *HealthManager
	Resolver  *Resolver
	Engine    *DecisionEngine
	Escalate  *EscalationTracker
	Audit     *AuditLogger
	Directory store.DirectoryStore
	Journal   Journal
	Metrics   *Metrics
	Feed      func() // watchdog acknowledgment
	Logger    *zap.Logger
}

// Controller runs the decision loop: one physical presentation is fully
// processed — resolution, decision, persistence, audit — before the next
// is accepted. There is no overlap between cycles and no locking; all
// process-wide slots (debounce, escalation, connectivity, suppression)
// are owned here and die with the process.
type Controller struct {
	reader    peripheral.Reader
	display   peripheral.Display
	clock     Clock
	debounce  *Debounce
	health    *HealthManager
	resolver  *Resolver
	engine    *DecisionEngine
	escalate  *EscalationTracker
	audit     *AuditLogger
	directory store.DirectoryStore
	journal   Journal
	metrics   *Metrics
	feed      func()
	logger    *zap.Logger
}

func NewController(d Dependencies) *Controller {
	feed := d.Feed
	if feed == nil {
		feed = func() {}
	}
	return &Controller{
		reader:    d.Reader,
		display:   d.Display,
		clock:     d.Clock,
		debounce:  d.Debounce,
		health:    d.Health,
		resolver:  d.Resolver,
		engine:    d.Engine,
		escalate:  d.Escalate,
		audit:     d.Audit,
		directory: d.Directory,
		journal:   d.Journal,
		metrics:   d.Metrics,
		feed:      feed,
		logger:    d.Logger.With(zap.String("mod", "controller")),
	}
}

// Run polls the reader until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("controller loop started")
	for {
		c.feed()

		identifier, err := c.reader.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("controller loop stopped")
				return ctx.Err()
			}
			c.logger.Error("reader error", zap.Error(err))
			continue
		}

		identifier = strings.TrimSpace(identifier)
		if identifier == "" {
			continue
		}
		if !c.debounce.Accept(identifier, c.clock.Now()) {
			c.metrics.Debounced.Inc()
			c.logger.Debug("presentation debounced", zap.String("credential", identifier))
			continue
		}

		c.runCycle(ctx, identifier)
	}
}

// cycle carries the per-cycle context assembled as the chain progresses.
// It is constructed fresh every cycle and never retained.
type cycle struct {
	id         string
	identifier string
	now        time.Time
	log        *zap.Logger
}

func (c *Controller) runCycle(ctx context.Context, identifier string) {
	started := time.Now()
	defer func() {
		c.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	cy := cycle{
		id:         uuid.NewString(),
		identifier: identifier,
		now:        c.clock.Now(),
	}
	cy.log = c.logger.With(
		zap.String("cycle_id", cy.id),
		zap.String("credential", identifier),
	)

	c.feed()
	if !c.health.CheckAndMaybeRecover(ctx) {
		// The fault was already recorded by the health manager; this
		// cycle ends without a verdict.
		c.display.Show("System offline", "Please wait", errHold)
		c.logCycleLocal(ctx, cy, "", "", diag.OutcomeSkipped, "", false)
		return
	}

	c.feed()
	res := c.resolver.Resolve(ctx, identifier)

	switch res.Status {
	case ResolveUnregistered:
		// No directory identity exists; the audit row keys on the raw
		// identifier so the denial is still attributable.
		cy.log.Info("credential not registered")
		c.display.Show("Unknown credential", "Access denied", denyHold)
		c.conclude(ctx, cy, identifier, "", types.OutcomeDenied, types.ReasonNotRegistered, false)

	case ResolveBypass:
		cy.log.Info("unrestricted access", zap.String("identity", res.Identity))
		c.escalate.Reset()
		c.display.Show("Access granted", "Master credential", admitHold)
		c.conclude(ctx, cy, res.Identity, "", types.OutcomePermitted, types.ReasonUnrestricted, false)

	case ResolveFault:
		cy.log.Warn("lookup chain fault",
			zap.String("fault_type", res.FaultType),
			zap.String("detail", res.Detail),
		)
		c.audit.RecordFault(ctx, res.FaultType, res.Detail)
		c.display.Show("System error", "Please try again", errHold)
		c.logCycleLocal(ctx, cy, res.Identity, "", diag.OutcomeFault, res.FaultType, false)

	case ResolveNoReservation:
		escalated := c.escalate.Observe(res.Identity, true)
		cy.log.Info("no active reservation",
			zap.String("identity", res.Identity),
			zap.Bool("escalated", escalated),
		)
		c.showDenied(res.DisplayName, types.ReasonNoReservation, escalated)
		c.conclude(ctx, cy, res.Identity, "", types.OutcomeDenied, types.ReasonNoReservation, escalated)

	case ResolveOK:
		c.decideAndConclude(ctx, cy, res)
	}
}

func (c *Controller) decideAndConclude(ctx context.Context, cy cycle, res Resolution) {
	verdict := c.engine.Decide(res.Activity, res.Reservation, cy.now)

	if verdict.Admit {
		// One persistence attempt. Failure is a fault, not a reversal:
		// the verdict already granted physical access, and availability
		// wins over counter accuracy on this rare path.
		c.feed()
		if err := c.directory.PutReservation(ctx, res.Identity, res.ActivityRef, verdict.Updated); err != nil {
			cy.log.Error("attempt counter persist failed", zap.Error(err))
			c.audit.RecordFault(ctx, FaultPersistAttempt, err.Error())
		}
	}

	escalated := c.escalate.Observe(res.Identity, !verdict.Admit)

	outcome := types.OutcomeDenied
	if verdict.Admit {
		outcome = types.OutcomePermitted
		name := res.DisplayName
		if name == "" {
			name = res.Identity
		}
		c.display.Show("Welcome", name, admitHold)
	} else {
		c.showDenied(res.DisplayName, verdict.Reason, escalated)
	}

	cy.log.Info("verdict",
		zap.String("identity", res.Identity),
		zap.String("activity_ref", res.ActivityRef),
		zap.String("outcome", string(outcome)),
		zap.String("reason", verdict.Reason),
		zap.Int("attempts_used", verdict.Updated.AttemptsUsed),
		zap.Bool("escalated", escalated),
	)

	c.conclude(ctx, cy, res.Identity, res.Activity.Kind, outcome, verdict.Reason, escalated)
}

// showDenied picks the denial feedback, overridden by the
// assisted-resolution message when the escalation streak fires. The
// override affects presentation only; the audit reason is untouched.
func (c *Controller) showDenied(displayName, reason string, escalated bool) {
	if escalated {
		c.metrics.Escalations.Inc()
		c.display.Show("See front desk", "Assistance needed", denyHold)
		return
	}

	var line1 string
	switch reason {
	case types.ReasonNoReservation:
		line1 = "No reservation"
	case types.ReasonLimitReached:
		line1 = "Entry limit reached"
	case types.ReasonOutOfWindow:
		line1 = "Outside time window"
	case types.ReasonInvalidSchedule:
		line1 = "Schedule error"
	default:
		line1 = "Access denied"
	}
	line2 := "Access denied"
	if displayName != "" {
		line2 = displayName
	}
	c.display.Show(line1, line2, denyHold)
}

// conclude writes the audit record and the local journal entry for a cycle
// that reached a verdict. Exactly one audit record per verdict, including
// "no reservation" and "limit reached".
func (c *Controller) conclude(ctx context.Context, cy cycle, identity string, kind types.ActivityKind, outcome types.Outcome, reason string, escalated bool) {
	c.metrics.Decisions.WithLabelValues(string(outcome), reason).Inc()

	c.feed()
	c.audit.RecordAudit(ctx, types.AuditRecord{
		Identity:     identity,
		Epoch:        cy.now.Unix(),
		Date:         cy.now.Format("2006-01-02"),
		Time:         cy.now.Format("15:04:05"),
		Outcome:      outcome,
		ActivityKind: kind,
		Reason:       reason,
	})

	c.logCycleLocal(ctx, cy, identity, kind, string(outcome), reason, escalated)
}

func (c *Controller) logCycleLocal(ctx context.Context, cy cycle, identity string, kind types.ActivityKind, outcome, reason string, escalated bool) {
	if err := c.journal.AppendCycle(ctx, diag.CycleEntry{
		CycleID:      cy.id,
		Epoch:        cy.now.Unix(),
		Identifier:   cy.identifier,
		Identity:     identity,
		Outcome:      outcome,
		Reason:       reason,
		ActivityKind: string(kind),
		Escalated:    escalated,
	}); err != nil {
		cy.log.Error("journal cycle write failed", zap.Error(err))
	}
}
