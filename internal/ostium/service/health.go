package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/ostium/store"
	"github.com/ostium-io/ostium/internal/peripheral"
)

// HealthPolicy sets how many consecutive failed cycles each resource
// tolerates before a blocking recovery attempt is made. Thresholds are
// counted in presentation cycles, not wall-clock time, so recovery cost
// scales with actual demand on the door.
type HealthPolicy struct {
	LinkFailureThreshold    int
	BackendFailureThreshold int
}

// HealthSnapshot is the current connectivity view for the diagnostic
// surface.
type HealthSnapshot struct {
	LinkUp          bool `json:"link_up"`
	BackendUp       bool `json:"backend_up"`
	LinkFailures    int  `json:"link_failures"`
	BackendFailures int  `json:"backend_failures"`
}

// HealthManager gates each cycle's remote work behind link and backend
// health. Each resource keeps an independent consecutive-failure counter;
// reaching the threshold triggers one synchronous, blocking recovery
// attempt with display feedback so the operator never faces a frozen UI.
type HealthManager struct {
	link    peripheral.Link
	backend store.Backend
	display peripheral.Display
	faults  *AuditLogger
	metrics *Metrics
	policy  HealthPolicy
	logger  *zap.Logger

	linkFailures    int
	backendFailures int
	linkUp          bool
	backendUp       bool
}

const reconnectHold = 3 * time.Second

func NewHealthManager(link peripheral.Link, backend store.Backend, display peripheral.Display, faults *AuditLogger, policy HealthPolicy, metrics *Metrics, logger *zap.Logger) *HealthManager {
	if policy.LinkFailureThreshold <= 0 {
		policy.LinkFailureThreshold = 5
	}
	if policy.BackendFailureThreshold <= 0 {
		policy.BackendFailureThreshold = 5
	}
	return &HealthManager{
		link:    link,
		backend: backend,
		display: display,
		faults:  faults,
		metrics: metrics,
		policy:  policy,
		logger:  logger.With(zap.String("mod", "health")),
		// Optimistic until the first check says otherwise.
		linkUp:    true,
		backendUp: true,
	}
}

// CheckAndMaybeRecover reports whether remote work may proceed this cycle.
// Every failed check records a fault before returning false, so the caller
// short-circuits without attempting any directory lookups.
func (m *HealthManager) CheckAndMaybeRecover(ctx context.Context) bool {
	if !m.link.Up(ctx) {
		m.linkUp = false
		m.linkFailures++
		if m.linkFailures >= m.policy.LinkFailureThreshold {
			m.display.Show("Network down", "Reconnecting...", reconnectHold)
			if err := m.link.Reconnect(ctx); err != nil {
				m.logger.Warn("link reconnect failed", zap.Error(err))
			} else {
				m.metrics.Reconnects.WithLabelValues("link").Inc()
				m.logger.Info("link reconnect attempt completed")
			}
			// Counter resets after the attempt regardless of outcome:
			// the budget of tolerated cycles starts over.
			m.linkFailures = 0
		}
		m.faults.RecordFault(ctx, FaultLinkDown, "network link down")
		return false
	}
	m.linkUp = true
	m.linkFailures = 0

	if err := m.backend.Ping(ctx); err != nil {
		m.backendUp = false
		m.backendFailures++
		if m.backendFailures >= m.policy.BackendFailureThreshold {
			m.display.Show("Service offline", "Reconnecting...", reconnectHold)
			if rerr := m.backend.Reconnect(ctx); rerr != nil {
				m.logger.Warn("backend reconnect failed", zap.Error(rerr))
			} else {
				// Only success resets: an unreachable backend keeps the
				// threshold armed for the next cycle.
				m.backendFailures = 0
				m.metrics.Reconnects.WithLabelValues("backend").Inc()
				m.logger.Info("backend connection restored")
			}
		}
		m.faults.RecordFault(ctx, FaultBackendDown, err.Error())
		return false
	}
	m.backendUp = true
	m.backendFailures = 0
	return true
}

// Healthy reports the last-known connectivity state. The audit logger uses
// this to decide whether a remote fault write is even worth attempting.
func (m *HealthManager) Healthy() bool {
	return m.linkUp && m.backendUp
}

// Snapshot returns the current state for /healthz.
func (m *HealthManager) Snapshot() HealthSnapshot {
	return HealthSnapshot{
		LinkUp:          m.linkUp,
		BackendUp:       m.backendUp,
		LinkFailures:    m.linkFailures,
		BackendFailures: m.backendFailures,
	}
}
