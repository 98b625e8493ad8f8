package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ostium-io/ostium/internal/ostium/service"
	"github.com/ostium-io/ostium/internal/ostium/store/memory"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

func newTestAuditLogger(remote *memory.Store, journal *recordingJournal, clock *fakeClock) *service.AuditLogger {
	return service.NewAuditLogger(remote, journal, clock, 30*time.Second, newTestMetrics(), nopLogger())
}

func TestRecordFault_RepeatInsideSuppressionWindow_Dropped(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)

	al.RecordFault(context.Background(), service.FaultBackendDown, "dial tcp: refused")
	clock.Advance(10 * time.Second)
	al.RecordFault(context.Background(), service.FaultBackendDown, "dial tcp: refused")

	if got := len(remote.Faults()); got != 1 {
		t.Fatalf("expected 1 remote fault, got %d", got)
	}
	if got := remote.FaultCounter(service.FaultBackendDown); got != 1 {
		t.Errorf("expected counter=1, got %d", got)
	}
	if got := len(journal.faults); got != 1 {
		t.Errorf("expected 1 journal fault, got %d", got)
	}
}

func TestRecordFault_RepeatAfterSuppressionWindow_Recorded(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)

	al.RecordFault(context.Background(), service.FaultBackendDown, "first")
	clock.Advance(31 * time.Second)
	al.RecordFault(context.Background(), service.FaultBackendDown, "second")

	if got := len(remote.Faults()); got != 2 {
		t.Fatalf("expected 2 remote faults, got %d", got)
	}
	if got := remote.FaultCounter(service.FaultBackendDown); got != 2 {
		t.Errorf("expected counter=2, got %d", got)
	}
}

func TestRecordFault_SuppressionIsPerType(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)

	al.RecordFault(context.Background(), service.FaultBackendDown, "backend")
	al.RecordFault(context.Background(), service.FaultResolveProfile, "profile")

	if got := len(remote.Faults()); got != 2 {
		t.Fatalf("different types share no window: expected 2 remote faults, got %d", got)
	}
}

func TestRecordFault_WhileUnhealthy_LocalOnly(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)
	al.BindHealth(func() bool { return false })

	al.RecordFault(context.Background(), service.FaultLinkDown, "network link down")

	if got := len(remote.Faults()); got != 0 {
		t.Errorf("unhealthy: expected no remote fault writes, got %d", got)
	}
	if got := remote.FaultCounter(service.FaultLinkDown); got != 0 {
		t.Errorf("unhealthy: expected no counter bump, got %d", got)
	}
	if got := len(journal.faults); got != 1 {
		t.Errorf("the local journal still gets the fault, got %d entries", got)
	}
}

func TestRecordFault_JournalFailure_RemoteStillWritten(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{err: errors.New("disk full")}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)

	al.RecordFault(context.Background(), service.FaultBackendDown, "detail")

	if got := len(remote.Faults()); got != 1 {
		t.Errorf("expected the remote write to proceed, got %d faults", got)
	}
}

func TestRecordAudit_RemoteFailure_Swallowed(t *testing.T) {
	remote := memory.New()
	remote.AuditErr = errors.New("connection reset")
	journal := &recordingJournal{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	al := newTestAuditLogger(remote, journal, clock)

	// Must not panic, must not record a recursive fault.
	al.RecordAudit(context.Background(), types.AuditRecord{
		Identity: "member_1",
		Epoch:    clock.Now().Unix(),
		Outcome:  types.OutcomeDenied,
		Reason:   types.ReasonNoReservation,
	})

	if got := len(remote.Faults()); got != 0 {
		t.Errorf("a failed audit write must not produce a fault record, got %d", got)
	}
}

func TestRecordFault_RecordsFormattedTimestamps(t *testing.T) {
	remote := memory.New()
	journal := &recordingJournal{}
	now := time.Date(2026, 3, 14, 9, 5, 42, 0, time.UTC)
	al := newTestAuditLogger(remote, journal, newFakeClock(now))

	al.RecordFault(context.Background(), service.FaultBackendDown, "detail")

	faults := remote.Faults()
	if len(faults) != 1 {
		t.Fatalf("expected 1 fault, got %d", len(faults))
	}
	f := faults[0]
	if f.Epoch != now.Unix() {
		t.Errorf("epoch = %d, want %d", f.Epoch, now.Unix())
	}
	if f.Date != "2026-03-14" {
		t.Errorf("date = %q, want 2026-03-14", f.Date)
	}
	if f.Time != "09:05:42" {
		t.Errorf("time = %q, want 09:05:42", f.Time)
	}
}
