package service_test

import (
	"testing"
	"time"

	"github.com/ostium-io/ostium/internal/ostium/service"
	"github.com/ostium-io/ostium/internal/ostium/types"
)

func newTestEngine() *service.DecisionEngine {
	return service.NewDecisionEngine(service.DecisionPolicy{
		EntryGrace: 10 * time.Minute,
		ExitGrace:  15 * time.Minute,
	})
}

// outdoorNineToTen is a 09:00..10:00 outdoor activity with a valid schedule.
func outdoorNineToTen(t *testing.T) types.ActivityWindow {
	t.Helper()
	start, err := types.ParseTimeOfDay("09:00")
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	end, err := types.ParseTimeOfDay("10:00")
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return types.ActivityWindow{
		Ref:        "act_tennis",
		Kind:       types.KindOutdoor,
		Start:      start,
		End:        end,
		ScheduleOK: true,
	}
}

func indoorNineToTen(t *testing.T) types.ActivityWindow {
	t.Helper()
	w := outdoorNineToTen(t)
	w.Kind = types.KindIndoor
	return w
}

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return time.Date(2026, 3, 14, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

// ── Outdoor: two admissions, entry and exit windows ──────────────────────────

func TestDecide_OutdoorReservation_FullDayLifecycle(t *testing.T) {
	engine := newTestEngine()
	activity := outdoorNineToTen(t)
	res := types.ReservationRecord{}

	// Arrival inside the entry window.
	v := engine.Decide(activity, res, at(t, "08:55"))
	if !v.Admit {
		t.Fatalf("08:55 arrival: expected admit, got deny (%s)", v.Reason)
	}
	if v.Reason != types.ReasonWithinWindow {
		t.Errorf("expected reason=within_window, got %q", v.Reason)
	}
	if v.Updated.AttemptsUsed != 1 {
		t.Errorf("expected attempts_used=1 after first admission, got %d", v.Updated.AttemptsUsed)
	}
	if v.Updated.LastEntryEpoch == 0 {
		t.Error("expected last_entry_epoch to be set")
	}

	// Re-entry inside the exit window on the second attempt.
	v = engine.Decide(activity, v.Updated, at(t, "10:10"))
	if !v.Admit {
		t.Fatalf("10:10 re-entry: expected admit, got deny (%s)", v.Reason)
	}
	if v.Updated.AttemptsUsed != 2 {
		t.Errorf("expected attempts_used=2 after second admission, got %d", v.Updated.AttemptsUsed)
	}

	// Third presentation exhausts the budget.
	v = engine.Decide(activity, v.Updated, at(t, "10:20"))
	if v.Admit {
		t.Fatal("10:20 third presentation: expected deny")
	}
	if v.Reason != types.ReasonLimitReached {
		t.Errorf("expected reason=limit_reached, got %q", v.Reason)
	}
}

func TestDecide_OutdoorFirstAttempt_ExitWindowDoesNotAdmit(t *testing.T) {
	engine := newTestEngine()
	v := engine.Decide(outdoorNineToTen(t), types.ReservationRecord{}, at(t, "10:10"))
	if v.Admit {
		t.Fatal("first attempt near the end should not admit")
	}
	if v.Reason != types.ReasonOutOfWindow {
		t.Errorf("expected reason=out_of_window, got %q", v.Reason)
	}
}

func TestDecide_OutdoorSecondAttempt_EntryWindowDoesNotAdmit(t *testing.T) {
	engine := newTestEngine()
	res := types.ReservationRecord{AttemptsUsed: 1}
	v := engine.Decide(outdoorNineToTen(t), res, at(t, "09:05"))
	if v.Admit {
		t.Fatal("second attempt near the start should not admit")
	}
	if v.Reason != types.ReasonOutOfWindow {
		t.Errorf("expected reason=out_of_window, got %q", v.Reason)
	}
}

// ── Indoor: single admission around the start ────────────────────────────────

func TestDecide_IndoorWithinEntryGrace_Admits(t *testing.T) {
	engine := newTestEngine()
	for _, hhmm := range []string{"08:50", "09:00", "09:10"} {
		v := engine.Decide(indoorNineToTen(t), types.ReservationRecord{}, at(t, hhmm))
		if !v.Admit {
			t.Errorf("%s: expected admit, got deny (%s)", hhmm, v.Reason)
		}
	}
}

func TestDecide_IndoorOutsideEntryGrace_Denies(t *testing.T) {
	engine := newTestEngine()
	for _, hhmm := range []string{"08:49", "09:11", "10:00"} {
		v := engine.Decide(indoorNineToTen(t), types.ReservationRecord{}, at(t, hhmm))
		if v.Admit {
			t.Errorf("%s: expected deny", hhmm)
		} else if v.Reason != types.ReasonOutOfWindow {
			t.Errorf("%s: expected reason=out_of_window, got %q", hhmm, v.Reason)
		}
	}
}

func TestDecide_IndoorSecondPresentation_LimitReached(t *testing.T) {
	engine := newTestEngine()
	res := types.ReservationRecord{AttemptsUsed: 1}
	v := engine.Decide(indoorNineToTen(t), res, at(t, "09:00"))
	if v.Admit {
		t.Fatal("indoor reservations admit once")
	}
	if v.Reason != types.ReasonLimitReached {
		t.Errorf("expected reason=limit_reached, got %q", v.Reason)
	}
}

// ── Ordering and fail-safe paths ─────────────────────────────────────────────

func TestDecide_LimitCheckedBeforeSchedule(t *testing.T) {
	// An exhausted reservation with a broken schedule must report the
	// limit, not the schedule.
	engine := newTestEngine()
	activity := indoorNineToTen(t)
	activity.ScheduleOK = false
	v := engine.Decide(activity, types.ReservationRecord{AttemptsUsed: 1}, at(t, "09:00"))
	if v.Reason != types.ReasonLimitReached {
		t.Errorf("expected reason=limit_reached, got %q", v.Reason)
	}
}

func TestDecide_BrokenSchedule_DeniesInvalidSchedule(t *testing.T) {
	engine := newTestEngine()
	activity := indoorNineToTen(t)
	activity.ScheduleOK = false
	v := engine.Decide(activity, types.ReservationRecord{}, at(t, "09:00"))
	if v.Admit {
		t.Fatal("broken schedule must not admit")
	}
	if v.Reason != types.ReasonInvalidSchedule {
		t.Errorf("expected reason=invalid_schedule, got %q", v.Reason)
	}
}

func TestDecide_UnknownKind_BehavesLikeIndoor(t *testing.T) {
	engine := newTestEngine()
	activity := outdoorNineToTen(t)
	activity.Kind = "aquatic"

	v := engine.Decide(activity, types.ReservationRecord{}, at(t, "09:00"))
	if !v.Admit {
		t.Fatalf("unknown kind, first attempt at start: expected admit, got %s", v.Reason)
	}

	// The exit window does not apply and the budget is one.
	v = engine.Decide(activity, types.ReservationRecord{AttemptsUsed: 1}, at(t, "10:00"))
	if v.Admit {
		t.Fatal("unknown kind must not get the outdoor exit admission")
	}
	if v.Reason != types.ReasonLimitReached {
		t.Errorf("expected reason=limit_reached, got %q", v.Reason)
	}
}
