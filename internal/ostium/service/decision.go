package service

import (
	"time"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

// DecisionPolicy holds the window tolerances. EntryGrace brackets the
// activity start for first attempts; ExitGrace brackets the activity end
// for the outdoor second attempt.
type DecisionPolicy struct {
	EntryGrace time.Duration
	ExitGrace  time.Duration
}

// DecisionEngine applies usage-count and time-window policy to produce an
// admit/deny verdict and the counter mutation to persist. It is pure: no
// remote calls, no retained state.
type DecisionEngine struct {
	policy DecisionPolicy
}

func NewDecisionEngine(policy DecisionPolicy) *DecisionEngine {
	if policy.EntryGrace <= 0 {
		policy.EntryGrace = 10 * time.Minute
	}
	if policy.ExitGrace <= 0 {
		policy.ExitGrace = 15 * time.Minute
	}
	return &DecisionEngine{policy: policy}
}

// Decide evaluates one reservation against its activity window at now.
//
// The usage-limit check runs first as a cheap short-circuit. The window
// check admits indoor reservations only on the first attempt around the
// start, and outdoor reservations on the first attempt around the start or
// the second attempt around the end. A malformed schedule denies rather
// than faults: a record that cannot be interpreted must fail safe.
func (e *DecisionEngine) Decide(activity types.ActivityWindow, res types.ReservationRecord, now time.Time) types.Verdict {
	if res.AttemptsUsed >= types.AllowedAttempts(activity.Kind) {
		return deny(types.ReasonLimitReached)
	}
	if !activity.ScheduleOK {
		return deny(types.ReasonInvalidSchedule)
	}

	at := types.TimeOfDayAt(now)
	admit := false
	switch activity.Kind {
	case types.KindOutdoor:
		admit = (res.AttemptsUsed == 0 && at.Within(activity.Start, e.policy.EntryGrace)) ||
			(res.AttemptsUsed == 1 && at.Within(activity.End, e.policy.ExitGrace))
	default:
		// Indoor, and the fail-safe path for unrecognized kinds: one
		// attempt, around the start only.
		admit = res.AttemptsUsed == 0 && at.Within(activity.Start, e.policy.EntryGrace)
	}

	if !admit {
		return deny(types.ReasonOutOfWindow)
	}
	return types.Verdict{
		Admit:  true,
		Reason: types.ReasonWithinWindow,
		Updated: types.ReservationRecord{
			AttemptsUsed:   res.AttemptsUsed + 1,
			LastEntryEpoch: now.Unix(),
		},
	}
}

func deny(reason string) types.Verdict {
	return types.Verdict{Admit: false, Reason: reason}
}
