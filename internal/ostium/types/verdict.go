package types

// Reason codes recorded in the audit log. The display never shows these;
// user-facing text is selected separately by the controller.
const (
	ReasonUnrestricted    = "unrestricted_access"
	ReasonWithinWindow    = "within_window"
	ReasonNotRegistered   = "credential_not_registered"
	ReasonNoReservation   = "no_reservation"
	ReasonLimitReached    = "limit_reached"
	ReasonOutOfWindow     = "out_of_window"
	ReasonInvalidSchedule = "invalid_schedule"
)

// Verdict is the decision engine's output for one cycle.
type Verdict struct {
	Admit  bool
	Reason string

	// Updated is the counter mutation to persist. Only meaningful when
	// Admit is true; it is written at most once per cycle.
	Updated ReservationRecord
}
