package types

// ActivityKind classifies an activity's access pattern: how many admissions
// a reservation allows and which window each admission must fall in.
type ActivityKind string

const (
	KindIndoor  ActivityKind = "indoor"
	KindOutdoor ActivityKind = "outdoor"
)

// AllowedAttempts returns the admission budget for a kind. Unrecognized
// kinds get the most restrictive budget.
func AllowedAttempts(k ActivityKind) int {
	switch k {
	case KindIndoor:
		return 1
	case KindOutdoor:
		return 2
	default:
		return 1
	}
}

// ActivityWindow is the scheduled range governing admissions for one
// activity. Start and End are parsed from the store's wall-clock strings at
// the resolver boundary; ScheduleOK is false when either string was
// malformed, which the decision engine turns into a denial rather than a
// fault.
type ActivityWindow struct {
	Ref        string
	Kind       ActivityKind
	Start      TimeOfDay
	End        TimeOfDay
	ScheduleOK bool
}
