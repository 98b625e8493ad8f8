package types

import (
	"fmt"
	"strconv"
	"time"
)

// TimeOfDay is a minute-of-day value (0..1439) in local wall-clock time.
// All window comparisons operate at this granularity.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" wall-clock string as stored in the
// directory. The strings carry no timezone; interpretation is local by
// policy. Too-short or malformed input is an error, never a panic.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) < 5 || s[2] != ':' {
		return 0, fmt.Errorf("malformed time-of-day %q", s)
	}
	h, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("malformed hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("malformed minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time-of-day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayAt truncates a local timestamp to its minute of day.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Within reports whether t is no further than grace from center.
// Grace is truncated to whole minutes to match the comparison granularity.
func (t TimeOfDay) Within(center TimeOfDay, grace time.Duration) bool {
	d := int(t) - int(center)
	if d < 0 {
		d = -d
	}
	return d <= int(grace/time.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}
