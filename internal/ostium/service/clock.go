package service

import "time"

// Clock abstracts the time-synchronization collaborator. The real clock
// reports local wall-clock time in the site's timezone; tests inject fixed
// instants so window decisions are deterministic.
type Clock interface {
	Now() time.Time
}

type localClock struct {
	loc *time.Location
}

// NewClock returns a Clock pinned to the site's timezone. Schedule strings
// in the directory carry no zone; this is where local-policy
// interpretation happens.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return localClock{loc: loc}
}

func (c localClock) Now() time.Time { return time.Now().In(c.loc) }
