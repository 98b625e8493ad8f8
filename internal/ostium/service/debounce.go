package service

import "time"

// Debounce suppresses duplicate processing of the same credential presented
// again within a short window — reader chatter and double taps must not
// consume reservation attempts. It holds exactly one {identifier, time}
// slot and makes no remote calls.
type Debounce struct {
	window time.Duration
	lastID string
	lastAt time.Time
}

func NewDebounce(window time.Duration) *Debounce {
	if window <= 0 {
		window = 3 * time.Second
	}
	return &Debounce{window: window}
}

// Accept reports whether this presentation should be processed. A repeat of
// the last accepted identifier inside the window is rejected without
// touching the slot; anything else replaces the slot.
func (d *Debounce) Accept(identifier string, now time.Time) bool {
	if identifier == d.lastID && !d.lastAt.IsZero() && now.Sub(d.lastAt) < d.window {
		return false
	}
	d.lastID = identifier
	d.lastAt = now
	return true
}
