package calendar

import "time"

// Navigator holds the mode and anchor of a calendar being browsed.
// Navigation changes only these two fields; views are rebuilt from them.
type Navigator struct {
	Mode   Mode
	Anchor time.Time
}

// Next moves forward one month or one week. List mode does not move.
func (n *Navigator) Next() {
	n.step(1)
}

// Prev moves back one month or one week. List mode does not move.
func (n *Navigator) Prev() {
	n.step(-1)
}

// Today moves the anchor to now.
func (n *Navigator) Today(now time.Time) {
	n.Anchor = now
}

// SetMode switches the view mode and keeps the anchor.
func (n *Navigator) SetMode(m Mode) {
	if m.Valid() {
		n.Mode = m
	}
}

func (n *Navigator) step(dir int) {
	switch n.Mode {
	case ModeMonth:
		n.Anchor = AddMonths(n.Anchor, dir)
	case ModeWeek:
		n.Anchor = n.Anchor.AddDate(0, 0, 7*dir)
	}
}

// AddMonths moves t by k calendar months, clamping the day to the length of
// the target month (Jan 31 + 1 month is Feb 29 in a leap year).
func AddMonths(t time.Time, k int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(k), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}
