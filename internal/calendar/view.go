// Package calendar builds month, week and list views of a user's events.
package calendar

import (
	"sort"
	"time"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/recurrence"
)

// Mode selects the shape of a view.
type Mode string

const (
	ModeMonth Mode = "month"
	ModeWeek  Mode = "week"
	ModeList  Mode = "list"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeMonth || m == ModeWeek || m == ModeList
}

const (
	monthCells = 42
	weekCells  = 7

	// DefaultListHorizon bounds open-ended series in list mode.
	DefaultListHorizon = 365 * 24 * time.Hour
)

// Day is one cell of a month or week grid.
type Day struct {
	Date        time.Time               `json:"date"`
	InMonth     bool                    `json:"inMonth"`
	IsToday     bool                    `json:"isToday"`
	Occurrences []recurrence.Occurrence `json:"occurrences"`
}

// View is a built calendar view. Grid modes fill Days; list mode fills List.
type View struct {
	Mode   Mode                    `json:"mode"`
	Anchor time.Time               `json:"anchor"`
	Days   []Day                   `json:"days,omitempty"`
	List   []recurrence.Occurrence `json:"list,omitempty"`

	// Truncated lists events whose expansion hit the occurrence cap.
	Truncated []string `json:"truncated,omitempty"`
}

// Builder builds views in a fixed location relative to a fixed now.
type Builder struct {
	Location    *time.Location
	Now         time.Time
	ListHorizon time.Duration

	Expander recurrence.Expander
}

func (b Builder) loc() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func (b Builder) horizon() time.Duration {
	if b.ListHorizon <= 0 {
		return DefaultListHorizon
	}
	return b.ListHorizon
}

// Build returns the view of events for mode around anchor. Callers pass
// events already filtered for visibility.
func (b Builder) Build(events []*models.Event, mode Mode, anchor time.Time) View {
	loc := b.loc()
	anchor = anchor.In(loc)
	switch mode {
	case ModeWeek:
		return b.grid(events, ModeWeek, anchor, startOfWeek(anchor), weekCells)
	case ModeList:
		return b.list(events, anchor)
	default:
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
		return b.grid(events, ModeMonth, anchor, startOfWeek(first), monthCells)
	}
}

func (b Builder) grid(events []*models.Event, mode Mode, anchor, start time.Time, cells int) View {
	loc := b.loc()
	end := start.AddDate(0, 0, cells)
	res := b.Expander.Expand(events, recurrence.Window{From: start, To: end.Add(-time.Nanosecond)})

	byDate := make(map[string][]recurrence.Occurrence)
	for _, o := range res.Occurrences {
		key := dateKey(o.Start.In(loc))
		byDate[key] = append(byDate[key], o)
	}

	today := dateKey(b.Now.In(loc))
	view := View{Mode: mode, Anchor: anchor, Truncated: res.Truncated, Days: make([]Day, 0, cells)}
	for i := 0; i < cells; i++ {
		d := start.AddDate(0, 0, i)
		key := dateKey(d)
		view.Days = append(view.Days, Day{
			Date:        d,
			InMonth:     d.Month() == anchor.Month() && d.Year() == anchor.Year(),
			IsToday:     key == today,
			Occurrences: byDate[key],
		})
	}
	return view
}

// list expands every event from the earliest start to the later of the last
// non-recurring end and now plus the horizon.
func (b Builder) list(events []*models.Event, anchor time.Time) View {
	view := View{Mode: ModeList, Anchor: anchor}
	if len(events) == 0 {
		return view
	}
	from := events[0].Start
	to := b.Now.Add(b.horizon())
	for _, e := range events {
		if e.Start.Before(from) {
			from = e.Start
		}
		if !e.IsRecurring && e.End.After(to) {
			to = e.End
		}
	}
	res := b.Expander.Expand(events, recurrence.Window{From: from, To: to})
	view.List = res.Occurrences
	view.Truncated = res.Truncated
	return view
}

// Visible filters events down to those userID created or holds a non-declined
// invite for, ordered by start.
func Visible(userID string, events []*models.Event) []*models.Event {
	out := make([]*models.Event, 0, len(events))
	for _, e := range events {
		if e.VisibleTo(userID) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
