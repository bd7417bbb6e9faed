// Package recurrence expands events into concrete occurrences.
//
// Expansion is calendar-aware: month and year steps keep the day-of-month of
// the series start and clamp to the last day of shorter months, so a series
// starting Jan 31 continues Feb 29 (or Feb 28), Mar 31, Apr 30.
package recurrence

import (
	"iter"
	"log/slog"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// DefaultMaxPerEvent caps how many occurrences a single event may produce in
// one expansion.
const DefaultMaxPerEvent = 5000

// Window is a closed time range [From, To].
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Empty reports whether the window contains no instant.
func (w Window) Empty() bool {
	return w.To.Before(w.From)
}

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	Event *models.Event `json:"event"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`

	// Index is the 0-based position of this occurrence in the full series,
	// counting occurrences before the window and cancelled ones.
	Index int `json:"index"`
}

// Expander expands events with a per-event safety cap.
type Expander struct {
	// MaxPerEvent bounds the occurrences considered per event. Zero means
	// DefaultMaxPerEvent.
	MaxPerEvent int

	Logger *slog.Logger
}

// Result is the outcome of expanding many events.
type Result struct {
	Occurrences []Occurrence

	// Truncated lists ids of events that hit the cap.
	Truncated []string
}

// Occurrences expands a single event with the default cap.
func Occurrences(e *models.Event, w Window) iter.Seq[Occurrence] {
	return Expander{}.Occurrences(e, w)
}

// Expand expands many events with the default cap.
func Expand(events []*models.Event, w Window) Result {
	return Expander{}.Expand(events, w)
}

// Occurrences returns the occurrences of e whose start lies in w, in ascending
// order, skipping cancelled dates. The sequence is lazy and can be ranged over
// more than once.
func (x Expander) Occurrences(e *models.Event, w Window) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		if x.walk(e, w, yield) {
			x.logger().Warn("occurrence cap reached", "event_id", e.ID, "cap", x.max())
		}
	}
}

// Expand collects the occurrences of every event in w, sorted by start.
func (x Expander) Expand(events []*models.Event, w Window) Result {
	var res Result
	for _, e := range events {
		hitCap := x.walk(e, w, func(o Occurrence) bool {
			res.Occurrences = append(res.Occurrences, o)
			return true
		})
		if hitCap {
			res.Truncated = append(res.Truncated, e.ID)
			x.logger().Warn("occurrence cap reached", "event_id", e.ID, "cap", x.max())
		}
	}
	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		return res.Occurrences[i].Start.Before(res.Occurrences[j].Start)
	})
	return res
}

// Next returns the first occurrence of e starting at or after t.
func (x Expander) Next(e *models.Event, t time.Time) (Occurrence, bool) {
	for o := range x.Occurrences(e, Window{From: t, To: farFuture}) {
		return o, true
	}
	return Occurrence{}, false
}

// Ended reports whether e can have no occurrence ending at or after now.
// Open-ended recurring series never end.
func (x Expander) Ended(e *models.Event, now time.Time) bool {
	if !e.IsRecurring || e.RecurrenceRule == nil {
		return e.End.Before(now)
	}
	r := e.RecurrenceRule
	if r.EndDate == nil && r.Count == 0 {
		return false
	}
	// Look back far enough that an occurrence still in progress at now is seen.
	from := now.Add(-e.Duration())
	for o := range x.Occurrences(e, Window{From: from, To: farFuture}) {
		if !o.End.Before(now) {
			return false
		}
	}
	return true
}

func (x Expander) max() int {
	if x.MaxPerEvent <= 0 {
		return DefaultMaxPerEvent
	}
	return x.MaxPerEvent
}

func (x Expander) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.Default()
	}
	return x.Logger
}

var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// walk yields the occurrences of e in w until yield returns false. It reports
// whether the cap stopped the walk.
func (x Expander) walk(e *models.Event, w Window, yield func(Occurrence) bool) bool {
	if e == nil || w.Empty() {
		return false
	}
	dur := e.Duration()

	if !e.IsRecurring || e.RecurrenceRule == nil {
		if w.Contains(e.Start) {
			yield(Occurrence{Event: e, Start: e.Start, End: e.End})
		}
		return false
	}

	rule, err := buildRule(e)
	if err != nil {
		x.logger().Error("failed to build recurrence rule", "event_id", e.ID, "error", err)
		return false
	}

	loc := e.Location()
	cancelled := cancelledDates(e, loc)
	// rrule works in whole seconds; put back the fraction of the anchor.
	offset := e.Start.Sub(e.Start.Truncate(time.Second))
	next := rule.Iterator()
	limit := x.max()
	considered := 0

	for i := 0; ; i++ {
		start, ok := next()
		if !ok {
			return false
		}
		start = start.Add(offset)
		if start.After(w.To) {
			return false
		}
		if start.Before(w.From) {
			continue
		}
		if considered == limit {
			return true
		}
		considered++
		if cancelled[dateKey(start.In(loc))] {
			continue
		}
		if !yield(Occurrence{Event: e, Start: start, End: start.Add(dur), Index: i}) {
			return false
		}
	}
}

// Validate returns a ValidationError when e's recurrence cannot be expanded.
func Validate(e *models.Event) error {
	if !e.IsRecurring {
		return nil
	}
	if e.RecurrenceRule == nil {
		return errdef.NewValidation("recurring event %q has no recurrence rule", e.Title)
	}
	if err := e.RecurrenceRule.Check(e.Start); err != nil {
		return err
	}
	if _, err := buildRule(e); err != nil {
		return errdef.NewValidation("invalid recurrence rule: %v", err)
	}
	return nil
}

// Option converts e's rule into rrule options anchored at the event start in
// its time zone. Month and year steps on days past the 28th select the last
// existing day among 28..d, which clamps short months.
func Option(e *models.Event) (rrule.ROption, error) {
	r := e.RecurrenceRule
	if r == nil {
		return rrule.ROption{}, errdef.NewValidation("event %q has no recurrence rule", e.ID)
	}
	loc := e.Location()
	start := e.Start.In(loc).Truncate(time.Second)

	opt := rrule.ROption{
		Dtstart:  start,
		Interval: r.Interval,
		Count:    r.Count,
	}
	switch r.Frequency {
	case models.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case models.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case models.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case models.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return rrule.ROption{}, errdef.NewValidation("unsupported frequency %q", r.Frequency)
	}

	if r.Frequency == models.FrequencyMonthly || r.Frequency == models.FrequencyYearly {
		if d := start.Day(); d > 28 {
			for day := 28; day <= d; day++ {
				opt.Bymonthday = append(opt.Bymonthday, day)
			}
			opt.Bysetpos = []int{-1}
		} else {
			opt.Bymonthday = []int{d}
		}
		if r.Frequency == models.FrequencyYearly {
			opt.Bymonth = []int{int(start.Month())}
		}
	}

	if r.EndDate != nil {
		// The end date is inclusive as a calendar day.
		end := r.EndDate.In(loc)
		opt.Until = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, loc)
	}
	return opt, nil
}

func buildRule(e *models.Event) (*rrule.RRule, error) {
	opt, err := Option(e)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(opt)
}

func cancelledDates(e *models.Event, loc *time.Location) map[string]bool {
	if len(e.CancelledOccurrences) == 0 {
		return nil
	}
	m := make(map[string]bool, len(e.CancelledOccurrences))
	for _, c := range e.CancelledOccurrences {
		m[dateKey(c.In(loc))] = true
	}
	return m
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
