// Package ics renders events as an iCalendar document.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/mmynk/gatherly/internal/calendar"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/recurrence"
)

const (
	DefaultProductID = "-//gatherly//calendar//EN"

	dateLayout      = "20060102"
	localTimeLayout = "20060102T150405"
)

// Options controls Export.
type Options struct {
	// Name is written as X-WR-CALNAME when set.
	Name string

	ProductID string

	// UserID, when set, restricts the export to events visible to that user.
	UserID string

	// Now stamps DTSTAMP. Defaults to time.Now.
	Now time.Time
}

// Export renders one VEVENT per event.
func Export(events []*models.Event, opts Options) (string, error) {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.UserID != "" {
		events = calendar.Visible(opts.UserID, events)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		if err := addEvent(cal, e, opts.Now); err != nil {
			return "", fmt.Errorf("failed to export event %s: %w", e.ID, err)
		}
	}
	return cal.Serialize(), nil
}

func addEvent(cal *ical.Calendar, e *models.Event, now time.Time) error {
	loc := e.Location()
	ve := cal.AddEvent(e.ID)
	ve.SetDtStampTime(now)
	if !e.CreatedAt.IsZero() {
		ve.SetCreatedTime(e.CreatedAt)
	}
	if !e.UpdatedAt.IsZero() {
		ve.SetModifiedAt(e.UpdatedAt)
	}
	ve.SetSummary(e.Title)
	if e.Description != "" {
		ve.SetDescription(e.Description)
	}
	if where := locationText(e.Locations); where != "" {
		ve.SetLocation(where)
	}
	ve.SetStatus(status(e.Status))

	if e.AllDay {
		start := e.Start.In(loc)
		end := e.End.In(loc)
		ve.SetAllDayStartAt(start)
		// DTEND is exclusive for DATE values.
		ve.SetAllDayEndAt(time.Date(end.Year(), end.Month(), end.Day()+1, 0, 0, 0, 0, loc))
	} else {
		setTime(ve, ical.ComponentPropertyDtStart, e.Start, loc)
		setTime(ve, ical.ComponentPropertyDtEnd, e.End, loc)
	}

	if !e.IsRecurring || e.RecurrenceRule == nil {
		return nil
	}
	rule, err := rruleText(e)
	if err != nil {
		return err
	}
	ve.AddRrule(rule)

	for _, start := range cancelledStarts(e) {
		switch {
		case e.AllDay:
			ve.AddExdate(start.In(loc).Format(dateLayout), valueDate())
		case loc == time.UTC:
			ve.AddExdate(start.UTC().Format(localTimeLayout + "Z"))
		default:
			ve.AddExdate(start.In(loc).Format(localTimeLayout), tzid(loc))
		}
	}
	return nil
}

// setTime writes a UTC value for UTC events and a local value with TZID
// otherwise, so that BYMONTHDAY and DST follow the event's own zone.
func setTime(ve *ical.VEvent, prop ical.ComponentProperty, t time.Time, loc *time.Location) {
	if loc == time.UTC {
		ve.SetProperty(prop, t.UTC().Format(localTimeLayout+"Z"))
		return
	}
	ve.SetProperty(prop, t.In(loc).Format(localTimeLayout), tzid(loc))
}

func tzid(loc *time.Location) ical.PropertyParameter {
	return &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{loc.String()}}
}

func valueDate() ical.PropertyParameter {
	return &ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE"}}
}

// rruleText renders the same rule the expander uses.
func rruleText(e *models.Event) (string, error) {
	opt, err := recurrence.Option(e)
	if err != nil {
		return "", err
	}
	until := opt.Until
	opt.Until = time.Time{}
	opt.Dtstart = time.Time{}
	text := opt.RRuleString()
	if !until.IsZero() {
		if e.AllDay {
			text += ";UNTIL=" + until.Format(dateLayout)
		} else {
			text += ";UNTIL=" + until.UTC().Format(localTimeLayout+"Z")
		}
	}
	return text, nil
}

// cancelledStarts resolves each cancelled date to the start of the
// occurrence it removed.
func cancelledStarts(e *models.Event) []time.Time {
	if len(e.CancelledOccurrences) == 0 {
		return nil
	}
	series := *e
	series.CancelledOccurrences = nil
	loc := e.Location()

	var starts []time.Time
	for _, c := range e.CancelledOccurrences {
		day := c.In(loc)
		from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		w := recurrence.Window{From: from, To: from.AddDate(0, 0, 1).Add(-time.Nanosecond)}
		for o := range recurrence.Occurrences(&series, w) {
			starts = append(starts, o.Start)
		}
	}
	return starts
}

func status(s models.EventStatus) ical.ObjectStatus {
	switch s {
	case models.EventStatusDraft:
		return ical.ObjectStatusTentative
	case models.EventStatusCancelled:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusConfirmed
	}
}

func locationText(locations []models.EventLocation) string {
	parts := make([]string, 0, len(locations))
	for _, l := range locations {
		text := l.Name
		if l.Address != "" {
			text += ", " + l.Address
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}
