package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/calendar"
	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/ics"
	"github.com/mmynk/gatherly/internal/preferences"
	"github.com/mmynk/gatherly/internal/recurrence"
	"github.com/mmynk/gatherly/internal/storage"
)

const CalendarServiceName = "CalendarService"

// CalendarService implements the Connect CalendarService.
type CalendarService struct {
	loader   *calendar.Loader
	location *time.Location
	horizon  time.Duration
	expander recurrence.Expander
	prefs    *preferences.Service
	now      func() time.Time
}

// NewCalendarService creates a CalendarService whose grids are laid out in loc.
func NewCalendarService(store storage.EventStore, loc *time.Location, horizon time.Duration, expander recurrence.Expander) *CalendarService {
	return &CalendarService{
		loader:   &calendar.Loader{Events: store},
		location: loc,
		horizon:  horizon,
		expander: expander,
		now:      time.Now,
	}
}

// WithPreferences makes GetCalendarView fall back to the caller's saved view
// and lay the grid out in their saved time zone.
func (s *CalendarService) WithPreferences(prefs *preferences.Service) *CalendarService {
	s.prefs = prefs
	return s
}

// Handler returns the path prefix and handler serving every CalendarService method.
func (s *CalendarService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(CalendarServiceName, opts)
	unary(r, "GetCalendarView", s.GetCalendarView)
	unary(r, "ExportICS", s.ExportICS)
	return r.handler()
}

type GetCalendarViewRequest struct {
	Mode calendar.Mode `json:"mode"`

	// Anchor is any instant inside the period to show. Zero means now.
	Anchor time.Time `json:"anchor"`
}

type GetCalendarViewResponse struct {
	View     calendar.View `json:"view"`
	Degraded []string      `json:"degraded,omitempty"`
}

type ExportICSResponse struct {
	Calendar string `json:"calendar"`
}

// GetCalendarView builds a month, week or list view of the caller's events.
func (s *CalendarService) GetCalendarView(ctx context.Context, req *connect.Request[GetCalendarViewRequest]) (*connect.Response[GetCalendarViewResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetCalendarView request received", "mode", req.Msg.Mode, "anchor", req.Msg.Anchor)

	var degraded []string
	mode, loc := req.Msg.Mode, s.location
	if s.prefs != nil {
		p, err := s.prefs.Get(ctx, userID)
		if err != nil {
			slog.Warn("Failed to load preferences", "error", err)
			degraded = append(degraded, "preferences")
		} else {
			if mode == "" {
				mode = calendar.Mode(p.DefaultCalendarView)
			}
			if p.Timezone != "" {
				if l, err := time.LoadLocation(p.Timezone); err == nil {
					loc = l
				}
			}
		}
	}
	if mode == "" {
		mode = calendar.ModeMonth
	}
	if !mode.Valid() {
		return nil, fail("GetCalendarView", errdef.NewValidation("unknown calendar mode %q", mode))
	}
	now := s.now()
	anchor := req.Msg.Anchor
	if anchor.IsZero() {
		anchor = now
	}

	events, failed := s.loader.Load(ctx, userID)
	degraded = append(degraded, failed...)
	b := calendar.Builder{Location: loc, Now: now, ListHorizon: s.horizon, Expander: s.expander}
	view := b.Build(events, mode, anchor)

	slog.Info("GetCalendarView successful", "mode", mode, "events", len(events))
	return connect.NewResponse(&GetCalendarViewResponse{View: view, Degraded: degraded}), nil
}

// ExportICS renders the caller's events as an iCalendar document.
func (s *CalendarService) ExportICS(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ExportICSResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ExportICS request received")

	events, _ := s.loader.Load(ctx, userID)
	doc, err := ics.Export(events, ics.Options{Name: "Gatherly", UserID: userID, Now: s.now()})
	if err != nil {
		return nil, fail("ExportICS", err)
	}
	slog.Info("ExportICS successful", "events", len(events))
	return connect.NewResponse(&ExportICSResponse{Calendar: doc}), nil
}
