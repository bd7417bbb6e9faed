package service

import (
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/calendar"
	"github.com/mmynk/gatherly/internal/models"
)

func TestGetCalendarView(t *testing.T) {
	ts := setupTestServer(t)
	createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	anchor := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

	month := mustCall[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "bob", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Anchor: anchor})
	assert.Equal(t, calendar.ModeMonth, month.View.Mode)
	require.Len(t, month.View.Days, 42)
	assert.True(t, month.View.Days[0].Date.Equal(time.Date(2030, 5, 26, 0, 0, 0, 0, time.UTC)))

	var found int
	for _, d := range month.View.Days {
		if len(d.Occurrences) > 0 {
			found++
			assert.Equal(t, 1, d.Date.Day())
			assert.True(t, d.InMonth)
			assert.Equal(t, "Dinner", d.Occurrences[0].Event.Title)
		}
	}
	assert.Equal(t, 1, found)

	week := mustCall[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "bob", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Mode: calendar.ModeWeek, Anchor: anchor})
	require.Len(t, week.View.Days, 7)
	for _, d := range week.View.Days {
		assert.Empty(t, d.Occurrences)
	}

	list := mustCall[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "mallory", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Mode: calendar.ModeList, Anchor: anchor})
	assert.Empty(t, list.View.List)

	_, err := call[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "bob", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Mode: "day"})
	requireCode(t, err, connect.CodeInvalidArgument)
}

func TestExportICS(t *testing.T) {
	ts := setupTestServer(t)
	createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	createEvent(t, ts, "carol", "Private", dinnerStart, 0)

	res := mustCall[Empty, ExportICSResponse](t, ts, "bob", CalendarServiceName, "ExportICS", &Empty{})
	doc := res.Calendar
	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR"))
	assert.Contains(t, doc, "SUMMARY:Dinner")
	assert.Contains(t, doc, "DTSTART:20300601T190000Z")
	assert.NotContains(t, doc, "Private")
}

func TestGetCalendarViewUsesPreferences(t *testing.T) {
	ts := setupTestServer(t)
	createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	anchor := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

	mustCall[UpdatePreferencesRequest, PreferencesResponse](t, ts, "bob", PreferenceServiceName, "UpdatePreferences",
		&UpdatePreferencesRequest{Preferences: models.Preferences{DefaultCalendarView: "week", Timezone: "Asia/Tokyo"}})

	week := mustCall[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "bob", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Anchor: anchor})
	assert.Equal(t, calendar.ModeWeek, week.View.Mode)
	require.Len(t, week.View.Days, 7)
	_, offset := week.View.Days[0].Date.Zone()
	assert.Equal(t, 9*60*60, offset)
	assert.Empty(t, week.Degraded)

	// An explicit mode wins over the saved one.
	month := mustCall[GetCalendarViewRequest, GetCalendarViewResponse](t, ts, "bob", CalendarServiceName, "GetCalendarView",
		&GetCalendarViewRequest{Mode: calendar.ModeMonth, Anchor: anchor})
	assert.Equal(t, calendar.ModeMonth, month.View.Mode)
}
