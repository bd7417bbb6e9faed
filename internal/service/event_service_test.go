package service

import (
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/notify"
	"github.com/mmynk/gatherly/internal/recurrence"
)

var dinnerStart = time.Date(2030, 6, 1, 19, 0, 0, 0, time.UTC)

func TestCreateEventInvitesStartPending(t *testing.T) {
	ts := setupTestServer(t)

	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob", "carol")

	assert.Equal(t, "alice", e.CreatorID)
	assert.Equal(t, models.EventStatusScheduled, e.Status)
	require.Len(t, e.Invites, 2)
	for _, inv := range e.Invites {
		assert.Equal(t, models.InviteStatusPending, inv.Status)
	}

	got := mustCall[EventRequest, EventResponse](t, ts, "bob", EventServiceName, "GetEvent", &EventRequest{EventID: e.ID})
	assert.Equal(t, "Dinner", got.Event.Title)
	assert.True(t, got.Event.Start.Equal(dinnerStart))

	state := mustCall[Empty, notify.State](t, ts, "bob", NotificationServiceName, "ListNotifications", &Empty{})
	require.Len(t, state.Notifications, 1)
	assert.Equal(t, 1, state.Unread)
	assert.Equal(t, "New Event Invitation", state.Notifications[0].Title)
	assert.Equal(t, models.EventInvitePayload{EventID: e.ID}, state.Notifications[0].Data)
}

func TestCreateEventRejectsInvalidInput(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name  string
		event models.Event
	}{
		{
			name:  "missing title",
			event: models.Event{Start: dinnerStart, End: dinnerStart.Add(time.Hour)},
		},
		{
			name:  "completed status",
			event: models.Event{Title: "Late", Start: dinnerStart, End: dinnerStart.Add(time.Hour), Status: models.EventStatusCompleted},
		},
		{
			name: "recurring without rule",
			event: models.Event{
				Title: "Yoga", Start: dinnerStart, End: dinnerStart.Add(time.Hour), IsRecurring: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[CreateEventRequest, EventResponse](t, ts, "alice", EventServiceName, "CreateEvent", &CreateEventRequest{Event: tt.event})
			requireCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestEventAccessControl(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")

	_, err := call[EventRequest, EventResponse](t, ts, "mallory", EventServiceName, "GetEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodeNotFound)

	update := *e
	update.Title = "Bob's dinner"
	_, err = call[UpdateEventRequest, EventResponse](t, ts, "bob", EventServiceName, "UpdateEvent", &UpdateEventRequest{Event: update})
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = call[EventRequest, Empty](t, ts, "bob", EventServiceName, "DeleteEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = call[EventRequest, EventResponse](t, ts, "alice", EventServiceName, "GetEvent", &EventRequest{EventID: "missing"})
	requireCode(t, err, connect.CodeNotFound)
}

func TestUpdateEventNotifiesParticipants(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")

	update := *e
	update.Title = "Brunch"
	update.Invites = nil
	res := mustCall[UpdateEventRequest, EventResponse](t, ts, "alice", EventServiceName, "UpdateEvent", &UpdateEventRequest{Event: update})
	assert.Equal(t, "Brunch", res.Event.Title)
	require.Len(t, res.Event.Invites, 1, "invites are kept as stored")

	state := mustCall[Empty, notify.State](t, ts, "bob", NotificationServiceName, "ListNotifications", &Empty{})
	var titles []string
	for _, n := range state.Notifications {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"New Event Invitation", "Event Updated"}, titles)

	alice := mustCall[Empty, notify.State](t, ts, "alice", NotificationServiceName, "ListNotifications", &Empty{})
	assert.Empty(t, alice.Notifications, "the editor is not notified")
}

func TestRespondToInviteAndShares(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob", "carol")

	shares := mustCall[EventRequest, CostSharesResponse](t, ts, "bob", EventServiceName, "GetCostShares", &EventRequest{EventID: e.ID})
	assert.Equal(t, 30.0, shares.Total)
	assert.Equal(t, []Share{
		{UserID: "bob", Amount: 15, Minor: 1500},
		{UserID: "carol", Amount: 15, Minor: 1500},
	}, shares.Shares)

	res := mustCall[RespondToInviteRequest, InviteResponse](t, ts, "carol", EventServiceName, "RespondToInvite",
		&RespondToInviteRequest{EventID: e.ID, Status: models.InviteStatusDeclined})
	assert.Equal(t, models.InviteStatusDeclined, res.Invite.Status)
	require.NotNil(t, res.Invite.RespondedAt)

	_, err := call[EventRequest, EventResponse](t, ts, "carol", EventServiceName, "GetEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodeNotFound)

	shares = mustCall[EventRequest, CostSharesResponse](t, ts, "alice", EventServiceName, "GetCostShares", &EventRequest{EventID: e.ID})
	assert.Equal(t, []Share{{UserID: "bob", Amount: 30, Minor: 3000}}, shares.Shares)

	_, err = call[RespondToInviteRequest, InviteResponse](t, ts, "bob", EventServiceName, "RespondToInvite",
		&RespondToInviteRequest{EventID: e.ID, Status: models.InviteStatusPending})
	requireCode(t, err, connect.CodeInvalidArgument)
}

func TestInviteUser(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")

	cost := 12.5
	res := mustCall[InviteUserRequest, InviteResponse](t, ts, "alice", EventServiceName, "InviteUser",
		&InviteUserRequest{EventID: e.ID, UserID: "dave", Roles: []string{"cook"}, Cost: &cost})
	assert.Equal(t, "dave", res.Invite.UserID)
	assert.Equal(t, models.InviteStatusPending, res.Invite.Status)
	assert.Equal(t, []string{"cook"}, res.Invite.Roles)

	_, err := call[InviteUserRequest, InviteResponse](t, ts, "bob", EventServiceName, "InviteUser",
		&InviteUserRequest{EventID: e.ID, UserID: "erin"})
	requireCode(t, err, connect.CodePermissionDenied)

	state := mustCall[Empty, notify.State](t, ts, "dave", NotificationServiceName, "ListNotifications", &Empty{})
	require.Len(t, state.Notifications, 1)
	assert.Equal(t, "You have been invited to Dinner", state.Notifications[0].Message)
}

func TestSetEventStatus(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")

	res := mustCall[SetEventStatusRequest, EventResponse](t, ts, "alice", EventServiceName, "SetEventStatus",
		&SetEventStatusRequest{EventID: e.ID, Status: models.EventStatusCancelled})
	assert.Equal(t, models.EventStatusCancelled, res.Event.Status)

	_, err := call[SetEventStatusRequest, EventResponse](t, ts, "alice", EventServiceName, "SetEventStatus",
		&SetEventStatusRequest{EventID: e.ID, Status: models.EventStatusScheduled})
	requireCode(t, err, connect.CodeInvalidArgument)

	state := mustCall[Empty, notify.State](t, ts, "bob", NotificationServiceName, "ListNotifications", &Empty{})
	var cancelled *models.Notification
	for _, n := range state.Notifications {
		if n.Type == models.NotificationEventCancelled {
			cancelled = n
		}
	}
	require.NotNil(t, cancelled)
	assert.Equal(t, "Dinner has been cancelled", cancelled.Message)
}

func weeklySeries(start time.Time, count int) models.Event {
	return models.Event{
		Title:       "Yoga",
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      models.EventStatusScheduled,
		IsRecurring: true,
		RecurrenceRule: &models.RecurrenceRule{
			Frequency: models.FrequencyWeekly,
			Interval:  1,
			Count:     count,
		},
		Invites: []models.EventInvite{{UserID: "bob"}},
	}
}

func TestCancelOccurrenceAndExpand(t *testing.T) {
	ts := setupTestServer(t)
	start := time.Date(2030, 1, 7, 18, 0, 0, 0, time.UTC)
	created := mustCall[CreateEventRequest, EventResponse](t, ts, "alice", EventServiceName, "CreateEvent",
		&CreateEventRequest{Event: weeklySeries(start, 4)})
	id := created.Event.ID

	res := mustCall[CancelOccurrenceRequest, EventResponse](t, ts, "alice", EventServiceName, "CancelOccurrence",
		&CancelOccurrenceRequest{EventID: id, Date: time.Date(2030, 1, 14, 0, 0, 0, 0, time.UTC)})
	require.Len(t, res.Event.CancelledOccurrences, 1)

	// Cancelling the same date again is accepted.
	mustCall[CancelOccurrenceRequest, EventResponse](t, ts, "alice", EventServiceName, "CancelOccurrence",
		&CancelOccurrenceRequest{EventID: id, Date: time.Date(2030, 1, 14, 12, 0, 0, 0, time.UTC)})

	_, err := call[CancelOccurrenceRequest, EventResponse](t, ts, "alice", EventServiceName, "CancelOccurrence",
		&CancelOccurrenceRequest{EventID: id, Date: time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)})
	requireCode(t, err, connect.CodeNotFound)

	window := recurrence.Window{From: start.AddDate(0, 0, -1), To: start.AddDate(0, 2, 0)}
	occ := mustCall[ExpandOccurrencesRequest, ExpandOccurrencesResponse](t, ts, "bob", EventServiceName, "ExpandOccurrences",
		&ExpandOccurrencesRequest{EventID: id, Window: window})
	require.Len(t, occ.Occurrences, 3)
	var days []int
	var indexes []int
	for _, o := range occ.Occurrences {
		days = append(days, o.Start.Day())
		indexes = append(indexes, o.Index)
	}
	assert.Equal(t, []int{7, 21, 28}, days)
	assert.Equal(t, []int{0, 2, 3}, indexes)

	var cancelled *models.Notification
	state := mustCall[Empty, notify.State](t, ts, "bob", NotificationServiceName, "ListNotifications", &Empty{})
	for _, n := range state.Notifications {
		if n.Type == models.NotificationEventCancelled {
			cancelled = n
		}
	}
	require.NotNil(t, cancelled)
	assert.Equal(t, "Yoga on 2030-01-14 has been cancelled", cancelled.Message)
}

func TestCancelOccurrenceRequiresRecurringEvent(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 0)

	_, err := call[CancelOccurrenceRequest, EventResponse](t, ts, "alice", EventServiceName, "CancelOccurrence",
		&CancelOccurrenceRequest{EventID: e.ID, Date: dinnerStart})
	requireCode(t, err, connect.CodeInvalidArgument)
}

func TestExpandOccurrencesRejectsEmptyWindow(t *testing.T) {
	ts := setupTestServer(t)

	window := recurrence.Window{From: dinnerStart, To: dinnerStart.Add(-time.Hour)}
	_, err := call[ExpandOccurrencesRequest, ExpandOccurrencesResponse](t, ts, "alice", EventServiceName, "ExpandOccurrences",
		&ExpandOccurrencesRequest{Window: window})
	requireCode(t, err, connect.CodeInvalidArgument)
}

func TestListEventsAndBalances(t *testing.T) {
	ts := setupTestServer(t)
	dinner := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob", "carol")
	createEvent(t, ts, "bob", "Lunch", dinnerStart.AddDate(0, 0, 1), 10, "alice")
	createEvent(t, ts, "carol", "Hidden", dinnerStart, 10, "dave")

	list := mustCall[Empty, ListEventsResponse](t, ts, "bob", EventServiceName, "ListEvents", &Empty{})
	var titles []string
	for _, e := range list.Events {
		titles = append(titles, e.Title)
	}
	assert.ElementsMatch(t, []string{"Dinner", "Lunch"}, titles)
	assert.Empty(t, list.Degraded)

	one := mustCall[GetBalancesRequest, GetBalancesResponse](t, ts, "bob", EventServiceName, "GetBalances",
		&GetBalancesRequest{EventIDs: []string{dinner.ID}})
	assert.Equal(t, []Balance{
		{UserID: "alice", NetBalance: 30, TotalPaid: 30},
		{UserID: "bob", NetBalance: -15, TotalOwed: 15},
		{UserID: "carol", NetBalance: -15, TotalOwed: 15},
	}, one.Balances)
	assert.ElementsMatch(t, []Debt{
		{From: "bob", To: "alice", Amount: 15},
		{From: "carol", To: "alice", Amount: 15},
	}, one.Debts)

	all := mustCall[GetBalancesRequest, GetBalancesResponse](t, ts, "bob", EventServiceName, "GetBalances", &GetBalancesRequest{})
	assert.Equal(t, []Balance{
		{UserID: "alice", NetBalance: 20, TotalPaid: 30, TotalOwed: 10},
		{UserID: "bob", NetBalance: -5, TotalPaid: 10, TotalOwed: 15},
		{UserID: "carol", NetBalance: -15, TotalOwed: 15},
	}, all.Balances)

	_, err := call[GetBalancesRequest, GetBalancesResponse](t, ts, "bob", EventServiceName, "GetBalances",
		&GetBalancesRequest{EventIDs: []string{"missing"}})
	requireCode(t, err, connect.CodeNotFound)
}

func TestFriendsOnlyInvites(t *testing.T) {
	ts := setupTestServer(t, withFriendsOnlyInvites())
	befriend(t, ts, "alice", "bob")

	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	require.Len(t, e.Invites, 1)

	_, err := call[CreateEventRequest, EventResponse](t, ts, "alice", EventServiceName, "CreateEvent", &CreateEventRequest{Event: models.Event{
		Title:   "Lunch",
		Start:   dinnerStart,
		End:     dinnerStart.Add(time.Hour),
		Invites: []models.EventInvite{{UserID: "bob"}, {UserID: "mallory"}},
	}})
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = call[InviteUserRequest, InviteResponse](t, ts, "alice", EventServiceName, "InviteUser",
		&InviteUserRequest{EventID: e.ID, UserID: "mallory"})
	requireCode(t, err, connect.CodePermissionDenied)

	befriend(t, ts, "alice", "carol")
	res := mustCall[InviteUserRequest, InviteResponse](t, ts, "alice", EventServiceName, "InviteUser",
		&InviteUserRequest{EventID: e.ID, UserID: "carol"})
	assert.Equal(t, "carol", res.Invite.UserID)

	state := mustCall[Empty, notify.State](t, ts, "mallory", NotificationServiceName, "ListNotifications", &Empty{})
	assert.Empty(t, state.Notifications)
}

func TestNewEventsGetAChat(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	require.NotEmpty(t, e.ChatID)

	c := mustCall[EventRequest, ChatResponse](t, ts, "bob", ChatServiceName, "GetEventChat", &EventRequest{EventID: e.ID})
	assert.Equal(t, e.ChatID, c.Chat.ID)
	assert.Equal(t, []string{"alice", "bob"}, c.Chat.Participants)

	// The chat reference is not editable.
	in := *e
	in.ChatID = "other"
	updated := mustCall[UpdateEventRequest, EventResponse](t, ts, "alice", EventServiceName, "UpdateEvent", &UpdateEventRequest{Event: in})
	assert.Equal(t, e.ChatID, updated.Event.ChatID)
}
