package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/errdef"
)

func TestEventStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to EventStatus
		want     bool
	}{
		{EventStatusDraft, EventStatusScheduled, true},
		{EventStatusDraft, EventStatusCancelled, true},
		{EventStatusDraft, EventStatusCompleted, false},
		{EventStatusScheduled, EventStatusCompleted, true},
		{EventStatusScheduled, EventStatusCancelled, true},
		{EventStatusScheduled, EventStatusDraft, false},
		{EventStatusCancelled, EventStatusScheduled, false},
		{EventStatusCompleted, EventStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestVisibleTo(t *testing.T) {
	e := &Event{
		CreatorID: "alice",
		Invites: []EventInvite{
			{UserID: "bob", Status: InviteStatusAccepted},
			{UserID: "carol", Status: InviteStatusDeclined},
			{UserID: "dave", Status: InviteStatusPending},
		},
	}
	assert.True(t, e.VisibleTo("alice"))
	assert.True(t, e.VisibleTo("bob"))
	assert.False(t, e.VisibleTo("carol"))
	assert.True(t, e.VisibleTo("dave"))
	assert.False(t, e.VisibleTo("erin"))
	assert.Equal(t, []string{"bob", "dave"}, e.Participants())
}

func validEvent() *Event {
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	return &Event{
		Title:            "Dinner",
		CreatorID:        "alice",
		Start:            start,
		End:              start.Add(2 * time.Hour),
		Status:           EventStatusDraft,
		CostDistribution: CostDistribution{Total: 30, Type: DistributionEqual},
	}
}

func TestValidateEvent(t *testing.T) {
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(e *Event)
		wantErr bool
	}{
		{"valid", func(e *Event) {}, false},
		{"missing title", func(e *Event) { e.Title = "" }, true},
		{"end before start", func(e *Event) { e.End = e.Start.Add(-time.Minute) }, true},
		{"recurring without rule", func(e *Event) { e.IsRecurring = true }, true},
		{"zero interval", func(e *Event) {
			e.IsRecurring = true
			e.RecurrenceRule = &RecurrenceRule{Frequency: FrequencyWeekly}
		}, true},
		{"both terminators", func(e *Event) {
			e.IsRecurring = true
			e.RecurrenceRule = &RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1, EndDate: &later, Count: 3}
		}, true},
		{"end date before start", func(e *Event) {
			e.IsRecurring = true
			e.RecurrenceRule = &RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1, EndDate: &until}
		}, true},
		{"negative count", func(e *Event) {
			e.IsRecurring = true
			e.RecurrenceRule = &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1, Count: -1}
		}, true},
		{"unknown frequency", func(e *Event) {
			e.IsRecurring = true
			e.RecurrenceRule = &RecurrenceRule{Frequency: "hourly", Interval: 1}
		}, true},
		{"negative total", func(e *Event) { e.CostDistribution.Total = -1 }, true},
		{"duplicate invite", func(e *Event) {
			e.Invites = []EventInvite{
				{UserID: "bob", Status: InviteStatusPending},
				{UserID: "bob", Status: InviteStatusAccepted},
			}
		}, true},
		{"bad time zone", func(e *Event) { e.TimeZone = "Mars/Olympus" }, true},
		{"known time zone", func(e *Event) { e.TimeZone = "Europe/Berlin" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			err := ValidateEvent(e)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errdef.IsValidation(err), "expected validation error, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNotificationPayloadDecoding(t *testing.T) {
	occ := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	n := NewNotification("bob", EventCancelledPayload{EventID: "ev1", Occurrence: &occ}, "Event Cancelled", "Dinner was cancelled")

	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"event_cancelled"`)

	var got Notification
	require.NoError(t, json.Unmarshal(b, &got))
	payload, ok := got.Data.(EventCancelledPayload)
	require.True(t, ok, "payload has type %T", got.Data)
	assert.Equal(t, "ev1", payload.EventID)
	require.NotNil(t, payload.Occurrence)
	assert.True(t, occ.Equal(*payload.Occurrence))
	assert.Equal(t, "ev1", EventID(got.Data))
}

func TestDecodePayloadUnknownType(t *testing.T) {
	_, err := DecodePayload("friend_poke", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errdef.IsValidation(err))

	p, err := DecodePayload(NotificationChatMessage, nil)
	require.NoError(t, err)
	assert.Equal(t, ChatMessagePayload{}, p)
	assert.Empty(t, EventID(p))
}

func TestBudgetSnapshotHelpers(t *testing.T) {
	b := &Budget{Limit: 50, Spent: 60}
	assert.InDelta(t, -10, b.Remaining(), 1e-9)
	assert.True(t, b.OverLimit())

	unlimited := &Budget{Spent: 60}
	assert.False(t, unlimited.OverLimit())
}
