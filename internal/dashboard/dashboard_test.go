package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

var errDown = errdef.NewTransientStore("failed to query: %w", errors.New("connection refused"))

type fakeEvents struct {
	created, invited       []*models.Event
	createdErr, invitedErr error
}

func (f *fakeEvents) ListEventsByCreator(context.Context, string) ([]*models.Event, error) {
	return f.created, f.createdErr
}

func (f *fakeEvents) ListEventsByInvitee(context.Context, string) ([]*models.Event, error) {
	return f.invited, f.invitedErr
}

type fakeBudgets struct {
	budget *models.Budget
	err    error
}

func (f *fakeBudgets) Current(context.Context, string) (*models.Budget, error) {
	return f.budget, f.err
}

type fakeFriends struct {
	friends []*models.Friend
	err     error
}

func (f *fakeFriends) ListFriends(context.Context, string) ([]*models.Friend, error) {
	return f.friends, f.err
}

type fakeNotifications struct {
	list []*models.Notification
	err  error
}

func (f *fakeNotifications) ListNotifications(context.Context, string) ([]*models.Notification, error) {
	return f.list, f.err
}

func event(id, creator string, start time.Time, status models.EventStatus) *models.Event {
	return &models.Event{
		ID:        id,
		Title:     id,
		CreatorID: creator,
		Start:     start,
		End:       start.Add(time.Hour),
		Status:    status,
	}
}

func weekly(e *models.Event) *models.Event {
	e.IsRecurring = true
	e.RecurrenceRule = &models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1}
	return e
}

func fixture() *Aggregator {
	invitedEvent := event("dinner", "bob", now.Add(48*time.Hour), models.EventStatusScheduled)
	invitedEvent.Invites = []models.EventInvite{{UserID: "alice", Status: models.InviteStatusAccepted}}

	return &Aggregator{
		Events: &fakeEvents{
			created: []*models.Event{
				event("past", "alice", now.Add(-48*time.Hour), models.EventStatusScheduled),
				event("draft", "alice", now.Add(24*time.Hour), models.EventStatusDraft),
				weekly(event("yoga", "alice", now.Add(-6*24*time.Hour), models.EventStatusScheduled)),
				event("far", "alice", now.Add(400*24*time.Hour), models.EventStatusScheduled),
			},
			invited: []*models.Event{invitedEvent},
		},
		Budgets: &fakeBudgets{budget: &models.Budget{Month: "2024-03", Limit: 100, Spent: 40}},
		Friends: &fakeFriends{friends: []*models.Friend{{FriendID: "bob"}, {FriendID: "carol"}}},
		Notifications: &fakeNotifications{list: []*models.Notification{
			{ID: "n1"}, {ID: "n2", Read: true}, {ID: "n3"},
		}},
		Now: func() time.Time { return now },
	}
}

func TestBuild(t *testing.T) {
	s := fixture().Build(context.Background(), "alice")

	assert.Empty(t, s.Degraded)
	require.Len(t, s.Upcoming, 2)
	assert.Equal(t, "yoga", s.Upcoming[0].Event.ID)
	assert.True(t, now.Add(24*time.Hour).Equal(s.Upcoming[0].Start))
	assert.Equal(t, "dinner", s.Upcoming[1].Event.ID)

	assert.Equal(t, 2, s.Unread)
	assert.Equal(t, 2, s.FriendCount)
	require.NotNil(t, s.Budget)
	assert.Equal(t, 60.0, s.Budget.Remaining)
}

func TestBuildLimitsUpcoming(t *testing.T) {
	a := fixture()
	a.UpcomingLimit = 1
	s := a.Build(context.Background(), "alice")
	require.Len(t, s.Upcoming, 1)
	assert.Equal(t, "yoga", s.Upcoming[0].Event.ID)
}

func TestBuildSubstitutesDefaults(t *testing.T) {
	a := fixture()
	a.Events.(*fakeEvents).createdErr = errDown
	a.Budgets = &fakeBudgets{err: errDown}
	a.Friends = &fakeFriends{friends: []*models.Friend{{FriendID: "bob"}}, err: errDown}
	a.Notifications = &fakeNotifications{err: errDown}

	s := a.Build(context.Background(), "alice")

	assert.ElementsMatch(t, []string{SourceCreatedEvents, SourceBudget, SourceFriends, SourceNotifications}, s.Degraded)
	require.Len(t, s.Upcoming, 1)
	assert.Equal(t, "dinner", s.Upcoming[0].Event.ID)
	assert.Nil(t, s.Budget)
	assert.Zero(t, s.FriendCount)
	assert.Zero(t, s.Unread)
}

func TestBuildDeduplicatesAndHidesEvents(t *testing.T) {
	a := fixture()
	events := a.Events.(*fakeEvents)
	// The creator also holds an invite to their own event.
	events.invited = append(events.invited, events.created[2])
	declined := event("brunch", "bob", now.Add(72*time.Hour), models.EventStatusScheduled)
	declined.Invites = []models.EventInvite{{UserID: "alice", Status: models.InviteStatusDeclined}}
	events.invited = append(events.invited, declined)

	s := a.Build(context.Background(), "alice")

	assert.Empty(t, s.Degraded)
	ids := make([]string, 0, len(s.Upcoming))
	for _, o := range s.Upcoming {
		ids = append(ids, o.Event.ID)
	}
	assert.Equal(t, []string{"yoga", "dinner"}, ids)
}

func TestBuildReportsBothEventReads(t *testing.T) {
	a := fixture()
	a.Events.(*fakeEvents).createdErr = errDown
	a.Events.(*fakeEvents).invitedErr = errDown

	s := a.Build(context.Background(), "alice")

	assert.Equal(t, []string{SourceCreatedEvents, SourceInvitedEvents}, s.Degraded)
	assert.Empty(t, s.Upcoming)
	assert.Equal(t, 2, s.FriendCount)
}

func TestBuildWithoutBudget(t *testing.T) {
	a := fixture()
	a.Budgets = &fakeBudgets{}
	s := a.Build(context.Background(), "alice")
	assert.Empty(t, s.Degraded)
	assert.Nil(t, s.Budget)
}
