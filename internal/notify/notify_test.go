package notify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage/sqlite"
)

const wait = 2 * time.Second

func setup(t *testing.T) (*Manager, *Notifier, *sqlite.SQLiteStore, *LocalBus) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	bus := NewLocalBus()
	return NewManager(store, bus, metrics.New(prometheus.NewRegistry()), nil), NewNotifier(store, bus, nil), store, bus
}

// observe collects session states on a channel.
func observe(s *Session) <-chan State {
	ch := make(chan State, 16)
	s.Observe(func(st State) { ch <- st })
	return ch
}

func next(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(wait):
		t.Fatal("timed out waiting for state")
		return State{}
	}
}

var party = &models.Event{ID: "evt-1", Title: "Party"}

func TestLocalBusCoalescesAndCancels(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	ch, cancel, err := bus.Subscribe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("alice"))

	for range 3 {
		require.NoError(t, bus.Publish(ctx, "alice"))
	}
	require.NoError(t, bus.Publish(ctx, "bob"))

	<-ch
	select {
	case <-ch:
		t.Fatal("signals were not coalesced")
	default:
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers("alice"))
	require.NoError(t, bus.Publish(ctx, "alice"))
}

func TestLocalBusReleasesOnContextEnd(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := bus.Subscribe(ctx, "alice")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(wait):
		t.Fatal("subscription not released")
	}
	assert.Equal(t, 0, bus.Subscribers("alice"))
}

func TestHubWatch(t *testing.T) {
	_, notifier, store, bus := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := notifier.EventInvite(ctx, "alice", party)
	require.NoError(t, err)

	snapshots, err := NewHub(store, bus, nil).Watch(ctx, "alice")
	require.NoError(t, err)

	first := <-snapshots
	require.Len(t, first, 1)

	_, err = notifier.EventUpdate(ctx, "alice", party)
	require.NoError(t, err)
	second := <-snapshots
	require.Len(t, second, 2)
	assert.Equal(t, models.NotificationEventUpdate, second[0].Type)

	cancel()
	for range snapshots {
	}
}

func TestSessionStates(t *testing.T) {
	mgr, notifier, _, _ := setup(t)
	ctx := context.Background()

	s := mgr.Open("alice")
	defer s.Close()
	states := observe(s)

	require.NoError(t, s.Subscribe(ctx))
	assert.True(t, s.Subscribed())
	st := next(t, states)
	assert.Empty(t, st.Notifications)
	assert.Equal(t, 0, st.Unread)

	n1, err := notifier.EventInvite(ctx, "alice", party)
	require.NoError(t, err)
	assert.Equal(t, "You have been invited to Party", n1.Message)
	st = next(t, states)
	assert.Equal(t, 1, st.Unread)

	_, err = notifier.EventInvite(ctx, "bob", party)
	require.NoError(t, err)

	_, err = notifier.ChatMessage(ctx, "alice", "chat-1", "bob", "Bob", "see you there")
	require.NoError(t, err)
	st = next(t, states)
	assert.Equal(t, 2, st.Unread)
	assert.Equal(t, models.ChatMessagePayload{ChatID: "chat-1", SenderID: "bob"}, st.Notifications[0].Data)

	// No optimistic update: the read flag arrives through the subscription.
	require.NoError(t, s.MarkAsRead(ctx, n1.ID))
	st = next(t, states)
	assert.Equal(t, 1, st.Unread)
	assert.Equal(t, st, s.State())

	require.NoError(t, s.MarkAllAsRead(ctx))
	st = next(t, states)
	assert.Equal(t, 0, st.Unread)
	assert.Len(t, st.Notifications, 2)
}

func TestSessionMarkAsReadForeignNotification(t *testing.T) {
	mgr, notifier, _, _ := setup(t)
	ctx := context.Background()

	n, err := notifier.EventInvite(ctx, "bob", party)
	require.NoError(t, err)

	s := mgr.Open("alice")
	defer s.Close()
	err = s.MarkAsRead(ctx, n.ID)
	assert.True(t, errdef.IsNotFound(err), "got %v", err)
}

func TestSessionResubscribeKeepsOneSubscription(t *testing.T) {
	mgr, notifier, _, bus := setup(t)
	ctx := context.Background()

	s := mgr.Open("alice")
	states := observe(s)
	for range 3 {
		require.NoError(t, s.Subscribe(ctx))
		next(t, states)
	}
	assert.Equal(t, 1, bus.Subscribers("alice"))

	_, err := notifier.EventInvite(ctx, "alice", party)
	require.NoError(t, err)
	next(t, states)
	select {
	case <-states:
		t.Fatal("more than one subscription delivered the change")
	case <-time.After(50 * time.Millisecond):
	}

	s.Unsubscribe()
	assert.False(t, s.Subscribed())
	assert.Equal(t, 0, bus.Subscribers("alice"))

	s.Close()
	assert.True(t, errdef.IsValidation(s.Subscribe(ctx)))
}

func TestObserveCancel(t *testing.T) {
	mgr, notifier, _, _ := setup(t)
	ctx := context.Background()

	s := mgr.Open("alice")
	defer s.Close()
	kept := observe(s)
	dropped := make(chan State, 16)
	stop := s.Observe(func(st State) { dropped <- st })

	require.NoError(t, s.Subscribe(ctx))
	next(t, kept)
	next(t, dropped)

	stop()
	_, err := notifier.EventInvite(ctx, "alice", party)
	require.NoError(t, err)
	next(t, kept)
	assert.Empty(t, dropped)
}

type failingBus struct{ LocalBus }

func (*failingBus) Subscribe(context.Context, string) (<-chan struct{}, func(), error) {
	return nil, nil, errors.New("push channel unavailable")
}

func TestSubscribeFailureLeavesSessionUnsubscribed(t *testing.T) {
	mgr, _, store, _ := setup(t)
	ctx := context.Background()

	s := mgr.Open("alice")
	require.NoError(t, s.Subscribe(ctx))
	assert.True(t, s.Subscribed())

	// Swap in a bus that cannot subscribe: the old subscription is torn down first.
	broken := NewManager(store, &failingBus{}, nil, nil)
	s.mgr = broken
	require.Error(t, s.Subscribe(ctx))
	assert.False(t, s.Subscribed())
}

func TestEventCancelledMessages(t *testing.T) {
	_, notifier, _, _ := setup(t)
	ctx := context.Background()

	n, err := notifier.EventCancelled(ctx, "alice", party, nil)
	require.NoError(t, err)
	assert.Equal(t, "Event Cancelled", n.Title)
	assert.Equal(t, "Party has been cancelled", n.Message)

	day := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	n, err = notifier.EventCancelled(ctx, "alice", party, &day)
	require.NoError(t, err)
	assert.Equal(t, "Party on 2024-03-15 has been cancelled", n.Message)
	assert.Equal(t, "evt-1", models.EventID(n.Data))
}

func TestParticipants(t *testing.T) {
	_, notifier, store, _ := setup(t)
	ctx := context.Background()
	event := &models.Event{
		ID:    "evt-2",
		Title: "Hike",
		Invites: []models.EventInvite{
			{UserID: "alice", Status: models.InviteStatusAccepted},
			{UserID: "bob", Status: models.InviteStatusDeclined},
			{UserID: "carol", Status: models.InviteStatusPending},
		},
	}

	failed := notifier.Participants(ctx, event, "alice", func(ctx context.Context, userID string) (*models.Notification, error) {
		return notifier.EventUpdate(ctx, userID, event)
	})
	assert.Equal(t, 0, failed)

	for user, want := range map[string]int{"alice": 0, "bob": 0, "carol": 1} {
		list, err := store.ListNotifications(ctx, user)
		require.NoError(t, err)
		assert.Len(t, list, want, user)
	}
}

type fakePreferences struct {
	off map[string]models.NotificationType
	err error
}

func (f fakePreferences) Wants(_ context.Context, userID string, t models.NotificationType) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.off[userID] != t, nil
}

func TestNotifierSkipsTurnedOffNotifications(t *testing.T) {
	_, notifier, store, bus := setup(t)
	ctx := context.Background()
	notifier.WithPreferences(fakePreferences{off: map[string]models.NotificationType{"alice": models.NotificationChatMessage}})

	signals, cancel, err := bus.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer cancel()

	n, err := notifier.ChatMessage(ctx, "alice", "chat-1", "bob", "Bob", "hi")
	require.NoError(t, err)
	assert.Nil(t, n)
	select {
	case <-signals:
		t.Fatal("skipped notification was published")
	default:
	}

	n, err = notifier.EventInvite(ctx, "alice", party)
	require.NoError(t, err)
	require.NotNil(t, n)
	n, err = notifier.ChatMessage(ctx, "bob", "chat-1", "alice", "Alice", "hi")
	require.NoError(t, err)
	require.NotNil(t, n)

	list, err := store.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationEventInvite, list[0].Type)
}

func TestNotifierDeliversWhenPreferencesFail(t *testing.T) {
	_, notifier, store, _ := setup(t)
	ctx := context.Background()
	notifier.WithPreferences(fakePreferences{err: errors.New("store down")})

	n, err := notifier.EventUpdate(ctx, "alice", party)
	require.NoError(t, err)
	require.NotNil(t, n)

	list, err := store.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRedisBus(t *testing.T) {
	addr := os.Getenv("GATHERLY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GATHERLY_TEST_REDIS_ADDR not set")
	}
	client, err := NewRedis(addr)
	require.NoError(t, err)
	defer client.Close()

	bus := NewRedisBus(client, nil)
	ctx := context.Background()
	user := "redis-test-" + time.Now().Format("150405.000000")

	ch, cancel, err := bus.Subscribe(ctx, user)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, user))

	select {
	case <-ch:
	case <-time.After(wait):
		t.Fatal("no signal from redis")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(wait):
		t.Fatal("channel not closed after cancel")
	}
}
