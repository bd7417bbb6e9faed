package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage/sqlite"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func create(t *testing.T, store *sqlite.SQLiteStore, e *models.Event) {
	t.Helper()
	require.NoError(t, store.CreateEvent(context.Background(), e))
}

func TestSweep(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	day := 24 * time.Hour
	create(t, store, &models.Event{
		ID: "past", Title: "Past", CreatorID: "alice", Status: models.EventStatusScheduled,
		Start: now.Add(-2 * day), End: now.Add(-2*day + time.Hour),
	})
	create(t, store, &models.Event{
		ID: "running", Title: "Running", CreatorID: "alice", Status: models.EventStatusScheduled,
		Start: now.Add(-time.Hour), End: now.Add(time.Hour),
	})
	create(t, store, &models.Event{
		ID: "draft", Title: "Draft", CreatorID: "alice", Status: models.EventStatusDraft,
		Start: now.Add(-2 * day), End: now.Add(-2*day + time.Hour),
	})
	create(t, store, &models.Event{
		ID: "counted", Title: "Counted", CreatorID: "alice", Status: models.EventStatusScheduled,
		Start: now.Add(-30 * day), End: now.Add(-30*day + time.Hour),
		IsRecurring:    true,
		RecurrenceRule: &models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1, Count: 2},
	})
	create(t, store, &models.Event{
		ID: "forever", Title: "Forever", CreatorID: "alice", Status: models.EventStatusScheduled,
		Start: now.Add(-30 * day), End: now.Add(-30*day + time.Hour),
		IsRecurring:    true,
		RecurrenceRule: &models.RecurrenceRule{Frequency: models.FrequencyWeekly, Interval: 1},
	})

	reg := prometheus.NewRegistry()
	s := &Sweeper{Events: store, Metrics: metrics.New(reg), Now: func() time.Time { return now }}
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := map[string]models.EventStatus{
		"past":    models.EventStatusCompleted,
		"running": models.EventStatusScheduled,
		"draft":   models.EventStatusDraft,
		"counted": models.EventStatusCompleted,
		"forever": models.EventStatusScheduled,
	}
	for id, status := range want {
		e, err := store.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, e.Status, id)
	}

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddSweepRejectsBadSpec(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.AddSweep(context.Background(), "not a spec", &Sweeper{}))
	require.NoError(t, s.AddSweep(context.Background(), "", &Sweeper{}))
	s.Start()
	s.Stop()
}
