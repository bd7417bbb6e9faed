// Package dashboard assembles a user's home screen from independent reads.
package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/gatherly/internal/budget"
	"github.com/mmynk/gatherly/internal/calendar"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/recurrence"
)

const (
	DefaultUpcomingLimit = 5
	DefaultHorizon       = 365 * 24 * time.Hour
)

// Names reported in Summary.Degraded.
const (
	SourceCreatedEvents = calendar.SourceCreatedEvents
	SourceInvitedEvents = calendar.SourceInvitedEvents
	SourceBudget        = "budget"
	SourceFriends       = "friends"
	SourceNotifications = "notifications"
)

type BudgetReader interface {
	Current(ctx context.Context, userID string) (*models.Budget, error)
}

type FriendLister interface {
	ListFriends(ctx context.Context, userID string) ([]*models.Friend, error)
}

type NotificationLister interface {
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
}

// Summary is the dashboard for one user.
type Summary struct {
	Upcoming    []recurrence.Occurrence `json:"upcoming"`
	Unread      int                     `json:"unread"`
	Budget      *budget.Snapshot        `json:"budget,omitempty"`
	FriendCount int                     `json:"friendCount"`

	// Degraded names the reads that failed and were replaced by defaults.
	Degraded []string `json:"degraded,omitempty"`
}

// Aggregator builds summaries.
type Aggregator struct {
	Events        calendar.EventLister
	Budgets       BudgetReader
	Friends       FriendLister
	Notifications NotificationLister

	Expander      recurrence.Expander
	UpcomingLimit int
	Horizon       time.Duration
	Logger        *slog.Logger

	Now func() time.Time
}

// Build runs every read concurrently and waits for all of them. A failed
// read never fails the summary. Events are loaded the same way the calendar
// loads them.
func (a *Aggregator) Build(ctx context.Context, userID string) *Summary {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	loader := calendar.Loader{Events: a.Events, Logger: logger}

	var (
		events        []*models.Event
		degraded      []string
		current       *models.Budget
		friends       []*models.Friend
		notifications []*models.Notification

		budgetErr, friendsErr, notificationsErr error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, degraded = loader.Load(ctx, userID)
		return nil
	})
	g.Go(func() error {
		current, budgetErr = a.Budgets.Current(ctx, userID)
		return nil
	})
	g.Go(func() error {
		friends, friendsErr = a.Friends.ListFriends(ctx, userID)
		return nil
	})
	g.Go(func() error {
		notifications, notificationsErr = a.Notifications.ListNotifications(ctx, userID)
		return nil
	})
	_ = g.Wait()

	summary := &Summary{Degraded: degraded}
	failed := func(source string, err error) bool {
		if err == nil {
			return false
		}
		summary.Degraded = append(summary.Degraded, source)
		logger.Warn("Dashboard read failed", "user_id", userID, "source", source, "error", err)
		return true
	}

	summary.Upcoming = a.upcoming(events, now)
	if !failed(SourceBudget, budgetErr) {
		summary.Budget = budget.NewSnapshot(current)
	}
	if !failed(SourceFriends, friendsErr) {
		summary.FriendCount = len(friends)
	}
	if !failed(SourceNotifications, notificationsErr) {
		for _, n := range notifications {
			if !n.Read {
				summary.Unread++
			}
		}
	}
	return summary
}

// upcoming returns the next occurrence of each scheduled event within the
// horizon, soonest first. events must already be deduplicated and visible.
func (a *Aggregator) upcoming(events []*models.Event, now time.Time) []recurrence.Occurrence {
	horizon := a.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	limit := a.UpcomingLimit
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}

	upcoming := []recurrence.Occurrence{}
	for _, e := range events {
		if e.Status != models.EventStatusScheduled {
			continue
		}
		next, ok := a.Expander.Next(e, now)
		if !ok || next.Start.After(now.Add(horizon)) {
			continue
		}
		upcoming = append(upcoming, next)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Start.Before(upcoming[j].Start)
	})
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}
