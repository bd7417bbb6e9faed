package calendar

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/gatherly/internal/models"
)

// Names of the event reads reported as degraded by Load.
const (
	SourceCreatedEvents = "createdEvents"
	SourceInvitedEvents = "invitedEvents"
)

// EventLister is the part of the event store the loader needs.
type EventLister interface {
	ListEventsByCreator(ctx context.Context, userID string) ([]*models.Event, error)
	ListEventsByInvitee(ctx context.Context, userID string) ([]*models.Event, error)
}

// Loader fetches the events visible to a user.
type Loader struct {
	Events EventLister
	Logger *slog.Logger
}

// Load fetches created and invited events concurrently. A failed fetch is
// logged and treated as empty; its name is returned in degraded.
func (l *Loader) Load(ctx context.Context, userID string) (events []*models.Event, degraded []string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var created, invited []*models.Event
	var createdErr, invitedErr error

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		created, createdErr = l.Events.ListEventsByCreator(ctx, userID)
		return nil
	})
	g.Go(func() error {
		invited, invitedErr = l.Events.ListEventsByInvitee(ctx, userID)
		return nil
	})
	_ = g.Wait()

	if createdErr != nil {
		logger.Warn("failed to load created events", "user_id", userID, "error", createdErr)
		degraded = append(degraded, SourceCreatedEvents)
		created = nil
	}
	if invitedErr != nil {
		logger.Warn("failed to load invited events", "user_id", userID, "error", invitedErr)
		degraded = append(degraded, SourceInvitedEvents)
		invited = nil
	}

	seen := make(map[string]bool, len(created)+len(invited))
	merged := make([]*models.Event, 0, len(created)+len(invited))
	for _, list := range [][]*models.Event{created, invited} {
		for _, e := range list {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	return Visible(userID, merged), degraded
}
