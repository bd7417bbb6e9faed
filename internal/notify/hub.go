package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Hub turns bus signals into notification list snapshots.
type Hub struct {
	store  storage.NotificationStore
	bus    Bus
	logger *slog.Logger
}

// NewHub creates a Hub reading from store and woken by bus. logger may be nil.
func NewHub(store storage.NotificationStore, bus Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{store: store, bus: bus, logger: logger}
}

// Watch streams userID's notifications, newest first. The current list is
// sent first, followed by a fresh list after every change. Snapshots are sent
// from a single goroutine in the order they were read and must not be
// modified by the receiver. The channel is closed when ctx ends.
func (h *Hub) Watch(ctx context.Context, userID string) (<-chan []*models.Notification, error) {
	// Subscribe before the first read so no change between the two is missed.
	signals, cancel, err := h.bus.Subscribe(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to watch notifications: %w", err)
	}
	initial, err := h.store.ListNotifications(ctx, userID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch notifications: %w", err)
	}

	out := make(chan []*models.Notification, 1)
	go func() {
		defer close(out)
		defer cancel()

		send := func(list []*models.Notification) bool {
			select {
			case out <- list:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(initial) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				list, err := h.store.ListNotifications(ctx, userID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("Failed to refresh notifications", "user_id", userID, "error", err)
					continue
				}
				if !send(list) {
					return
				}
			}
		}
	}()
	return out, nil
}
