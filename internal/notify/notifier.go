package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Preferences tells whether a user accepts a kind of notification.
type Preferences interface {
	Wants(ctx context.Context, userID string, t models.NotificationType) (bool, error)
}

// Notifier creates typed notifications and signals their recipients.
type Notifier struct {
	store  storage.NotificationStore
	bus    Bus
	prefs  Preferences
	logger *slog.Logger
}

// NewNotifier creates a Notifier that delivers every notification. logger may be nil.
func NewNotifier(store storage.NotificationStore, bus Bus, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{store: store, bus: bus, logger: logger}
}

// WithPreferences makes n skip notifications their recipient turned off.
// Builders then return a nil notification and a nil error for skipped ones.
func (n *Notifier) WithPreferences(p Preferences) *Notifier {
	n.prefs = p
	return n
}

// EventInvite tells inviteeID they were invited to event.
func (n *Notifier) EventInvite(ctx context.Context, inviteeID string, event *models.Event) (*models.Notification, error) {
	return n.create(ctx, models.NewNotification(inviteeID,
		models.EventInvitePayload{EventID: event.ID},
		"New Event Invitation",
		fmt.Sprintf("You have been invited to %s", event.Title),
	))
}

// EventUpdate tells userID that event changed.
func (n *Notifier) EventUpdate(ctx context.Context, userID string, event *models.Event) (*models.Notification, error) {
	return n.create(ctx, models.NewNotification(userID,
		models.EventUpdatePayload{EventID: event.ID},
		"Event Updated",
		fmt.Sprintf("%s has been updated", event.Title),
	))
}

// EventCancelled notifies userID that event, or the single occurrence on
// occurrence when it is non-nil, was called off.
func (n *Notifier) EventCancelled(ctx context.Context, userID string, event *models.Event, occurrence *time.Time) (*models.Notification, error) {
	message := fmt.Sprintf("%s has been cancelled", event.Title)
	if occurrence != nil {
		message = fmt.Sprintf("%s on %s has been cancelled", event.Title, occurrence.In(event.Location()).Format(time.DateOnly))
	}
	return n.create(ctx, models.NewNotification(userID,
		models.EventCancelledPayload{EventID: event.ID, Occurrence: occurrence},
		"Event Cancelled",
		message,
	))
}

// ChatMessage tells userID that senderName posted preview in chatID.
func (n *Notifier) ChatMessage(ctx context.Context, userID, chatID, senderID, senderName, preview string) (*models.Notification, error) {
	return n.create(ctx, models.NewNotification(userID,
		models.ChatMessagePayload{ChatID: chatID, SenderID: senderID},
		"New Message",
		fmt.Sprintf("%s: %s", senderName, preview),
	))
}

// Participants notifies every participant of event except skipUserID using
// build. Failures are logged and counted; the rest are still attempted.
func (n *Notifier) Participants(ctx context.Context, event *models.Event, skipUserID string, build func(ctx context.Context, userID string) (*models.Notification, error)) int {
	failed := 0
	for _, userID := range event.Participants() {
		if userID == skipUserID {
			continue
		}
		if _, err := build(ctx, userID); err != nil {
			failed++
			n.logger.Warn("Failed to notify participant", "event_id", event.ID, "user_id", userID, "error", err)
		}
	}
	return failed
}

func (n *Notifier) create(ctx context.Context, notification *models.Notification) (*models.Notification, error) {
	if !n.wanted(ctx, notification) {
		n.logger.Debug("Notification turned off by recipient", "user_id", notification.UserID, "type", notification.Type)
		return nil, nil
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if err := n.bus.Publish(ctx, notification.UserID); err != nil {
		n.logger.Warn("Failed to publish notification change", "user_id", notification.UserID, "error", err)
	}
	return notification, nil
}

// wanted consults the recipient's preferences. A failed lookup delivers the
// notification.
func (n *Notifier) wanted(ctx context.Context, notification *models.Notification) bool {
	if n.prefs == nil {
		return true
	}
	ok, err := n.prefs.Wants(ctx, notification.UserID, notification.Type)
	if err != nil {
		n.logger.Warn("Failed to read notification preferences", "user_id", notification.UserID, "error", err)
		return true
	}
	return ok
}
