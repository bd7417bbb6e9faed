// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/gatherly/internal/models"
)

// Store defines the interface for every collection the engine reads and writes.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer.
type Store interface {
	EventStore
	FriendStore
	GroupStore
	BudgetStore
	NotificationStore
	ChatStore
	TemplateStore
	PreferenceStore

	// Close releases any resources held by the store.
	Close() error
}

// EventStore persists events together with their invites and locations.
type EventStore interface {
	// CreateEvent persists a new event. ID and timestamps are populated by the store
	// when unset.
	CreateEvent(ctx context.Context, event *models.Event) error

	// GetEvent retrieves an event by its ID.
	// Returns a NotFound error if the event does not exist.
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)

	// UpdateEvent replaces an existing event.
	// Returns a NotFound error if the event does not exist.
	UpdateEvent(ctx context.Context, event *models.Event) error

	DeleteEvent(ctx context.Context, eventID string) error

	// ListEventsByCreator returns events created by userID, ordered by start.
	ListEventsByCreator(ctx context.Context, userID string) ([]*models.Event, error)

	// ListEventsByInvitee returns events holding an invite for userID, ordered by start.
	ListEventsByInvitee(ctx context.Context, userID string) ([]*models.Event, error)

	// ListEventsByStatus returns every event in the given status, ordered by start.
	ListEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error)

	// AddCancelledOccurrence records a called-off occurrence date without
	// rewriting the rest of the event.
	AddCancelledOccurrence(ctx context.Context, eventID string, date time.Time) error
}

// FriendStore persists directional friendship edges.
type FriendStore interface {
	// PutFriend creates or replaces the edge userID -> friendID.
	PutFriend(ctx context.Context, friend *models.Friend) error

	// GetFriend returns the edge userID -> friendID, or nil if there is none.
	GetFriend(ctx context.Context, userID, friendID string) (*models.Friend, error)

	DeleteFriend(ctx context.Context, userID, friendID string) error

	// ListFriends returns userID's outgoing edges with the given status.
	// An empty status returns every edge.
	ListFriends(ctx context.Context, userID string, status models.FriendStatus) ([]*models.Friend, error)

	// ListIncomingRequests returns pending edges pointing at userID.
	ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friend, error)
}

// GroupStore persists friend groups. Member changes are set operations and
// therefore idempotent.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.FriendGroup) error

	// GetGroup returns a NotFound error if the group does not exist.
	GetGroup(ctx context.Context, groupID string) (*models.FriendGroup, error)

	ListGroups(ctx context.Context, userID string) ([]*models.FriendGroup, error)

	// DeleteGroup removes the group record only; friend edges are untouched.
	DeleteGroup(ctx context.Context, groupID string) error

	AddGroupMember(ctx context.Context, groupID, friendID string) error
	RemoveGroupMember(ctx context.Context, groupID, friendID string) error
}

// BudgetStore persists monthly budgets.
type BudgetStore interface {
	// GetBudget returns the budget for userID and month, or nil if none exists.
	GetBudget(ctx context.Context, userID, month string) (*models.Budget, error)

	// ListBudgets returns userID's budgets, newest month first.
	ListBudgets(ctx context.Context, userID string) ([]*models.Budget, error)

	// SetBudgetLimit creates the budget if needed and sets its limit.
	SetBudgetLimit(ctx context.Context, userID, month string, limit float64) (*models.Budget, error)

	// AddBudgetEvent appends entry to the month's budget and increments spent by
	// entry.Cost in one atomic operation, creating the budget if needed.
	AddBudgetEvent(ctx context.Context, userID, month string, entry models.BudgetEvent) (*models.Budget, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications returns userID's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)

	// MarkNotificationRead returns a NotFound error if the notification does not exist.
	MarkNotificationRead(ctx context.Context, notificationID string) error

	// MarkAllNotificationsRead marks every unread notification of userID as read.
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// ChatStore persists event chats and their messages.
type ChatStore interface {
	// CreateChat persists a new chat. A second chat for the same event is a
	// Conflict.
	CreateChat(ctx context.Context, chat *models.Chat) error

	// GetChat returns a NotFound error if the chat does not exist.
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)

	// GetChatByEvent returns the chat of eventID, or nil if it has none.
	GetChatByEvent(ctx context.Context, eventID string) (*models.Chat, error)

	// AddChatMessage appends msg and bumps the chat's updated time.
	AddChatMessage(ctx context.Context, msg *models.ChatMessage) error

	// ListChatMessages returns the chat's messages, oldest first.
	ListChatMessages(ctx context.Context, chatID string) ([]*models.ChatMessage, error)

	// MarkChatMessageRead adds userID to the message's readers. It is
	// idempotent and returns a NotFound error if the message does not exist.
	MarkChatMessageRead(ctx context.Context, chatID, messageID, userID string) error
}

// TemplateStore persists event templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *models.EventTemplate) error

	// GetTemplate returns a NotFound error if the template does not exist.
	GetTemplate(ctx context.Context, templateID string) (*models.EventTemplate, error)

	// ListTemplates returns the templates userID created plus every public
	// template, ordered by name.
	ListTemplates(ctx context.Context, userID string) ([]*models.EventTemplate, error)

	DeleteTemplate(ctx context.Context, templateID string) error
}

// PreferenceStore persists user preferences.
type PreferenceStore interface {
	// GetPreferences returns userID's saved preferences, or nil if none were saved.
	GetPreferences(ctx context.Context, userID string) (*models.Preferences, error)

	// PutPreferences creates or replaces the preferences of p.UserID.
	PutPreferences(ctx context.Context, p *models.Preferences) error
}
