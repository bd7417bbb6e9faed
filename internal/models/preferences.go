package models

import "time"

// NotificationPreferences toggles each kind of notification.
type NotificationPreferences struct {
	NewInvite     bool `json:"newInvite"`
	EventUpdate   bool `json:"eventUpdate"`
	ChatMessage   bool `json:"chatMessage"`
	EventReminder bool `json:"eventReminder"`
}

// Preferences are one user's settings.
type Preferences struct {
	UserID        string                  `json:"userId" validate:"required"`
	Language      string                  `json:"language" validate:"oneof=en fr"`
	Notifications NotificationPreferences `json:"notifications"`

	// DefaultCalendarView is the view shown when a request names none.
	DefaultCalendarView string `json:"defaultCalendarView" validate:"oneof=month week list"`

	// Timezone is the IANA zone calendar grids are laid out in. Empty means
	// the server default.
	Timezone string `json:"timezone" validate:"omitempty,timezone"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultPreferences returns the settings of a user who never saved any.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:   userID,
		Language: "en",
		Notifications: NotificationPreferences{
			NewInvite:     true,
			EventUpdate:   true,
			ChatMessage:   true,
			EventReminder: true,
		},
		DefaultCalendarView: "month",
	}
}

// Wants reports whether the user accepts notifications of type t.
func (p *Preferences) Wants(t NotificationType) bool {
	switch t {
	case NotificationEventInvite:
		return p.Notifications.NewInvite
	case NotificationEventUpdate, NotificationEventCancelled:
		return p.Notifications.EventUpdate
	case NotificationChatMessage:
		return p.Notifications.ChatMessage
	}
	return true
}
