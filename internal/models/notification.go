package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/gatherly/internal/errdef"
)

// NotificationType discriminates the notification payload.
type NotificationType string

const (
	NotificationEventInvite    NotificationType = "event_invite"
	NotificationEventUpdate    NotificationType = "event_update"
	NotificationEventCancelled NotificationType = "event_cancelled"
	NotificationChatMessage    NotificationType = "chat_message"
)

// Payload is the type-specific data of a notification.
type Payload interface {
	NotificationType() NotificationType
}

type EventInvitePayload struct {
	EventID string `json:"eventId"`
}

type EventUpdatePayload struct {
	EventID string `json:"eventId"`
}

// EventCancelledPayload names the event and, when a single occurrence was
// called off, which one.
type EventCancelledPayload struct {
	EventID    string     `json:"eventId"`
	Occurrence *time.Time `json:"occurrence,omitempty"`
}

type ChatMessagePayload struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
}

func (EventInvitePayload) NotificationType() NotificationType    { return NotificationEventInvite }
func (EventUpdatePayload) NotificationType() NotificationType    { return NotificationEventUpdate }
func (EventCancelledPayload) NotificationType() NotificationType { return NotificationEventCancelled }
func (ChatMessagePayload) NotificationType() NotificationType    { return NotificationChatMessage }

// Notification is a typed message for one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      Payload          `json:"data"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewNotification builds an unread notification whose type follows the payload.
func NewNotification(userID string, data Payload, title, message string) *Notification {
	return &Notification{
		UserID:  userID,
		Type:    data.NotificationType(),
		Title:   title,
		Message: message,
		Data:    data,
	}
}

type notificationJSON struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UnmarshalJSON decodes data into the payload type named by the type field.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var raw notificationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*n = Notification{
		ID:        raw.ID,
		UserID:    raw.UserID,
		Type:      raw.Type,
		Title:     raw.Title,
		Message:   raw.Message,
		Data:      data,
		Read:      raw.Read,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// DecodePayload decodes a JSON payload for the given type. An empty payload
// yields the zero value of that type.
func DecodePayload(t NotificationType, raw []byte) (Payload, error) {
	var p Payload
	switch t {
	case NotificationEventInvite:
		p = &EventInvitePayload{}
	case NotificationEventUpdate:
		p = &EventUpdatePayload{}
	case NotificationEventCancelled:
		p = &EventCancelledPayload{}
	case NotificationChatMessage:
		p = &ChatMessagePayload{}
	default:
		return nil, errdef.NewValidation("unknown notification type %q", t)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *EventInvitePayload:
		return *v
	case *EventUpdatePayload:
		return *v
	case *EventCancelledPayload:
		return *v
	case *ChatMessagePayload:
		return *v
	}
	return p
}

// EventID returns the event a payload refers to, if any.
func EventID(p Payload) string {
	switch v := p.(type) {
	case EventInvitePayload:
		return v.EventID
	case EventUpdatePayload:
		return v.EventID
	case EventCancelledPayload:
		return v.EventID
	}
	return ""
}
