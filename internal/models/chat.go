package models

import (
	"slices"
	"time"
)

// MaxMessageLength is the longest chat message accepted, in runes.
const MaxMessageLength = 2000

// Chat is the message thread attached to one event.
type Chat struct {
	ID      string `json:"id"`
	EventID string `json:"eventId" validate:"required"`

	// Participants lists the members when the chat was opened. Access and
	// delivery follow the event's live invites.
	Participants []string `json:"participants"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is one message in a chat. ReadBy always contains the sender.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId" validate:"required"`
	SenderID  string    `json:"senderId" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	ReadBy    []string  `json:"readBy"`
}

// ReadByUser reports whether userID has read the message.
func (m *ChatMessage) ReadByUser(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}
