// Package chat runs the message thread attached to each event.
//
// Everyone who can see the event can read and post in its chat: the creator
// and every invitee who has not declined. New messages are pushed to watchers
// over the notification bus under a per-chat topic, and every other member
// gets a chat_message notification.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/notify"
	"github.com/mmynk/gatherly/internal/storage"
)

// PreviewLength is the number of runes of a message quoted in its notification.
const PreviewLength = 80

// Store is the part of storage.Store chats need.
type Store interface {
	storage.ChatStore
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// Service opens chats and carries their messages.
type Service struct {
	store    Store
	notifier *notify.Notifier
	bus      notify.Bus
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. logger may be nil.
func New(store Store, notifier *notify.Notifier, bus notify.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, bus: bus, logger: logger, now: time.Now}
}

// Topic is the bus key signalled when a chat gets a message.
func Topic(chatID string) string {
	return "chat:" + chatID
}

// members returns the creator followed by every participant of e.
func members(e *models.Event) []string {
	out := []string{e.CreatorID}
	for _, id := range e.Participants() {
		if id != e.CreatorID {
			out = append(out, id)
		}
	}
	return out
}

// NewID returns a fresh chat id, so an event can carry its chat reference
// before the chat is stored.
func NewID() string {
	return uuid.New().String()
}

// Open creates the chat of e, using e.ChatID as its id when set.
func (s *Service) Open(ctx context.Context, e *models.Event) (*models.Chat, error) {
	c := &models.Chat{
		ID:           e.ChatID,
		EventID:      e.ID,
		Participants: members(e),
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to open chat for event %s: %w", e.ID, err)
	}
	return c, nil
}

// ForEvent returns the chat of eventID as seen by userID, opening it if the
// event has none yet.
func (s *Service) ForEvent(ctx context.Context, userID, eventID string) (*models.Chat, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.VisibleTo(userID) {
		return nil, errdef.NewNotFound("event %s not found", eventID)
	}
	c, err := s.store.GetChatByEvent(ctx, eventID)
	if err != nil || c != nil {
		return c, err
	}
	c, err = s.Open(ctx, e)
	if errdef.IsConflict(err) {
		// Opened concurrently.
		return s.store.GetChatByEvent(ctx, eventID)
	}
	return c, err
}

// access loads a chat and its event, hiding both from users who cannot see
// the event.
func (s *Service) access(ctx context.Context, userID, chatID string) (*models.Chat, *models.Event, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.store.GetEvent(ctx, c.EventID)
	if errdef.IsNotFound(err) {
		return nil, nil, errdef.NewNotFound("chat not found: %s", chatID)
	}
	if err != nil {
		return nil, nil, err
	}
	if !e.VisibleTo(userID) {
		return nil, nil, errdef.NewNotFound("chat not found: %s", chatID)
	}
	return c, e, nil
}

// Send posts content as userID. The sender has read their own message. Every
// other member is notified; a failed notification does not fail the send.
func (s *Service) Send(ctx context.Context, userID, senderName, chatID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errdef.NewValidation("message is empty")
	}
	if n := utf8.RuneCountInString(content); n > models.MaxMessageLength {
		return nil, errdef.NewValidation("message has %d characters, at most %d are allowed", n, models.MaxMessageLength)
	}
	c, e, err := s.access(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChatID:    c.ID,
		SenderID:  userID,
		Content:   content,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		ReadBy:    []string{userID},
	}
	if err := s.store.AddChatMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if err := s.bus.Publish(ctx, Topic(c.ID)); err != nil {
		s.logger.Warn("Failed to publish chat change", "chat_id", c.ID, "error", err)
	}

	if senderName == "" {
		senderName = userID
	}
	preview := Preview(content)
	for _, to := range members(e) {
		if to == userID {
			continue
		}
		if _, err := s.notifier.ChatMessage(ctx, to, c.ID, userID, senderName, preview); err != nil {
			s.logger.Warn("Failed to notify chat member", "chat_id", c.ID, "user_id", to, "error", err)
		}
	}
	return msg, nil
}

// Messages returns the chat's messages, oldest first.
func (s *Service) Messages(ctx context.Context, userID, chatID string) ([]*models.ChatMessage, error) {
	if _, _, err := s.access(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.store.ListChatMessages(ctx, chatID)
}

// MarkRead records that userID read messageID. Repeating it is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, chatID, messageID string) error {
	if _, _, err := s.access(ctx, userID, chatID); err != nil {
		return err
	}
	return s.store.MarkChatMessageRead(ctx, chatID, messageID, userID)
}

// Watch streams the chat's messages, oldest first. The current list is sent
// first, followed by a fresh list after every new message. The channel is
// closed when ctx ends.
func (s *Service) Watch(ctx context.Context, userID, chatID string) (<-chan []*models.ChatMessage, error) {
	if _, _, err := s.access(ctx, userID, chatID); err != nil {
		return nil, err
	}
	// Subscribe before the first read so no message between the two is missed.
	signals, cancel, err := s.bus.Subscribe(ctx, Topic(chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to watch chat: %w", err)
	}
	initial, err := s.store.ListChatMessages(ctx, chatID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch chat: %w", err)
	}

	out := make(chan []*models.ChatMessage, 1)
	go func() {
		defer close(out)
		defer cancel()

		send := func(list []*models.ChatMessage) bool {
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
				list, err := s.store.ListChatMessages(ctx, chatID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("Failed to refresh chat", "chat_id", chatID, "error", err)
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

// Preview shortens content to PreviewLength runes.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLength-1]) + "…"
}
