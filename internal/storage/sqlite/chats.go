package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

const chatColumns = "id, event_id, participants, created_ms, updated_ms"

func scanChat(sc scanner) (*models.Chat, error) {
	c := &models.Chat{}
	var participants string
	var createdMs, updatedMs int64
	if err := sc.Scan(&c.ID, &c.EventID, &participants, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	if err := fromJSON(participants, &c.Participants); err != nil {
		return nil, err
	}
	c.Participants = nonNil(c.Participants)
	c.CreatedAt, c.UpdatedAt = fromMillis(createdMs), fromMillis(updatedMs)
	return c, nil
}

// CreateChat persists a new chat. The event must exist.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	participants, err := toJSON(nonNil(chat.Participants))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chats ("+chatColumns+") VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		chat.ID, chat.EventID, participants, toMillis(chat.CreatedAt), toMillis(chat.UpdatedAt),
	)
	if err != nil {
		return storeErr("insert chat", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewConflict("event %s already has a chat", chat.EventID)
	}
	return nil
}

// GetChat retrieves a chat by its ID.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, "SELECT "+chatColumns+" FROM chats WHERE id = ?", chatID))
	if err == sql.ErrNoRows {
		return nil, errdef.NewNotFound("chat not found: %s", chatID)
	}
	if err != nil {
		return nil, storeErr("get chat", err)
	}
	return c, nil
}

// GetChatByEvent returns the chat of eventID, or nil if it has none.
func (s *SQLiteStore) GetChatByEvent(ctx context.Context, eventID string) (*models.Chat, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, "SELECT "+chatColumns+" FROM chats WHERE event_id = ?", eventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get chat", err)
	}
	return c, nil
}

// AddChatMessage appends msg and bumps the chat's updated time in one
// transaction.
func (s *SQLiteStore) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}
	readBy, err := toJSON(nonNil(msg.ReadBy))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE chats SET updated_ms = ? WHERE id = ?",
		toMillis(msg.Timestamp), msg.ChatID,
	)
	if err != nil {
		return storeErr("touch chat", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("chat not found: %s", msg.ChatID)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO chat_messages (id, chat_id, sender_id, content, read_by, sent_ms) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, readBy, toMillis(msg.Timestamp),
	)
	if err != nil {
		return storeErr("insert chat message", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

// ListChatMessages returns the chat's messages, oldest first.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, chatID string) ([]*models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, sender_id, content, read_by, sent_ms FROM chat_messages WHERE chat_id = ? ORDER BY sent_ms, rowid",
		chatID,
	)
	if err != nil {
		return nil, storeErr("list chat messages", err)
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		m := &models.ChatMessage{}
		var readBy string
		var sentMs int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &readBy, &sentMs); err != nil {
			return nil, storeErr("scan chat message", err)
		}
		if err := fromJSON(readBy, &m.ReadBy); err != nil {
			return nil, err
		}
		m.ReadBy = nonNil(m.ReadBy)
		m.Timestamp = fromMillis(sentMs)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate chat messages", err)
	}
	return out, nil
}

// MarkChatMessageRead adds userID to the message's readers.
func (s *SQLiteStore) MarkChatMessageRead(ctx context.Context, chatID, messageID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		"SELECT read_by FROM chat_messages WHERE id = ? AND chat_id = ?",
		messageID, chatID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return errdef.NewNotFound("message %s not found in chat %s", messageID, chatID)
	}
	if err != nil {
		return storeErr("get chat message", err)
	}
	var readBy []string
	if err := fromJSON(raw, &readBy); err != nil {
		return err
	}
	if slices.Contains(readBy, userID) {
		return nil
	}
	encoded, err := toJSON(append(readBy, userID))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE chat_messages SET read_by = ? WHERE id = ?", encoded, messageID); err != nil {
		return storeErr("mark chat message read", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}
