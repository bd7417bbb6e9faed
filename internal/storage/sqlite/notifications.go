package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// CreateNotification persists a notification. The payload is stored as JSON
// next to its type so it can be decoded back into the right variant.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if n.Data != nil {
		n.Type = n.Data.NotificationType()
	}
	data, err := toJSON(n.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO notifications (id, user_id, type, title, message, data, read, created_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, data, n.Read, toMillis(n.CreatedAt),
	)
	if err != nil {
		return storeErr("insert notification", err)
	}
	return nil
}

// ListNotifications returns userID's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, type, title, message, data, read, created_ms FROM notifications WHERE user_id = ? ORDER BY created_ms DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var typ, data string
		var createdMs int64
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &data, &n.Read, &createdMs); err != nil {
			return nil, storeErr("scan notification", err)
		}
		n.Type = models.NotificationType(typ)
		n.CreatedAt = fromMillis(createdMs)
		payload, err := models.DecodePayload(n.Type, []byte(data))
		if err != nil {
			return nil, err
		}
		n.Data = payload
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notifications", err)
	}
	return out, nil
}

// MarkNotificationRead marks one notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?", notificationID)
	if err != nil {
		return storeErr("mark notification read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("notification not found: %s", notificationID)
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of userID as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0", userID)
	if err != nil {
		return storeErr("mark notifications read", err)
	}
	return nil
}
