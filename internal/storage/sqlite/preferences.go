package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mmynk/gatherly/internal/models"
)

// GetPreferences returns userID's saved preferences, or nil if none were saved.
func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	p := &models.Preferences{}
	var updatedMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, language, notify_new_invite, notify_event_update, notify_chat_message,
		       notify_event_reminder, default_calendar_view, timezone, updated_ms
		FROM preferences WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.Language,
		&p.Notifications.NewInvite, &p.Notifications.EventUpdate, &p.Notifications.ChatMessage, &p.Notifications.EventReminder,
		&p.DefaultCalendarView, &p.Timezone, &updatedMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get preferences", err)
	}
	p.UpdatedAt = fromMillis(updatedMs)
	return p, nil
}

// PutPreferences creates or replaces the preferences of p.UserID.
func (s *SQLiteStore) PutPreferences(ctx context.Context, p *models.Preferences) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, language, notify_new_invite, notify_event_update, notify_chat_message,
		                         notify_event_reminder, default_calendar_view, timezone, updated_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
		    language = excluded.language,
		    notify_new_invite = excluded.notify_new_invite,
		    notify_event_update = excluded.notify_event_update,
		    notify_chat_message = excluded.notify_chat_message,
		    notify_event_reminder = excluded.notify_event_reminder,
		    default_calendar_view = excluded.default_calendar_view,
		    timezone = excluded.timezone,
		    updated_ms = excluded.updated_ms`,
		p.UserID, p.Language,
		p.Notifications.NewInvite, p.Notifications.EventUpdate, p.Notifications.ChatMessage, p.Notifications.EventReminder,
		p.DefaultCalendarView, p.Timezone, toMillis(p.UpdatedAt),
	)
	if err != nil {
		return storeErr("put preferences", err)
	}
	return nil
}
