package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/models"
)

const friendColumns = "id, user_id, friend_id, status, created_ms"

func scanFriend(sc scanner) (*models.Friend, error) {
	f := &models.Friend{}
	var status string
	var createdMs int64
	if err := sc.Scan(&f.ID, &f.UserID, &f.FriendID, &status, &createdMs); err != nil {
		return nil, err
	}
	f.Status = models.FriendStatus(status)
	f.CreatedAt = fromMillis(createdMs)
	return f, nil
}

// PutFriend creates or replaces the edge friend.UserID -> friend.FriendID.
func (s *SQLiteStore) PutFriend(ctx context.Context, friend *models.Friend) error {
	if friend.ID == "" {
		friend.ID = uuid.New().String()
	}
	if friend.CreatedAt.IsZero() {
		friend.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friends (`+friendColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, friend_id) DO UPDATE SET status = excluded.status`,
		friend.ID, friend.UserID, friend.FriendID, string(friend.Status), toMillis(friend.CreatedAt),
	)
	if err != nil {
		return storeErr("put friend", err)
	}
	return nil
}

// GetFriend returns the edge userID -> friendID, or nil if there is none.
func (s *SQLiteStore) GetFriend(ctx context.Context, userID, friendID string) (*models.Friend, error) {
	f, err := scanFriend(s.db.QueryRowContext(ctx,
		"SELECT "+friendColumns+" FROM friends WHERE user_id = ? AND friend_id = ?",
		userID, friendID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get friend", err)
	}
	return f, nil
}

func (s *SQLiteStore) DeleteFriend(ctx context.Context, userID, friendID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM friends WHERE user_id = ? AND friend_id = ?", userID, friendID)
	if err != nil {
		return storeErr("delete friend", err)
	}
	return nil
}

func (s *SQLiteStore) ListFriends(ctx context.Context, userID string, status models.FriendStatus) ([]*models.Friend, error) {
	if status == "" {
		return s.listFriends(ctx, "SELECT "+friendColumns+" FROM friends WHERE user_id = ? ORDER BY created_ms, rowid", userID)
	}
	return s.listFriends(ctx,
		"SELECT "+friendColumns+" FROM friends WHERE user_id = ? AND status = ? ORDER BY created_ms, rowid",
		userID, string(status),
	)
}

func (s *SQLiteStore) ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friend, error) {
	return s.listFriends(ctx,
		"SELECT "+friendColumns+" FROM friends WHERE friend_id = ? AND status = ? ORDER BY created_ms, rowid",
		userID, string(models.FriendStatusPending),
	)
}

func (s *SQLiteStore) listFriends(ctx context.Context, query string, args ...any) ([]*models.Friend, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list friends", err)
	}
	defer rows.Close()

	var friends []*models.Friend
	for rows.Next() {
		f, err := scanFriend(rows)
		if err != nil {
			return nil, storeErr("scan friend", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate friends", err)
	}
	return friends, nil
}
