package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// CreateGroup persists a new friend group and its initial members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.FriendGroup) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO friend_groups (id, user_id, name, color, created_ms, updated_ms) VALUES (?, ?, ?, ?, ?, ?)",
		group.ID, group.UserID, group.Name, group.Color, toMillis(group.CreatedAt), toMillis(group.UpdatedAt),
	)
	if err != nil {
		return storeErr("insert group", err)
	}

	for _, member := range group.MemberIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO friend_group_members (group_id, friend_id) VALUES (?, ?)",
			group.ID, member,
		)
		if err != nil {
			return storeErr("insert group member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including its members in insertion order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.FriendGroup, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, color, created_ms, updated_ms FROM friend_groups WHERE id = ?",
		groupID,
	))
	if err == sql.ErrNoRows {
		return nil, errdef.NewNotFound("group not found: %s", groupID)
	}
	if err != nil {
		return nil, storeErr("get group", err)
	}
	if err := s.loadMembers(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func scanGroup(sc scanner) (*models.FriendGroup, error) {
	g := &models.FriendGroup{}
	var createdMs, updatedMs int64
	if err := sc.Scan(&g.ID, &g.UserID, &g.Name, &g.Color, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	g.CreatedAt, g.UpdatedAt = fromMillis(createdMs), fromMillis(updatedMs)
	g.MemberIDs = []string{}
	return g, nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, g *models.FriendGroup) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT friend_id FROM friend_group_members WHERE group_id = ? ORDER BY seq",
		g.ID,
	)
	if err != nil {
		return storeErr("get group members", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return storeErr("scan group member", err)
		}
		g.MemberIDs = append(g.MemberIDs, id)
	}
	if err := rows.Err(); err != nil {
		return storeErr("iterate group members", err)
	}
	return nil
}

// ListGroups returns the groups owned by userID, oldest first.
func (s *SQLiteStore) ListGroups(ctx context.Context, userID string) ([]*models.FriendGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, color, created_ms, updated_ms FROM friend_groups WHERE user_id = ? ORDER BY created_ms, id",
		userID,
	)
	if err != nil {
		return nil, storeErr("list groups", err)
	}
	var groups []*models.FriendGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr("scan group", err)
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate groups", err)
	}

	for _, g := range groups {
		if err := s.loadMembers(ctx, g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// DeleteGroup removes the group and its member rows.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM friend_groups WHERE id = ?", groupID)
	if err != nil {
		return storeErr("delete group", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("group not found: %s", groupID)
	}
	return nil
}

// AddGroupMember adds friendID to the group; adding an existing member is a no-op.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, friendID string) error {
	return s.changeMembers(ctx, groupID,
		"INSERT OR IGNORE INTO friend_group_members (group_id, friend_id) VALUES (?, ?)", friendID)
}

// RemoveGroupMember removes friendID from the group; removing a non-member is a no-op.
func (s *SQLiteStore) RemoveGroupMember(ctx context.Context, groupID, friendID string) error {
	return s.changeMembers(ctx, groupID,
		"DELETE FROM friend_group_members WHERE group_id = ? AND friend_id = ?", friendID)
}

func (s *SQLiteStore) changeMembers(ctx context.Context, groupID, stmt, friendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE friend_groups SET updated_ms = ? WHERE id = ?",
		time.Now().UnixMilli(), groupID,
	)
	if err != nil {
		return storeErr("touch group", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("group not found: %s", groupID)
	}
	if _, err := tx.ExecContext(ctx, stmt, groupID, friendID); err != nil {
		return storeErr("update group members", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}
