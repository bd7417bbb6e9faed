package friends

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// CreateGroup creates an empty group owned by userID.
func (a *Aggregator) CreateGroup(ctx context.Context, userID, name, color string) (*models.FriendGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errdef.NewValidation("group name is required")
	}
	if color == "" {
		color = DefaultGroupColor
	}
	now := a.now()
	g := &models.FriendGroup{
		UserID:    userID,
		Name:      name,
		Color:     color,
		MemberIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := models.Validate(g); err != nil {
		return nil, err
	}
	if err := a.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return g, nil
}

// owned loads groupID and checks that userID owns it.
func (a *Aggregator) owned(ctx context.Context, userID, groupID string) (*models.FriendGroup, error) {
	g, err := a.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, errdef.NewForbidden("group %s is not owned by %s", groupID, userID)
	}
	return g, nil
}

// DeleteGroup deletes the group record. Friend edges are left alone.
func (a *Aggregator) DeleteGroup(ctx context.Context, userID, groupID string) error {
	if _, err := a.owned(ctx, userID, groupID); err != nil {
		return err
	}
	return a.store.DeleteGroup(ctx, groupID)
}

// ListGroups returns the groups owned by userID.
func (a *Aggregator) ListGroups(ctx context.Context, userID string) ([]*models.FriendGroup, error) {
	return a.store.ListGroups(ctx, userID)
}

// AddMember adds friendID to the group. Adding an existing member is a no-op.
func (a *Aggregator) AddMember(ctx context.Context, userID, groupID, friendID string) error {
	if friendID == "" {
		return errdef.NewValidation("member id is required")
	}
	if _, err := a.owned(ctx, userID, groupID); err != nil {
		return err
	}
	return a.store.AddGroupMember(ctx, groupID, friendID)
}

// RemoveMember removes friendID from the group. Removing a non-member is a no-op.
func (a *Aggregator) RemoveMember(ctx context.Context, userID, groupID, friendID string) error {
	if _, err := a.owned(ctx, userID, groupID); err != nil {
		return err
	}
	return a.store.RemoveGroupMember(ctx, groupID, friendID)
}

// GroupView splits a user's live friend list by membership of one group.
type GroupView struct {
	Group *models.FriendGroup `json:"group"`
	In    []*models.Friend    `json:"in"`
	NotIn []*models.Friend    `json:"notIn"`
}

// View reads the group and the accepted friend list and partitions the friends
// by membership. Member ids without a matching friend are ignored.
func (a *Aggregator) View(ctx context.Context, userID, groupID string) (*GroupView, error) {
	g, err := a.owned(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	friends, err := a.store.ListFriends(ctx, userID, models.FriendStatusAccepted)
	if err != nil {
		return nil, err
	}
	return &GroupView{
		Group: g,
		In:    FriendsInGroup(friends, g),
		NotIn: FriendsNotInGroup(friends, g),
	}, nil
}

// FriendsInGroup returns the friends whose id is a member of g, in friend-list order.
func FriendsInGroup(friends []*models.Friend, g *models.FriendGroup) []*models.Friend {
	out := []*models.Friend{}
	for _, f := range friends {
		if g.HasMember(f.FriendID) {
			out = append(out, f)
		}
	}
	return out
}

// FriendsNotInGroup returns the friends whose id is not a member of g.
func FriendsNotInGroup(friends []*models.Friend, g *models.FriendGroup) []*models.Friend {
	out := []*models.Friend{}
	for _, f := range friends {
		if !g.HasMember(f.FriendID) {
			out = append(out, f)
		}
	}
	return out
}
