package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/friends"
	"github.com/mmynk/gatherly/internal/models"
)

type CreateGroupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type GroupRequest struct {
	GroupID string `json:"groupId"`
}

type GroupMemberRequest struct {
	GroupID  string `json:"groupId"`
	FriendID string `json:"friendId"`
}

type GroupResponse struct {
	Group *models.FriendGroup `json:"group"`
}

type ListGroupsResponse struct {
	Groups []*models.FriendGroup `json:"groups"`
}

// CreateGroup creates a new friend group owned by the caller.
func (s *FriendService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received", "name", req.Msg.Name)

	group, err := s.friends.CreateGroup(ctx, userID, req.Msg.Name, req.Msg.Color)
	if err != nil {
		return nil, fail("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&GroupResponse{Group: group}), nil
}

// DeleteGroup deletes a group. Friendships are not affected.
func (s *FriendService) DeleteGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	if err := s.friends.DeleteGroup(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, fail("DeleteGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)
	return connect.NewResponse(&Empty{}), nil
}

// ListGroups retrieves the caller's groups.
func (s *FriendService) ListGroups(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received")

	groups, err := s.friends.ListGroups(ctx, userID)
	if err != nil {
		return nil, fail("ListGroups", err)
	}

	slog.Info("ListGroups successful", "count", len(groups))
	return connect.NewResponse(&ListGroupsResponse{Groups: nonNil(groups)}), nil
}

// AddGroupMember adds a friend to a group. Adding an existing member is a no-op.
func (s *FriendService) AddGroupMember(ctx context.Context, req *connect.Request[GroupMemberRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AddGroupMember request received", "group_id", req.Msg.GroupID, "friend_id", req.Msg.FriendID)

	if err := s.friends.AddMember(ctx, userID, req.Msg.GroupID, req.Msg.FriendID); err != nil {
		return nil, fail("AddGroupMember", err, "group_id", req.Msg.GroupID)
	}
	return connect.NewResponse(&Empty{}), nil
}

// RemoveGroupMember removes a friend from a group. Removing a non-member is a no-op.
func (s *FriendService) RemoveGroupMember(ctx context.Context, req *connect.Request[GroupMemberRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RemoveGroupMember request received", "group_id", req.Msg.GroupID, "friend_id", req.Msg.FriendID)

	if err := s.friends.RemoveMember(ctx, userID, req.Msg.GroupID, req.Msg.FriendID); err != nil {
		return nil, fail("RemoveGroupMember", err, "group_id", req.Msg.GroupID)
	}
	return connect.NewResponse(&Empty{}), nil
}

// GetGroupView splits the caller's friends into members and non-members of a group.
func (s *FriendService) GetGroupView(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[friends.GroupView], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroupView request received", "group_id", req.Msg.GroupID)

	view, err := s.friends.View(ctx, userID, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetGroupView", err, "group_id", req.Msg.GroupID)
	}
	return connect.NewResponse(view), nil
}
