package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/friends"
	"github.com/mmynk/gatherly/internal/models"
)

const FriendServiceName = "FriendService"

// FriendService implements the Connect FriendService, covering friendship
// edges and friend groups.
type FriendService struct {
	friends *friends.Aggregator
}

// NewFriendService creates a new FriendService over the given aggregator.
func NewFriendService(agg *friends.Aggregator) *FriendService {
	return &FriendService{friends: agg}
}

// Handler returns the path prefix and handler serving every FriendService method.
func (s *FriendService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(FriendServiceName, opts)
	unary(r, "SendFriendRequest", s.SendFriendRequest)
	unary(r, "AcceptFriendRequest", s.AcceptFriendRequest)
	unary(r, "BlockUser", s.BlockUser)
	unary(r, "UnblockUser", s.UnblockUser)
	unary(r, "ListFriends", s.ListFriends)
	unary(r, "CreateGroup", s.CreateGroup)
	unary(r, "DeleteGroup", s.DeleteGroup)
	unary(r, "ListGroups", s.ListGroups)
	unary(r, "AddGroupMember", s.AddGroupMember)
	unary(r, "RemoveGroupMember", s.RemoveGroupMember)
	unary(r, "GetGroupView", s.GetGroupView)
	return r.handler()
}

type UserRequest struct {
	UserID string `json:"userId"`
}

type FriendResponse struct {
	Friend *models.Friend `json:"friend"`
}

type ListFriendsResponse struct {
	Friends  []*models.Friend `json:"friends"`
	Incoming []*models.Friend `json:"incoming"`
	Blocked  []*models.Friend `json:"blocked"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// SendFriendRequest asks another user to become the caller's friend.
func (s *FriendService) SendFriendRequest(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[FriendResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SendFriendRequest request received", "friend_id", req.Msg.UserID)

	f, err := s.friends.SendRequest(ctx, userID, req.Msg.UserID)
	if err != nil {
		return nil, fail("SendFriendRequest", err, "friend_id", req.Msg.UserID)
	}
	slog.Info("Friend request sent", "friend_id", f.FriendID)
	return connect.NewResponse(&FriendResponse{Friend: f}), nil
}

// AcceptFriendRequest accepts the pending request sent by req.UserID.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[FriendResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AcceptFriendRequest request received", "requester_id", req.Msg.UserID)

	f, err := s.friends.Accept(ctx, userID, req.Msg.UserID)
	if err != nil {
		return nil, fail("AcceptFriendRequest", err, "requester_id", req.Msg.UserID)
	}
	slog.Info("Friend request accepted", "requester_id", req.Msg.UserID)
	return connect.NewResponse(&FriendResponse{Friend: f}), nil
}

func (s *FriendService) BlockUser(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("BlockUser request received", "target_id", req.Msg.UserID)

	if err := s.friends.Block(ctx, userID, req.Msg.UserID); err != nil {
		return nil, fail("BlockUser", err, "target_id", req.Msg.UserID)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *FriendService) UnblockUser(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UnblockUser request received", "target_id", req.Msg.UserID)

	if err := s.friends.Unblock(ctx, userID, req.Msg.UserID); err != nil {
		return nil, fail("UnblockUser", err, "target_id", req.Msg.UserID)
	}
	return connect.NewResponse(&Empty{}), nil
}

// ListFriends returns the caller's friends, incoming requests and blocked users.
func (s *FriendService) ListFriends(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListFriendsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListFriends request received")

	accepted, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, fail("ListFriends", err)
	}
	incoming, err := s.friends.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, fail("ListFriends", err)
	}
	blocked, err := s.friends.ListBlocked(ctx, userID)
	if err != nil {
		return nil, fail("ListFriends", err)
	}

	slog.Info("ListFriends successful", "count", len(accepted), "incoming", len(incoming))
	return connect.NewResponse(&ListFriendsResponse{
		Friends:  nonNil(accepted),
		Incoming: nonNil(incoming),
		Blocked:  nonNil(blocked),
	}), nil
}
