package service

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/friends"
	"github.com/mmynk/gatherly/internal/models"
)

func friendIDs(list []*models.Friend) []string {
	ids := []string{}
	for _, f := range list {
		ids = append(ids, f.FriendID)
	}
	return ids
}

func TestFriendRequestFlow(t *testing.T) {
	ts := setupTestServer(t)

	sent := mustCall[UserRequest, FriendResponse](t, ts, "alice", FriendServiceName, "SendFriendRequest", &UserRequest{UserID: "bob"})
	assert.Equal(t, models.FriendStatusPending, sent.Friend.Status)

	_, err := call[UserRequest, FriendResponse](t, ts, "alice", FriendServiceName, "SendFriendRequest", &UserRequest{UserID: "bob"})
	requireCode(t, err, connect.CodeAlreadyExists)

	_, err = call[UserRequest, FriendResponse](t, ts, "alice", FriendServiceName, "SendFriendRequest", &UserRequest{UserID: "alice"})
	requireCode(t, err, connect.CodeInvalidArgument)

	bob := mustCall[Empty, ListFriendsResponse](t, ts, "bob", FriendServiceName, "ListFriends", &Empty{})
	require.Len(t, bob.Incoming, 1)
	assert.Equal(t, "alice", bob.Incoming[0].UserID)
	assert.Empty(t, bob.Friends)

	accepted := mustCall[UserRequest, FriendResponse](t, ts, "bob", FriendServiceName, "AcceptFriendRequest", &UserRequest{UserID: "alice"})
	assert.Equal(t, "alice", accepted.Friend.FriendID)
	assert.Equal(t, models.FriendStatusAccepted, accepted.Friend.Status)

	_, err = call[UserRequest, FriendResponse](t, ts, "bob", FriendServiceName, "AcceptFriendRequest", &UserRequest{UserID: "alice"})
	requireCode(t, err, connect.CodeNotFound)

	alice := mustCall[Empty, ListFriendsResponse](t, ts, "alice", FriendServiceName, "ListFriends", &Empty{})
	assert.Equal(t, []string{"bob"}, friendIDs(alice.Friends))
	bob = mustCall[Empty, ListFriendsResponse](t, ts, "bob", FriendServiceName, "ListFriends", &Empty{})
	assert.Equal(t, []string{"alice"}, friendIDs(bob.Friends))
	assert.Empty(t, bob.Incoming)
}

func TestBlockUser(t *testing.T) {
	ts := setupTestServer(t)

	mustCall[UserRequest, Empty](t, ts, "bob", FriendServiceName, "BlockUser", &UserRequest{UserID: "mallory"})

	_, err := call[UserRequest, FriendResponse](t, ts, "mallory", FriendServiceName, "SendFriendRequest", &UserRequest{UserID: "bob"})
	requireCode(t, err, connect.CodePermissionDenied)

	bob := mustCall[Empty, ListFriendsResponse](t, ts, "bob", FriendServiceName, "ListFriends", &Empty{})
	assert.Equal(t, []string{"mallory"}, friendIDs(bob.Blocked))

	mustCall[UserRequest, Empty](t, ts, "bob", FriendServiceName, "UnblockUser", &UserRequest{UserID: "mallory"})
	_, err = call[UserRequest, Empty](t, ts, "bob", FriendServiceName, "UnblockUser", &UserRequest{UserID: "mallory"})
	requireCode(t, err, connect.CodeNotFound)

	mustCall[UserRequest, FriendResponse](t, ts, "mallory", FriendServiceName, "SendFriendRequest", &UserRequest{UserID: "bob"})
}

func befriend(t *testing.T, ts *testServer, a, b string) {
	t.Helper()
	mustCall[UserRequest, FriendResponse](t, ts, a, FriendServiceName, "SendFriendRequest", &UserRequest{UserID: b})
	mustCall[UserRequest, FriendResponse](t, ts, b, FriendServiceName, "AcceptFriendRequest", &UserRequest{UserID: a})
}

func TestGroups(t *testing.T) {
	ts := setupTestServer(t)
	befriend(t, ts, "alice", "bob")
	befriend(t, ts, "alice", "carol")

	created := mustCall[CreateGroupRequest, GroupResponse](t, ts, "alice", FriendServiceName, "CreateGroup", &CreateGroupRequest{Name: "  Climbing  "})
	group := created.Group
	assert.Equal(t, "Climbing", group.Name)
	assert.Equal(t, friends.DefaultGroupColor, group.Color)
	assert.Empty(t, group.MemberIDs)

	_, err := call[CreateGroupRequest, GroupResponse](t, ts, "alice", FriendServiceName, "CreateGroup", &CreateGroupRequest{Name: " "})
	requireCode(t, err, connect.CodeInvalidArgument)

	add := &GroupMemberRequest{GroupID: group.ID, FriendID: "bob"}
	mustCall[GroupMemberRequest, Empty](t, ts, "alice", FriendServiceName, "AddGroupMember", add)
	mustCall[GroupMemberRequest, Empty](t, ts, "alice", FriendServiceName, "AddGroupMember", add)
	// Members are weak references and may name someone who is not a friend.
	mustCall[GroupMemberRequest, Empty](t, ts, "alice", FriendServiceName, "AddGroupMember", &GroupMemberRequest{GroupID: group.ID, FriendID: "zed"})

	_, err = call[GroupMemberRequest, Empty](t, ts, "bob", FriendServiceName, "AddGroupMember", add)
	requireCode(t, err, connect.CodePermissionDenied)

	view := mustCall[GroupRequest, friends.GroupView](t, ts, "alice", FriendServiceName, "GetGroupView", &GroupRequest{GroupID: group.ID})
	assert.Equal(t, []string{"bob"}, friendIDs(view.In))
	assert.Equal(t, []string{"carol"}, friendIDs(view.NotIn))

	list := mustCall[Empty, ListFriendsResponse](t, ts, "alice", FriendServiceName, "ListFriends", &Empty{})
	for _, f := range list.Friends {
		if f.FriendID == "bob" {
			assert.Equal(t, []string{group.ID}, f.Groups)
		} else {
			assert.Empty(t, f.Groups)
		}
	}

	mustCall[GroupMemberRequest, Empty](t, ts, "alice", FriendServiceName, "RemoveGroupMember", add)
	view = mustCall[GroupRequest, friends.GroupView](t, ts, "alice", FriendServiceName, "GetGroupView", &GroupRequest{GroupID: group.ID})
	assert.Empty(t, view.In)
	assert.Len(t, view.NotIn, 2)

	groups := mustCall[Empty, ListGroupsResponse](t, ts, "alice", FriendServiceName, "ListGroups", &Empty{})
	require.Len(t, groups.Groups, 1)

	mustCall[GroupRequest, Empty](t, ts, "alice", FriendServiceName, "DeleteGroup", &GroupRequest{GroupID: group.ID})
	groups = mustCall[Empty, ListGroupsResponse](t, ts, "alice", FriendServiceName, "ListGroups", &Empty{})
	assert.Empty(t, groups.Groups)

	list = mustCall[Empty, ListFriendsResponse](t, ts, "alice", FriendServiceName, "ListFriends", &Empty{})
	assert.Len(t, list.Friends, 2, "deleting a group keeps the friendships")
}
