// Package friends manages friendship edges and the friend groups built on top
// of them.
//
// Friendship is directional: each side's edge is its own record and nothing
// infers one edge from the other. Group membership is a weak reference, so the
// group views are computed from the live friend list every time and simply
// ignore member ids that no longer resolve to a friend.
package friends

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// DefaultGroupColor is used when a group is created without a color.
const DefaultGroupColor = "#3f51b5"

// Store is the part of storage.Store the aggregator needs.
type Store interface {
	storage.FriendStore
	storage.GroupStore
}

// Aggregator manages friends and friend groups for users.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// New creates an Aggregator over store.
func New(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// SendRequest creates a pending edge from userID to friendID.
func (a *Aggregator) SendRequest(ctx context.Context, userID, friendID string) (*models.Friend, error) {
	if friendID == "" || friendID == userID {
		return nil, errdef.NewValidation("invalid friend request target %q", friendID)
	}
	blocked, err := a.store.GetFriend(ctx, friendID, userID)
	if err != nil {
		return nil, err
	}
	if blocked != nil && blocked.Status == models.FriendStatusBlocked {
		return nil, errdef.NewForbidden("user %s does not accept requests from %s", friendID, userID)
	}
	existing, err := a.store.GetFriend(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errdef.NewConflict("edge %s -> %s already exists with status %s", userID, friendID, existing.Status)
	}

	f := &models.Friend{UserID: userID, FriendID: friendID, Status: models.FriendStatusPending, CreatedAt: a.now()}
	if err := a.store.PutFriend(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to send friend request: %w", err)
	}
	return f, nil
}

// Accept accepts requesterID's pending request to userID. The request edge is
// marked accepted and the reciprocal edge userID -> requesterID is created as
// accepted if it does not exist yet.
func (a *Aggregator) Accept(ctx context.Context, userID, requesterID string) (*models.Friend, error) {
	req, err := a.store.GetFriend(ctx, requesterID, userID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Status != models.FriendStatusPending {
		return nil, errdef.NewNotFound("no pending request from %s to %s", requesterID, userID)
	}
	req.Status = models.FriendStatusAccepted
	if err := a.store.PutFriend(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to accept friend request: %w", err)
	}

	reciprocal, err := a.store.GetFriend(ctx, userID, requesterID)
	if err != nil {
		return nil, err
	}
	if reciprocal == nil {
		reciprocal = &models.Friend{UserID: userID, FriendID: requesterID, CreatedAt: a.now()}
	}
	if reciprocal.Status != models.FriendStatusBlocked {
		reciprocal.Status = models.FriendStatusAccepted
		if err := a.store.PutFriend(ctx, reciprocal); err != nil {
			return nil, fmt.Errorf("failed to create reciprocal friendship: %w", err)
		}
	}
	return reciprocal, nil
}

// Block marks userID's edge toward otherID as blocked, creating it if needed.
func (a *Aggregator) Block(ctx context.Context, userID, otherID string) error {
	if otherID == "" || otherID == userID {
		return errdef.NewValidation("invalid block target %q", otherID)
	}
	f, err := a.store.GetFriend(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if f == nil {
		f = &models.Friend{UserID: userID, FriendID: otherID, CreatedAt: a.now()}
	}
	f.Status = models.FriendStatusBlocked
	if err := a.store.PutFriend(ctx, f); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// Unblock removes userID's blocked edge toward otherID. Other edges are untouched.
func (a *Aggregator) Unblock(ctx context.Context, userID, otherID string) error {
	f, err := a.store.GetFriend(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if f == nil || f.Status != models.FriendStatusBlocked {
		return errdef.NewNotFound("user %s has not blocked %s", userID, otherID)
	}
	return a.store.DeleteFriend(ctx, userID, otherID)
}

// IsFriend reports whether viewer holds an accepted edge toward other. Only the
// viewer's own edge is consulted.
func (a *Aggregator) IsFriend(ctx context.Context, viewerID, otherID string) (bool, error) {
	f, err := a.store.GetFriend(ctx, viewerID, otherID)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == models.FriendStatusAccepted, nil
}

// ListFriends returns userID's accepted friends with the ids of the groups
// each one currently belongs to.
func (a *Aggregator) ListFriends(ctx context.Context, userID string) ([]*models.Friend, error) {
	friends, err := a.store.ListFriends(ctx, userID, models.FriendStatusAccepted)
	if err != nil {
		return nil, err
	}
	groups, err := a.store.ListGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		f.Groups = []string{}
		for _, g := range groups {
			if g.HasMember(f.FriendID) {
				f.Groups = append(f.Groups, g.ID)
			}
		}
	}
	return friends, nil
}

// ListBlocked returns the users userID has blocked.
func (a *Aggregator) ListBlocked(ctx context.Context, userID string) ([]*models.Friend, error) {
	return a.store.ListFriends(ctx, userID, models.FriendStatusBlocked)
}

// ListIncomingRequests returns pending requests other users sent to userID.
// Each edge is owned by the sender.
func (a *Aggregator) ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friend, error) {
	return a.store.ListIncomingRequests(ctx, userID)
}
