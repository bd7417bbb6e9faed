package models

import "time"

// FriendStatus is the state of one directional friendship edge.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusBlocked  FriendStatus = "blocked"
)

// Friend is a directional edge from UserID toward FriendID. A mutual friendship
// is two independent edges; each side's record is authoritative for its own view.
type Friend struct {
	ID       string       `json:"id"`
	UserID   string       `json:"userId" validate:"required"`
	FriendID string       `json:"friendId" validate:"required,nefield=UserID"`
	Status   FriendStatus `json:"status" validate:"required,oneof=pending accepted blocked"`

	// Groups lists FriendGroup ids this edge was filed under.
	Groups []string `json:"groups"`

	CreatedAt time.Time `json:"createdAt"`
}

// FriendGroup is a user-owned set of friend ids. Members are weak references:
// an id may outlive the friendship it pointed at.
type FriendGroup struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Color     string    `json:"color" validate:"omitempty,hexcolor"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether id is in the group.
func (g *FriendGroup) HasMember(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
