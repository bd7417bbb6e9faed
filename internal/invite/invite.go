// Package invite tracks invitee responses on an event.
//
// An invite starts pending and moves to accepted or declined at the invitee's
// request; accepted and declined can be swapped freely. Nothing moves an invite
// on the system's behalf, so cancelling an event leaves its invites untouched.
package invite

import (
	"time"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// Find returns the index of userID's invite on e, or -1.
func Find(e *models.Event, userID string) int {
	for i := range e.Invites {
		if e.Invites[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Invite adds a pending invite for userID. A declined invite is replaced by a
// fresh one; a pending or accepted invite is a conflict.
func Invite(e *models.Event, userID string, roles []string) (*models.EventInvite, error) {
	if userID == "" {
		return nil, errdef.NewValidation("invitee id is required")
	}
	if userID == e.CreatorID {
		return nil, errdef.NewValidation("creator %s cannot be invited to their own event", userID)
	}
	inv := models.EventInvite{UserID: userID, Status: models.InviteStatusPending, Roles: roles}

	if i := Find(e, userID); i >= 0 {
		if e.Invites[i].Status != models.InviteStatusDeclined {
			return nil, errdef.NewConflict("user %s is already invited to event %s", userID, e.ID)
		}
		e.Invites[i] = inv
		return &e.Invites[i], nil
	}
	e.Invites = append(e.Invites, inv)
	return &e.Invites[len(e.Invites)-1], nil
}

// Uninvite removes userID's invite. It reports whether one was removed.
func Uninvite(e *models.Event, userID string) bool {
	i := Find(e, userID)
	if i < 0 {
		return false
	}
	e.Invites = append(e.Invites[:i], e.Invites[i+1:]...)
	return true
}

// Respond records userID's response at time at. Responding with the current
// status changes nothing and reports false.
func Respond(e *models.Event, userID string, status models.InviteStatus, at time.Time) (bool, error) {
	switch status {
	case models.InviteStatusAccepted, models.InviteStatusDeclined:
	case models.InviteStatusPending:
		return false, errdef.NewValidation("cannot respond with %s", status)
	default:
		return false, errdef.NewValidation("unknown invite status %q", status)
	}

	i := Find(e, userID)
	if i < 0 {
		return false, errdef.NewNotFound("user %s has no invite to event %s", userID, e.ID)
	}
	inv := &e.Invites[i]
	if inv.Status == status {
		return false, nil
	}
	inv.Status = status
	inv.RespondedAt = &at
	return true, nil
}
