package models

import "time"

// EventTemplate holds defaults for creating similar events.
type EventTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	// DefaultDuration is the event length in minutes.
	DefaultDuration  int             `json:"defaultDuration" validate:"gt=0,lte=10080"`
	DefaultLocations []EventLocation `json:"defaultLocations" validate:"dive"`

	// DefaultRoles are given to every invitee of an event created from the template.
	DefaultRoles []string `json:"defaultRoles"`

	CreatorID string    `json:"creatorId" validate:"required"`
	IsPublic  bool      `json:"isPublic"`
	CreatedAt time.Time `json:"createdAt"`
}

// Duration returns DefaultDuration as a time.Duration.
func (t *EventTemplate) Duration() time.Duration {
	return time.Duration(t.DefaultDuration) * time.Minute
}

// UsableBy reports whether userID may list and instantiate the template.
func (t *EventTemplate) UsableBy(userID string) bool {
	return t.IsPublic || t.CreatorID == userID
}
