package models

import (
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusScheduled, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether an event may move from s to next.
// Status only moves forward (draft -> scheduled -> completed); cancellation is
// reachable from draft or scheduled. Cancelled and completed are terminal.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusDraft:
		return next == EventStatusScheduled || next == EventStatusCancelled
	case EventStatusScheduled:
		return next == EventStatusCompleted || next == EventStatusCancelled
	default:
		return false
	}
}

// Frequency is the step unit of a recurrence rule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// RecurrenceRule is the bounded recurrence subset the engine supports.
// EndDate and Count are mutually exclusive terminators; with neither the series
// is open-ended and must be capped by the caller's query window.
type RecurrenceRule struct {
	Frequency Frequency  `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval  int        `json:"interval" validate:"gte=1"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Count     int        `json:"count,omitempty" validate:"gte=0"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// EventLocation is a place attached to an event. Locations are owned by their
// event and only change as part of editing it.
type EventLocation struct {
	ID          string       `json:"id"`
	Name        string       `json:"name" validate:"required"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

// InviteStatus is an invitee's response.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
)

// EventInvite is one user's invitation to an event.
type EventInvite struct {
	UserID string       `json:"userId" validate:"required"`
	Status InviteStatus `json:"status" validate:"required,oneof=pending accepted declined"`
	Roles  []string     `json:"roles,omitempty"`

	// Cost overrides the user's share when the distribution is manual.
	Cost *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`

	// RespondedAt is set by every invitee-driven transition.
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// DistributionType selects how an event's total cost is shared.
type DistributionType string

const (
	DistributionEqual  DistributionType = "equal"
	DistributionManual DistributionType = "manual"
)

// CostDistribution is the cost-sharing policy of an event.
// PerUser is only consulted when Type is manual.
type CostDistribution struct {
	Total   float64            `json:"total" validate:"gte=0"`
	Type    DistributionType   `json:"type" validate:"required,oneof=equal manual"`
	PerUser map[string]float64 `json:"perUser,omitempty"`
}

// Event is a planned gathering.
type Event struct {
	ID          string          `json:"id"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	CreatorID   string          `json:"creatorId" validate:"required"`
	Locations   []EventLocation `json:"locations" validate:"dive"`

	Start  time.Time `json:"startDate"`
	End    time.Time `json:"endDate"`
	AllDay bool      `json:"allDay"`

	// TimeZone is the IANA zone used for calendar arithmetic on this event.
	// Empty means UTC.
	TimeZone string `json:"timeZone,omitempty" validate:"omitempty,timezone"`

	IsRecurring    bool            `json:"isRecurring"`
	RecurrenceRule *RecurrenceRule `json:"recurrenceRule,omitempty" validate:"omitempty"`

	Invites          []EventInvite    `json:"invites" validate:"dive"`
	Status           EventStatus      `json:"status" validate:"required,oneof=draft scheduled cancelled completed"`
	CostDistribution CostDistribution `json:"costDistribution"`

	// CancelledOccurrences holds dates of individual occurrences that were called off.
	CancelledOccurrences []time.Time `json:"cancelledOccurrences,omitempty"`

	ChatID    string    `json:"chatId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Location returns the event's time zone, falling back to UTC.
func (e *Event) Location() *time.Location {
	if e.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration is the length of a single occurrence.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// VisibleTo reports whether userID can see the event: the creator always can,
// invitees can unless they declined.
func (e *Event) VisibleTo(userID string) bool {
	if e.CreatorID == userID {
		return true
	}
	for _, inv := range e.Invites {
		if inv.UserID == userID {
			return inv.Status != InviteStatusDeclined
		}
	}
	return false
}

// Participants returns the ids of every invitee who has not declined, in invite order.
func (e *Event) Participants() []string {
	var ids []string
	for _, inv := range e.Invites {
		if inv.Status != InviteStatusDeclined {
			ids = append(ids, inv.UserID)
		}
	}
	return ids
}
