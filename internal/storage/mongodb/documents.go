package mongodb

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mmynk/gatherly/internal/models"
)

// Document shapes use the camelCase field names of the stored collections.

type locationDoc struct {
	ID          string              `bson:"id"`
	Name        string              `bson:"name"`
	Address     string              `bson:"address"`
	Coordinates *models.Coordinates `bson:"coordinates,omitempty"`
}

type ruleDoc struct {
	Frequency string   `bson:"frequency"`
	Interval  int      `bson:"interval"`
	EndDate   *instant `bson:"endDate,omitempty"`
	Count     int      `bson:"count,omitempty"`
}

type inviteDoc struct {
	UserID      string   `bson:"userId"`
	Status      string   `bson:"status"`
	Roles       []string `bson:"roles,omitempty"`
	Cost        *float64 `bson:"cost,omitempty"`
	RespondedAt *instant `bson:"respondedAt,omitempty"`
}

type costDoc struct {
	Total   float64            `bson:"total"`
	Type    string             `bson:"type"`
	PerUser map[string]float64 `bson:"perUser,omitempty"`
}

type eventDoc struct {
	ID                   string        `bson:"_id"`
	Title                string        `bson:"title"`
	Description          string        `bson:"description"`
	CreatorID            string        `bson:"creatorId"`
	Locations            []locationDoc `bson:"locations"`
	StartDate            instant       `bson:"startDate"`
	EndDate              instant       `bson:"endDate"`
	AllDay               bool          `bson:"allDay"`
	TimeZone             string        `bson:"timeZone,omitempty"`
	IsRecurring          bool          `bson:"isRecurring"`
	RecurrenceRule       *ruleDoc      `bson:"recurrenceRule,omitempty"`
	Invites              []inviteDoc   `bson:"invites"`
	Status               string        `bson:"status"`
	CostDistribution     costDoc       `bson:"costDistribution"`
	CancelledOccurrences []instant     `bson:"cancelledOccurrences"`
	ChatID               string        `bson:"chatId"`
	CreatedAt            instant       `bson:"createdAt"`
	UpdatedAt            instant       `bson:"updatedAt"`
}

func toEventDoc(e *models.Event) *eventDoc {
	d := &eventDoc{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		CreatorID:   e.CreatorID,
		Locations:   make([]locationDoc, 0, len(e.Locations)),
		StartDate:   instant(e.Start),
		EndDate:     instant(e.End),
		AllDay:      e.AllDay,
		TimeZone:    e.TimeZone,
		IsRecurring: e.IsRecurring,
		Invites:     make([]inviteDoc, 0, len(e.Invites)),
		Status:      string(e.Status),
		CostDistribution: costDoc{
			Total:   e.CostDistribution.Total,
			Type:    string(e.CostDistribution.Type),
			PerUser: e.CostDistribution.PerUser,
		},
		CancelledOccurrences: make([]instant, 0, len(e.CancelledOccurrences)),
		ChatID:               e.ChatID,
		CreatedAt:            instant(e.CreatedAt),
		UpdatedAt:            instant(e.UpdatedAt),
	}
	for _, l := range e.Locations {
		d.Locations = append(d.Locations, locationDoc(l))
	}
	if r := e.RecurrenceRule; r != nil {
		d.RecurrenceRule = &ruleDoc{
			Frequency: string(r.Frequency),
			Interval:  r.Interval,
			EndDate:   instantPtr(r.EndDate),
			Count:     r.Count,
		}
	}
	for _, inv := range e.Invites {
		d.Invites = append(d.Invites, inviteDoc{
			UserID:      inv.UserID,
			Status:      string(inv.Status),
			Roles:       inv.Roles,
			Cost:        inv.Cost,
			RespondedAt: instantPtr(inv.RespondedAt),
		})
	}
	for _, c := range e.CancelledOccurrences {
		d.CancelledOccurrences = append(d.CancelledOccurrences, instant(c))
	}
	return d
}

func (d *eventDoc) model() *models.Event {
	e := &models.Event{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		CreatorID:   d.CreatorID,
		Start:       d.StartDate.Time(),
		End:         d.EndDate.Time(),
		AllDay:      d.AllDay,
		TimeZone:    d.TimeZone,
		IsRecurring: d.IsRecurring,
		Status:      models.EventStatus(d.Status),
		CostDistribution: models.CostDistribution{
			Total:   d.CostDistribution.Total,
			Type:    models.DistributionType(d.CostDistribution.Type),
			PerUser: d.CostDistribution.PerUser,
		},
		ChatID:    d.ChatID,
		CreatedAt: d.CreatedAt.Time(),
		UpdatedAt: d.UpdatedAt.Time(),
	}
	for _, l := range d.Locations {
		e.Locations = append(e.Locations, models.EventLocation(l))
	}
	if r := d.RecurrenceRule; r != nil {
		e.RecurrenceRule = &models.RecurrenceRule{
			Frequency: models.Frequency(r.Frequency),
			Interval:  r.Interval,
			EndDate:   timePtr(r.EndDate),
			Count:     r.Count,
		}
	}
	for _, inv := range d.Invites {
		e.Invites = append(e.Invites, models.EventInvite{
			UserID:      inv.UserID,
			Status:      models.InviteStatus(inv.Status),
			Roles:       inv.Roles,
			Cost:        inv.Cost,
			RespondedAt: timePtr(inv.RespondedAt),
		})
	}
	for _, c := range d.CancelledOccurrences {
		e.CancelledOccurrences = append(e.CancelledOccurrences, c.Time())
	}
	return e
}

type friendDoc struct {
	ID        string  `bson:"_id"`
	UserID    string  `bson:"userId"`
	FriendID  string  `bson:"friendId"`
	Status    string  `bson:"status"`
	CreatedAt instant `bson:"createdAt"`
}

func (d *friendDoc) model() *models.Friend {
	return &models.Friend{
		ID:        d.ID,
		UserID:    d.UserID,
		FriendID:  d.FriendID,
		Status:    models.FriendStatus(d.Status),
		CreatedAt: d.CreatedAt.Time(),
	}
}

type groupDoc struct {
	ID        string   `bson:"_id"`
	UserID    string   `bson:"userId"`
	Name      string   `bson:"name"`
	Color     string   `bson:"color"`
	MemberIDs []string `bson:"memberIds"`
	CreatedAt instant  `bson:"createdAt"`
	UpdatedAt instant  `bson:"updatedAt"`
}

func (d *groupDoc) model() *models.FriendGroup {
	members := d.MemberIDs
	if members == nil {
		members = []string{}
	}
	return &models.FriendGroup{
		ID:        d.ID,
		UserID:    d.UserID,
		Name:      d.Name,
		Color:     d.Color,
		MemberIDs: members,
		CreatedAt: d.CreatedAt.Time(),
		UpdatedAt: d.UpdatedAt.Time(),
	}
}

type budgetEventDoc struct {
	EventID    string  `bson:"eventId"`
	EventTitle string  `bson:"eventTitle"`
	Cost       float64 `bson:"cost"`
	Date       instant `bson:"date"`
}

type budgetDoc struct {
	ID        string           `bson:"_id"`
	UserID    string           `bson:"userId"`
	Month     string           `bson:"month"`
	Limit     float64          `bson:"limit"`
	Spent     float64          `bson:"spent"`
	Events    []budgetEventDoc `bson:"events"`
	CreatedAt instant          `bson:"createdAt"`
	UpdatedAt instant          `bson:"updatedAt"`
}

func (d *budgetDoc) model() *models.Budget {
	b := &models.Budget{
		ID:        d.ID,
		UserID:    d.UserID,
		Month:     d.Month,
		Limit:     d.Limit,
		Spent:     d.Spent,
		Events:    make([]models.BudgetEvent, 0, len(d.Events)),
		CreatedAt: d.CreatedAt.Time(),
		UpdatedAt: d.UpdatedAt.Time(),
	}
	for _, e := range d.Events {
		b.Events = append(b.Events, models.BudgetEvent{
			EventID:    e.EventID,
			EventTitle: e.EventTitle,
			Cost:       e.Cost,
			Date:       e.Date.Time(),
		})
	}
	return b
}

type notificationDoc struct {
	ID        string  `bson:"_id"`
	UserID    string  `bson:"userId"`
	Type      string  `bson:"type"`
	Title     string  `bson:"title"`
	Message   string  `bson:"message"`
	Data      bson.M  `bson:"data"`
	Read      bool    `bson:"read"`
	CreatedAt instant `bson:"createdAt"`
}

// payloadDoc converts a payload to a document keyed by its JSON field names.
func payloadDoc(p models.Payload) (bson.M, error) {
	if p == nil {
		return bson.M{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	var m bson.M
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return m, nil
}

func (d *notificationDoc) model() (*models.Notification, error) {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	data, err := models.DecodePayload(models.NotificationType(d.Type), raw)
	if err != nil {
		return nil, err
	}
	return &models.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      models.NotificationType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Data:      data,
		Read:      d.Read,
		CreatedAt: d.CreatedAt.Time(),
	}, nil
}

type chatDoc struct {
	ID           string   `bson:"_id"`
	EventID      string   `bson:"eventId"`
	Participants []string `bson:"participants"`
	CreatedAt    instant  `bson:"createdAt"`
	UpdatedAt    instant  `bson:"updatedAt"`
}

func (d *chatDoc) model() *models.Chat {
	participants := d.Participants
	if participants == nil {
		participants = []string{}
	}
	return &models.Chat{
		ID:           d.ID,
		EventID:      d.EventID,
		Participants: participants,
		CreatedAt:    d.CreatedAt.Time(),
		UpdatedAt:    d.UpdatedAt.Time(),
	}
}

type chatMessageDoc struct {
	ID        string   `bson:"_id"`
	ChatID    string   `bson:"chatId"`
	SenderID  string   `bson:"senderId"`
	Content   string   `bson:"content"`
	Timestamp instant  `bson:"timestamp"`
	ReadBy    []string `bson:"readBy"`
}

func (d *chatMessageDoc) model() *models.ChatMessage {
	readBy := d.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return &models.ChatMessage{
		ID:        d.ID,
		ChatID:    d.ChatID,
		SenderID:  d.SenderID,
		Content:   d.Content,
		Timestamp: d.Timestamp.Time(),
		ReadBy:    readBy,
	}
}

type templateDoc struct {
	ID               string        `bson:"_id"`
	Name             string        `bson:"name"`
	Description      string        `bson:"description"`
	DefaultDuration  int           `bson:"defaultDuration"`
	DefaultLocations []locationDoc `bson:"defaultLocations"`
	DefaultRoles     []string      `bson:"defaultRoles"`
	CreatorID        string        `bson:"creatorId"`
	IsPublic         bool          `bson:"isPublic"`
	CreatedAt        instant       `bson:"createdAt"`
}

func toTemplateDoc(t *models.EventTemplate) *templateDoc {
	d := &templateDoc{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		DefaultDuration:  t.DefaultDuration,
		DefaultLocations: make([]locationDoc, 0, len(t.DefaultLocations)),
		DefaultRoles:     t.DefaultRoles,
		CreatorID:        t.CreatorID,
		IsPublic:         t.IsPublic,
		CreatedAt:        instant(t.CreatedAt),
	}
	if d.DefaultRoles == nil {
		d.DefaultRoles = []string{}
	}
	for _, l := range t.DefaultLocations {
		d.DefaultLocations = append(d.DefaultLocations, locationDoc(l))
	}
	return d
}

func (d *templateDoc) model() *models.EventTemplate {
	t := &models.EventTemplate{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		DefaultDuration:  d.DefaultDuration,
		DefaultLocations: make([]models.EventLocation, 0, len(d.DefaultLocations)),
		DefaultRoles:     d.DefaultRoles,
		CreatorID:        d.CreatorID,
		IsPublic:         d.IsPublic,
		CreatedAt:        d.CreatedAt.Time(),
	}
	if t.DefaultRoles == nil {
		t.DefaultRoles = []string{}
	}
	for _, l := range d.DefaultLocations {
		t.DefaultLocations = append(t.DefaultLocations, models.EventLocation(l))
	}
	return t
}

type notificationPrefsDoc struct {
	NewInvite     bool `bson:"newInvite"`
	EventUpdate   bool `bson:"eventUpdate"`
	ChatMessage   bool `bson:"chatMessage"`
	EventReminder bool `bson:"eventReminder"`
}

// preferencesDoc is keyed by user id.
type preferencesDoc struct {
	UserID              string               `bson:"_id"`
	Language            string               `bson:"language"`
	Notifications       notificationPrefsDoc `bson:"notifications"`
	DefaultCalendarView string               `bson:"defaultCalendarView"`
	Timezone            string               `bson:"timezone"`
	UpdatedAt           instant              `bson:"updatedAt"`
}

func (d *preferencesDoc) model() *models.Preferences {
	return &models.Preferences{
		UserID:              d.UserID,
		Language:            d.Language,
		Notifications:       models.NotificationPreferences(d.Notifications),
		DefaultCalendarView: d.DefaultCalendarView,
		Timezone:            d.Timezone,
		UpdatedAt:           d.UpdatedAt.Time(),
	}
}
