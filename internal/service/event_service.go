package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/calendar"
	"github.com/mmynk/gatherly/internal/chat"
	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/invite"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/notify"
	"github.com/mmynk/gatherly/internal/recurrence"
	"github.com/mmynk/gatherly/internal/storage"
	"github.com/mmynk/gatherly/internal/templates"
)

const EventServiceName = "EventService"

// EventService implements the Connect EventService.
type EventService struct {
	store     storage.EventStore
	notifier  *notify.Notifier
	expander  recurrence.Expander
	loader    *calendar.Loader
	unit      int64
	now       func() time.Time
	chats     *chat.Service
	templates *templates.Library
	friends   FriendChecker
}

// FriendChecker reports whether viewer counts other as an accepted friend.
type FriendChecker interface {
	IsFriend(ctx context.Context, viewerID, otherID string) (bool, error)
}

// EventOption configures an EventService.
type EventOption func(*EventService)

// WithChats opens a chat for every new event.
func WithChats(chats *chat.Service) EventOption {
	return func(s *EventService) { s.chats = chats }
}

// WithTemplates serves the template calls and lets events be created from a
// saved template.
func WithTemplates(lib *templates.Library) EventOption {
	return func(s *EventService) { s.templates = lib }
}

// WithFriendsOnlyInvites refuses invites to users the creator is not friends
// with.
func WithFriendsOnlyInvites(friends FriendChecker) EventOption {
	return func(s *EventService) { s.friends = friends }
}

// NewEventService creates a new EventService. unit is the number of minor
// currency units per major unit.
func NewEventService(store storage.EventStore, notifier *notify.Notifier, expander recurrence.Expander, unit int64, opts ...EventOption) *EventService {
	s := &EventService{
		store:    store,
		notifier: notifier,
		expander: expander,
		loader:   &calendar.Loader{Events: store},
		unit:     unit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the path prefix and handler serving every EventService method.
func (s *EventService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(EventServiceName, opts)
	unary(r, "CreateEvent", s.CreateEvent)
	unary(r, "GetEvent", s.GetEvent)
	unary(r, "UpdateEvent", s.UpdateEvent)
	unary(r, "DeleteEvent", s.DeleteEvent)
	unary(r, "ListEvents", s.ListEvents)
	unary(r, "SetEventStatus", s.SetEventStatus)
	unary(r, "CancelOccurrence", s.CancelOccurrence)
	unary(r, "InviteUser", s.InviteUser)
	unary(r, "RespondToInvite", s.RespondToInvite)
	unary(r, "GetCostShares", s.GetCostShares)
	unary(r, "ExpandOccurrences", s.ExpandOccurrences)
	unary(r, "GetBalances", s.GetBalances)
	if s.templates != nil {
		unary(r, "CreateTemplate", s.CreateTemplate)
		unary(r, "ListTemplates", s.ListTemplates)
		unary(r, "DeleteTemplate", s.DeleteTemplate)
		unary(r, "CreateEventFromTemplate", s.CreateEventFromTemplate)
	}
	return r.handler()
}

type EventRequest struct {
	EventID string `json:"eventId"`
}

type EventResponse struct {
	Event *models.Event `json:"event"`
}

type CreateEventRequest struct {
	Event models.Event `json:"event"`
}

type UpdateEventRequest struct {
	Event models.Event `json:"event"`
}

type ListEventsResponse struct {
	Events   []*models.Event `json:"events"`
	Degraded []string        `json:"degraded,omitempty"`
}

type SetEventStatusRequest struct {
	EventID string             `json:"eventId"`
	Status  models.EventStatus `json:"status"`
}

type CancelOccurrenceRequest struct {
	EventID string    `json:"eventId"`
	Date    time.Time `json:"date"`
}

type InviteUserRequest struct {
	EventID string   `json:"eventId"`
	UserID  string   `json:"userId"`
	Roles   []string `json:"roles,omitempty"`
	Cost    *float64 `json:"cost,omitempty"`
}

type InviteResponse struct {
	Invite models.EventInvite `json:"invite"`
}

type RespondToInviteRequest struct {
	EventID string              `json:"eventId"`
	Status  models.InviteStatus `json:"status"`
}

// visible loads an event the caller created or holds a live invite for.
func (s *EventService) visible(ctx context.Context, userID, eventID string) (*models.Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.VisibleTo(userID) {
		return nil, errdef.NewNotFound("event %s not found", eventID)
	}
	return e, nil
}

// owned loads an event the caller created.
func (s *EventService) owned(ctx context.Context, userID, eventID string) (*models.Event, error) {
	e, err := s.visible(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if e.CreatorID != userID {
		return nil, errdef.NewForbidden("only the creator can modify event %s", eventID)
	}
	return e, nil
}

func validateEvent(e *models.Event) error {
	if e.CostDistribution.Type == "" {
		e.CostDistribution.Type = models.DistributionEqual
	}
	if err := models.ValidateEvent(e); err != nil {
		return err
	}
	return recurrence.Validate(e)
}

// CreateEvent creates an event owned by the caller. Invites in the request
// start pending regardless of the status sent.
func (s *EventService) CreateEvent(ctx context.Context, req *connect.Request[CreateEventRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	in := req.Msg.Event
	slog.Info("CreateEvent request received",
		"title", in.Title,
		"invites_count", len(in.Invites),
		"recurring", in.IsRecurring,
	)

	e, err := s.create(ctx, userID, in)
	if err != nil {
		return nil, fail("CreateEvent", err)
	}
	return connect.NewResponse(&EventResponse{Event: e}), nil
}

// create stores in as a new event of userID, opens its chat and notifies the
// invitees. Invites start pending.
func (s *EventService) create(ctx context.Context, userID string, in models.Event) (*models.Event, error) {
	e := in
	e.ID = ""
	e.CreatorID = userID
	e.CancelledOccurrences = nil
	e.Invites = nil
	e.ChatID = ""
	if e.Status == "" {
		e.Status = models.EventStatusDraft
	}
	if e.Status != models.EventStatusDraft && e.Status != models.EventStatusScheduled {
		return nil, errdef.NewValidation("new events must be draft or scheduled, got %s", e.Status)
	}
	for _, want := range in.Invites {
		if err := s.canInvite(ctx, userID, want.UserID); err != nil {
			return nil, err
		}
		inv, err := invite.Invite(&e, want.UserID, want.Roles)
		if err != nil {
			return nil, err
		}
		inv.Cost = want.Cost
	}
	if err := validateEvent(&e); err != nil {
		return nil, err
	}
	if s.chats != nil {
		e.ChatID = chat.NewID()
	}

	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return nil, err
	}
	slog.Info("Event created", "event_id", e.ID)

	if s.chats != nil {
		if _, err := s.chats.Open(ctx, &e); err != nil {
			slog.Warn("Failed to open event chat", "event_id", e.ID, "chat_id", e.ChatID, "error", err)
		}
	}
	for _, inv := range e.Invites {
		if _, err := s.notifier.EventInvite(ctx, inv.UserID, &e); err != nil {
			slog.Warn("Failed to notify invitee", "event_id", e.ID, "user_id", inv.UserID, "error", err)
		}
	}
	return &e, nil
}

// canInvite rejects invitees the creator is not friends with when invites
// are limited to friends.
func (s *EventService) canInvite(ctx context.Context, creatorID, inviteeID string) error {
	if s.friends == nil || inviteeID == "" || inviteeID == creatorID {
		return nil
	}
	ok, err := s.friends.IsFriend(ctx, creatorID, inviteeID)
	if err != nil {
		return err
	}
	if !ok {
		return errdef.NewForbidden("%s is not a friend of %s", inviteeID, creatorID)
	}
	return nil
}

// GetEvent retrieves an event visible to the caller.
func (s *EventService) GetEvent(ctx context.Context, req *connect.Request[EventRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetEvent request received", "event_id", req.Msg.EventID)

	e, err := s.visible(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("GetEvent", err, "event_id", req.Msg.EventID)
	}
	return connect.NewResponse(&EventResponse{Event: e}), nil
}

// UpdateEvent replaces the editable fields of an event. Invites, status and
// cancelled occurrences have their own calls and are kept as stored.
func (s *EventService) UpdateEvent(ctx context.Context, req *connect.Request[UpdateEventRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	in := req.Msg.Event
	slog.Info("UpdateEvent request received", "event_id", in.ID, "title", in.Title)

	e, err := s.owned(ctx, userID, in.ID)
	if err != nil {
		return nil, fail("UpdateEvent", err, "event_id", in.ID)
	}
	e.Title = in.Title
	e.Description = in.Description
	e.Locations = in.Locations
	e.Start = in.Start
	e.End = in.End
	e.AllDay = in.AllDay
	e.TimeZone = in.TimeZone
	e.IsRecurring = in.IsRecurring
	e.RecurrenceRule = in.RecurrenceRule
	e.CostDistribution = in.CostDistribution
	if err := validateEvent(e); err != nil {
		return nil, fail("UpdateEvent", err, "event_id", in.ID)
	}

	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, fail("UpdateEvent", err, "event_id", in.ID)
	}
	slog.Info("Event updated", "event_id", e.ID)

	s.notifier.Participants(ctx, e, userID, func(ctx context.Context, to string) (*models.Notification, error) {
		return s.notifier.EventUpdate(ctx, to, e)
	})
	return connect.NewResponse(&EventResponse{Event: e}), nil
}

// DeleteEvent deletes an event owned by the caller.
func (s *EventService) DeleteEvent(ctx context.Context, req *connect.Request[EventRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteEvent request received", "event_id", req.Msg.EventID)

	if _, err := s.owned(ctx, userID, req.Msg.EventID); err != nil {
		return nil, fail("DeleteEvent", err, "event_id", req.Msg.EventID)
	}
	if err := s.store.DeleteEvent(ctx, req.Msg.EventID); err != nil {
		return nil, fail("DeleteEvent", err, "event_id", req.Msg.EventID)
	}
	slog.Info("Event deleted", "event_id", req.Msg.EventID)
	return connect.NewResponse(&Empty{}), nil
}

// ListEvents returns every event the caller created or is invited to.
func (s *EventService) ListEvents(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListEventsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListEvents request received")

	events, degraded := s.loader.Load(ctx, userID)
	slog.Info("ListEvents successful", "count", len(events), "degraded", degraded)
	return connect.NewResponse(&ListEventsResponse{Events: events, Degraded: degraded}), nil
}

// SetEventStatus moves an event along its lifecycle. Cancelling notifies
// every participant.
func (s *EventService) SetEventStatus(ctx context.Context, req *connect.Request[SetEventStatusRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SetEventStatus request received", "event_id", req.Msg.EventID, "status", req.Msg.Status)

	e, err := s.owned(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("SetEventStatus", err, "event_id", req.Msg.EventID)
	}
	if !e.Status.CanTransitionTo(req.Msg.Status) {
		err := errdef.NewValidation("event %s cannot move from %s to %s", e.ID, e.Status, req.Msg.Status)
		return nil, fail("SetEventStatus", err, "event_id", e.ID)
	}
	e.Status = req.Msg.Status
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, fail("SetEventStatus", err, "event_id", e.ID)
	}
	slog.Info("Event status changed", "event_id", e.ID, "status", e.Status)

	if e.Status == models.EventStatusCancelled {
		s.notifier.Participants(ctx, e, userID, func(ctx context.Context, to string) (*models.Notification, error) {
			return s.notifier.EventCancelled(ctx, to, e, nil)
		})
	}
	return connect.NewResponse(&EventResponse{Event: e}), nil
}

// CancelOccurrence calls off the occurrence of a recurring event that falls
// on the given date in the event's time zone.
func (s *EventService) CancelOccurrence(ctx context.Context, req *connect.Request[CancelOccurrenceRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CancelOccurrence request received", "event_id", req.Msg.EventID, "date", req.Msg.Date)

	e, err := s.owned(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("CancelOccurrence", err, "event_id", req.Msg.EventID)
	}
	if !e.IsRecurring {
		return nil, fail("CancelOccurrence", errdef.NewValidation("event %s is not recurring", e.ID))
	}

	loc := e.Location()
	day := req.Msg.Date.In(loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	// Look at the full series so cancelling the same date twice is a no-op.
	series := *e
	series.CancelledOccurrences = nil
	occurrence, ok := s.expander.Next(&series, from)
	if !ok || !occurrence.Start.Before(from.AddDate(0, 0, 1)) {
		err := errdef.NewNotFound("event %s has no occurrence on %s", e.ID, from.Format(time.DateOnly))
		return nil, fail("CancelOccurrence", err, "event_id", e.ID)
	}

	if err := s.store.AddCancelledOccurrence(ctx, e.ID, from); err != nil {
		return nil, fail("CancelOccurrence", err, "event_id", e.ID)
	}
	updated, err := s.store.GetEvent(ctx, e.ID)
	if err != nil {
		return nil, fail("CancelOccurrence", err, "event_id", e.ID)
	}
	slog.Info("Occurrence cancelled", "event_id", e.ID, "date", from.Format(time.DateOnly))

	start := occurrence.Start
	s.notifier.Participants(ctx, updated, userID, func(ctx context.Context, to string) (*models.Notification, error) {
		return s.notifier.EventCancelled(ctx, to, updated, &start)
	})
	return connect.NewResponse(&EventResponse{Event: updated}), nil
}

// InviteUser adds a pending invite to an event owned by the caller.
func (s *EventService) InviteUser(ctx context.Context, req *connect.Request[InviteUserRequest]) (*connect.Response[InviteResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("InviteUser request received", "event_id", req.Msg.EventID, "invitee", req.Msg.UserID)

	e, err := s.owned(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("InviteUser", err, "event_id", req.Msg.EventID)
	}
	if err := s.canInvite(ctx, userID, req.Msg.UserID); err != nil {
		return nil, fail("InviteUser", err, "event_id", e.ID, "invitee", req.Msg.UserID)
	}
	inv, err := invite.Invite(e, req.Msg.UserID, req.Msg.Roles)
	if err != nil {
		return nil, fail("InviteUser", err, "event_id", e.ID)
	}
	inv.Cost = req.Msg.Cost
	result := *inv
	if err := models.ValidateEvent(e); err != nil {
		return nil, fail("InviteUser", err, "event_id", e.ID)
	}
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, fail("InviteUser", err, "event_id", e.ID)
	}
	slog.Info("User invited", "event_id", e.ID, "invitee", result.UserID)

	if _, err := s.notifier.EventInvite(ctx, result.UserID, e); err != nil {
		slog.Warn("Failed to notify invitee", "event_id", e.ID, "user_id", result.UserID, "error", err)
	}
	return connect.NewResponse(&InviteResponse{Invite: result}), nil
}

// RespondToInvite records the caller's answer to their invite.
func (s *EventService) RespondToInvite(ctx context.Context, req *connect.Request[RespondToInviteRequest]) (*connect.Response[InviteResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RespondToInvite request received", "event_id", req.Msg.EventID, "status", req.Msg.Status)

	e, err := s.store.GetEvent(ctx, req.Msg.EventID)
	if err != nil {
		return nil, fail("RespondToInvite", err, "event_id", req.Msg.EventID)
	}
	changed, err := invite.Respond(e, userID, req.Msg.Status, s.now())
	if err != nil {
		return nil, fail("RespondToInvite", err, "event_id", e.ID)
	}
	if changed {
		if err := s.store.UpdateEvent(ctx, e); err != nil {
			return nil, fail("RespondToInvite", err, "event_id", e.ID)
		}
		slog.Info("Invite answered", "event_id", e.ID, "status", req.Msg.Status)
	}
	return connect.NewResponse(&InviteResponse{Invite: e.Invites[invite.Find(e, userID)]}), nil
}
