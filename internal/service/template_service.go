package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/templates"
)

type TemplateRequest struct {
	TemplateID string `json:"templateId"`
}

type CreateTemplateRequest struct {
	Template models.EventTemplate `json:"template"`
}

type TemplateResponse struct {
	Template *models.EventTemplate `json:"template"`
}

type ListTemplatesResponse struct {
	Templates []*models.EventTemplate `json:"templates"`
}

type CreateEventFromTemplateRequest struct {
	TemplateID string    `json:"templateId"`
	Title      string    `json:"title,omitempty"`
	Start      time.Time `json:"start"`
	Invitees   []string  `json:"invitees,omitempty"`
}

// CreateTemplate saves a template owned by the caller.
func (s *EventService) CreateTemplate(ctx context.Context, req *connect.Request[CreateTemplateRequest]) (*connect.Response[TemplateResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateTemplate request received", "name", req.Msg.Template.Name, "public", req.Msg.Template.IsPublic)

	t, err := s.templates.Create(ctx, userID, req.Msg.Template)
	if err != nil {
		return nil, fail("CreateTemplate", err)
	}
	slog.Info("Template created", "template_id", t.ID)
	return connect.NewResponse(&TemplateResponse{Template: t}), nil
}

// ListTemplates returns the caller's templates and every public one.
func (s *EventService) ListTemplates(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListTemplatesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListTemplates request received")

	list, err := s.templates.List(ctx, userID)
	if err != nil {
		return nil, fail("ListTemplates", err)
	}
	return connect.NewResponse(&ListTemplatesResponse{Templates: nonNil(list)}), nil
}

func (s *EventService) DeleteTemplate(ctx context.Context, req *connect.Request[TemplateRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteTemplate request received", "template_id", req.Msg.TemplateID)

	if err := s.templates.Delete(ctx, userID, req.Msg.TemplateID); err != nil {
		return nil, fail("DeleteTemplate", err, "template_id", req.Msg.TemplateID)
	}
	slog.Info("Template deleted", "template_id", req.Msg.TemplateID)
	return connect.NewResponse(&Empty{}), nil
}

// CreateEventFromTemplate creates a draft event from a template the caller
// can use. An empty title takes the template's name.
func (s *EventService) CreateEventFromTemplate(ctx context.Context, req *connect.Request[CreateEventFromTemplateRequest]) (*connect.Response[EventResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateEventFromTemplate request received",
		"template_id", req.Msg.TemplateID,
		"invites_count", len(req.Msg.Invitees),
	)

	t, err := s.templates.Get(ctx, userID, req.Msg.TemplateID)
	if err != nil {
		return nil, fail("CreateEventFromTemplate", err, "template_id", req.Msg.TemplateID)
	}
	e, err := s.create(ctx, userID, templates.Draft(t, req.Msg.Title, req.Msg.Start, req.Msg.Invitees))
	if err != nil {
		return nil, fail("CreateEventFromTemplate", err, "template_id", t.ID)
	}
	return connect.NewResponse(&EventResponse{Event: e}), nil
}
