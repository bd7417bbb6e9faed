// Package templates keeps reusable event defaults. A template is visible to
// its creator and, when public, to everyone.
package templates

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Library reads and writes templates on behalf of users.
type Library struct {
	store storage.TemplateStore
}

func New(store storage.TemplateStore) *Library {
	return &Library{store: store}
}

// Create saves t as a template owned by userID.
func (l *Library) Create(ctx context.Context, userID string, t models.EventTemplate) (*models.EventTemplate, error) {
	t.ID = ""
	t.CreatorID = userID
	t.CreatedAt = time.Time{}
	if err := models.Validate(&t); err != nil {
		return nil, err
	}
	if err := l.store.CreateTemplate(ctx, &t); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return &t, nil
}

// List returns userID's own templates and every public one, by name.
func (l *Library) List(ctx context.Context, userID string) ([]*models.EventTemplate, error) {
	return l.store.ListTemplates(ctx, userID)
}

// Get returns a template userID may use. Other users' private templates are
// reported as missing.
func (l *Library) Get(ctx context.Context, userID, templateID string) (*models.EventTemplate, error) {
	t, err := l.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !t.UsableBy(userID) {
		return nil, errdef.NewNotFound("template not found: %s", templateID)
	}
	return t, nil
}

// Delete removes a template owned by userID.
func (l *Library) Delete(ctx context.Context, userID, templateID string) error {
	t, err := l.Get(ctx, userID, templateID)
	if err != nil {
		return err
	}
	if t.CreatorID != userID {
		return errdef.NewForbidden("only the creator can delete template %s", templateID)
	}
	return l.store.DeleteTemplate(ctx, templateID)
}

// Draft builds a draft event from t starting at start. An empty title takes
// the template name. Every invitee gets the template's default roles.
func Draft(t *models.EventTemplate, title string, start time.Time, invitees []string) models.Event {
	if title == "" {
		title = t.Name
	}
	e := models.Event{
		Title:            title,
		Description:      t.Description,
		Start:            start,
		End:              start.Add(t.Duration()),
		Status:           models.EventStatusDraft,
		CostDistribution: models.CostDistribution{Type: models.DistributionEqual},
	}
	for _, loc := range t.DefaultLocations {
		loc.ID = ""
		e.Locations = append(e.Locations, loc)
	}
	for _, id := range invitees {
		e.Invites = append(e.Invites, models.EventInvite{UserID: id, Roles: slices.Clone(t.DefaultRoles)})
	}
	return e
}
