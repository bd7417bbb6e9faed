// Package preferences reads and writes per-user settings. A user who never
// saved any gets models.DefaultPreferences.
package preferences

import (
	"context"
	"fmt"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Service reads and writes preferences.
type Service struct {
	store storage.PreferenceStore
}

func New(store storage.PreferenceStore) *Service {
	return &Service{store: store}
}

// Get returns userID's preferences, falling back to the defaults.
func (s *Service) Get(ctx context.Context, userID string) (*models.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return models.DefaultPreferences(userID), nil
	}
	return p, nil
}

// Update validates p and saves it as userID's preferences. Empty language and
// calendar view fields take their defaults.
func (s *Service) Update(ctx context.Context, userID string, p models.Preferences) (*models.Preferences, error) {
	defaults := models.DefaultPreferences(userID)
	p.UserID = userID
	if p.Language == "" {
		p.Language = defaults.Language
	}
	if p.DefaultCalendarView == "" {
		p.DefaultCalendarView = defaults.DefaultCalendarView
	}
	if err := models.Validate(&p); err != nil {
		return nil, err
	}
	if err := s.store.PutPreferences(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return &p, nil
}

// Wants reports whether userID accepts notifications of type t.
func (s *Service) Wants(ctx context.Context, userID string, t models.NotificationType) (bool, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return p.Wants(t), nil
}
