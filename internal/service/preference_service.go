package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/preferences"
)

const PreferenceServiceName = "PreferenceService"

// PreferenceService implements the Connect PreferenceService.
type PreferenceService struct {
	prefs *preferences.Service
}

func NewPreferenceService(prefs *preferences.Service) *PreferenceService {
	return &PreferenceService{prefs: prefs}
}

// Handler returns the path prefix and handler serving every PreferenceService method.
func (s *PreferenceService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(PreferenceServiceName, opts)
	unary(r, "GetPreferences", s.GetPreferences)
	unary(r, "UpdatePreferences", s.UpdatePreferences)
	return r.handler()
}

type PreferencesResponse struct {
	Preferences *models.Preferences `json:"preferences"`
}

type UpdatePreferencesRequest struct {
	Preferences models.Preferences `json:"preferences"`
}

// GetPreferences returns the caller's preferences, or the defaults if none
// were saved.
func (s *PreferenceService) GetPreferences(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[PreferencesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetPreferences request received")

	p, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fail("GetPreferences", err)
	}
	return connect.NewResponse(&PreferencesResponse{Preferences: p}), nil
}

// UpdatePreferences replaces the caller's preferences.
func (s *PreferenceService) UpdatePreferences(ctx context.Context, req *connect.Request[UpdatePreferencesRequest]) (*connect.Response[PreferencesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	in := req.Msg.Preferences
	slog.Info("UpdatePreferences request received",
		"language", in.Language,
		"view", in.DefaultCalendarView,
		"timezone", in.Timezone,
	)

	p, err := s.prefs.Update(ctx, userID, in)
	if err != nil {
		return nil, fail("UpdatePreferences", err)
	}
	slog.Info("Preferences updated")
	return connect.NewResponse(&PreferencesResponse{Preferences: p}), nil
}
