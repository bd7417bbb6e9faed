package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/dashboard"
)

const DashboardServiceName = "DashboardService"

// DashboardService implements the Connect DashboardService.
type DashboardService struct {
	dashboard *dashboard.Aggregator
}

func NewDashboardService(agg *dashboard.Aggregator) *DashboardService {
	return &DashboardService{dashboard: agg}
}

// Handler returns the path prefix and handler serving every DashboardService method.
func (s *DashboardService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(DashboardServiceName, opts)
	unary(r, "GetDashboard", s.GetDashboard)
	return r.handler()
}

// GetDashboard returns the caller's summary. Failed reads are reported in
// Degraded instead of failing the call.
func (s *DashboardService) GetDashboard(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[dashboard.Summary], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetDashboard request received")

	summary := s.dashboard.Build(ctx, userID)
	slog.Info("GetDashboard successful", "upcoming", len(summary.Upcoming), "degraded", summary.Degraded)
	return connect.NewResponse(summary), nil
}
