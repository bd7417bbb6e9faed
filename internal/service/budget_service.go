package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/budget"
	"github.com/mmynk/gatherly/internal/calculator"
	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

const BudgetServiceName = "BudgetService"

// BudgetService implements the Connect BudgetService.
type BudgetService struct {
	rollup *budget.Rollup
	events storage.EventStore
	unit   int64
}

func NewBudgetService(rollup *budget.Rollup, events storage.EventStore, unit int64) *BudgetService {
	return &BudgetService{rollup: rollup, events: events, unit: unit}
}

// Handler returns the path prefix and handler serving every BudgetService method.
func (s *BudgetService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(BudgetServiceName, opts)
	unary(r, "GetCurrentBudget", s.GetCurrentBudget)
	unary(r, "ListBudgets", s.ListBudgets)
	unary(r, "SetBudgetLimit", s.SetBudgetLimit)
	unary(r, "AttributeEvent", s.AttributeEvent)
	return r.handler()
}

type BudgetResponse struct {
	// Budget is nil when the month has no budget yet.
	Budget   *models.Budget   `json:"budget"`
	Snapshot *budget.Snapshot `json:"snapshot"`
}

type ListBudgetsResponse struct {
	Budgets []*models.Budget `json:"budgets"`
}

type SetBudgetLimitRequest struct {
	Month string  `json:"month"`
	Limit float64 `json:"limit"`
}

func budgetResponse(b *models.Budget) *BudgetResponse {
	return &BudgetResponse{Budget: b, Snapshot: budget.NewSnapshot(b)}
}

// GetCurrentBudget returns the caller's budget for the current month.
func (s *BudgetService) GetCurrentBudget(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[BudgetResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetCurrentBudget request received")

	b, err := s.rollup.Current(ctx, userID)
	if err != nil {
		return nil, fail("GetCurrentBudget", err)
	}
	return connect.NewResponse(budgetResponse(b)), nil
}

// ListBudgets returns every budget of the caller, newest month first.
func (s *BudgetService) ListBudgets(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListBudgetsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListBudgets request received")

	budgets, err := s.rollup.List(ctx, userID)
	if err != nil {
		return nil, fail("ListBudgets", err)
	}
	slog.Info("ListBudgets successful", "count", len(budgets))
	return connect.NewResponse(&ListBudgetsResponse{Budgets: nonNil(budgets)}), nil
}

// SetBudgetLimit sets the caller's spending limit for a YYYY-MM month,
// creating the budget when the month has none.
func (s *BudgetService) SetBudgetLimit(ctx context.Context, req *connect.Request[SetBudgetLimitRequest]) (*connect.Response[BudgetResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SetBudgetLimit request received", "month", req.Msg.Month, "limit", req.Msg.Limit)

	b, err := s.rollup.SetLimit(ctx, userID, req.Msg.Month, req.Msg.Limit)
	if err != nil {
		return nil, fail("SetBudgetLimit", err, "month", req.Msg.Month)
	}
	return connect.NewResponse(budgetResponse(b)), nil
}

// AttributeEvent adds the caller's share of an event to the budget of the
// month the event starts in. An event is attributed at most once per user.
func (s *BudgetService) AttributeEvent(ctx context.Context, req *connect.Request[EventRequest]) (*connect.Response[BudgetResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AttributeEvent request received", "event_id", req.Msg.EventID)

	e, err := s.events.GetEvent(ctx, req.Msg.EventID)
	if err != nil {
		return nil, fail("AttributeEvent", err, "event_id", req.Msg.EventID)
	}
	if !e.VisibleTo(userID) {
		return nil, fail("AttributeEvent", errdef.NewNotFound("event %s not found", e.ID))
	}
	shares, err := calculator.ComputeCostShares(e.CostDistribution, e.Invites, s.unit)
	if err != nil {
		return nil, fail("AttributeEvent", err, "event_id", e.ID)
	}
	if _, ok := shares.Amounts[userID]; !ok {
		return nil, fail("AttributeEvent", errdef.NewValidation("user %s does not share the cost of event %s", userID, e.ID))
	}

	// The store rejects a second entry for the same event and month atomically.
	b, err := s.rollup.Attribute(ctx, userID, e, shares.Major(userID), e.Start)
	if err != nil {
		return nil, fail("AttributeEvent", err, "event_id", e.ID)
	}
	slog.Info("Event attributed", "event_id", e.ID, "month", b.Month, "spent", b.Spent)
	return connect.NewResponse(budgetResponse(b)), nil
}
