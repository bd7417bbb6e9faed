// Package budget attributes event costs to monthly per-user budgets.
package budget

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mmynk/gatherly/internal/calculator"
	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Rollup reads and updates monthly budgets.
type Rollup struct {
	store    storage.BudgetStore
	location *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a Rollup whose month boundaries are taken in loc (UTC if nil).
// m may be nil.
func New(store storage.BudgetStore, loc *time.Location, m *metrics.Metrics) *Rollup {
	if loc == nil {
		loc = time.UTC
	}
	return &Rollup{store: store, location: loc, metrics: m, now: time.Now}
}

// MonthKey returns the YYYY-MM key of the month containing t.
func (r *Rollup) MonthKey(t time.Time) string {
	return t.In(r.location).Format(models.MonthLayout)
}

// Attribute adds cost for event to userID's budget for the month of date.
// The increment and the entry append happen in one atomic store operation,
// so concurrent attributions never lose an update.
func (r *Rollup) Attribute(ctx context.Context, userID string, event *models.Event, cost float64, date time.Time) (*models.Budget, error) {
	if userID == "" {
		return nil, errdef.NewValidation("user id is required")
	}
	if event == nil || event.ID == "" {
		return nil, errdef.NewValidation("event is required")
	}
	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, errdef.NewValidation("cost must be a non-negative number, got %v", cost)
	}

	entry := models.BudgetEvent{
		EventID:    event.ID,
		EventTitle: event.Title,
		Cost:       cost,
		Date:       date,
	}
	b, err := r.store.AddBudgetEvent(ctx, userID, r.MonthKey(date), entry)
	if err != nil {
		return nil, fmt.Errorf("failed to attribute event %s: %w", event.ID, err)
	}
	r.metrics.BudgetAttributed()
	return b, nil
}

// AttributeShares attributes every participant's share of event to that
// participant's own budget. Zero shares are skipped.
func (r *Rollup) AttributeShares(ctx context.Context, event *models.Event, shares *calculator.Shares, date time.Time) error {
	if shares == nil {
		return errdef.NewValidation("shares are required")
	}
	for _, user := range shares.Order {
		if shares.Amounts[user] == 0 {
			continue
		}
		if _, err := r.Attribute(ctx, user, event, shares.Major(user), date); err != nil {
			return err
		}
	}
	return nil
}

// Current returns userID's budget for the current month, or nil if none exists.
func (r *Rollup) Current(ctx context.Context, userID string) (*models.Budget, error) {
	return r.store.GetBudget(ctx, userID, r.MonthKey(r.now()))
}

// Month returns userID's budget for month, or nil if none exists.
func (r *Rollup) Month(ctx context.Context, userID, month string) (*models.Budget, error) {
	return r.store.GetBudget(ctx, userID, month)
}

// SetLimit sets the spending limit for month, creating the budget if needed.
func (r *Rollup) SetLimit(ctx context.Context, userID, month string, limit float64) (*models.Budget, error) {
	if _, err := time.Parse(models.MonthLayout, month); err != nil {
		return nil, errdef.NewValidation("invalid month %q, expected YYYY-MM", month)
	}
	if limit < 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return nil, errdef.NewValidation("limit must be a non-negative number, got %v", limit)
	}
	return r.store.SetBudgetLimit(ctx, userID, month, limit)
}

// List returns userID's budgets, newest month first.
func (r *Rollup) List(ctx context.Context, userID string) ([]*models.Budget, error) {
	return r.store.ListBudgets(ctx, userID)
}

// Snapshot is a read-only summary of one budget.
type Snapshot struct {
	Month     string  `json:"month"`
	Limit     float64 `json:"limit"`
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
	OverLimit bool    `json:"overLimit"`
}

// NewSnapshot summarizes b. It returns nil for a nil budget.
func NewSnapshot(b *models.Budget) *Snapshot {
	if b == nil {
		return nil
	}
	return &Snapshot{
		Month:     b.Month,
		Limit:     b.Limit,
		Spent:     b.Spent,
		Remaining: b.Remaining(),
		OverLimit: b.OverLimit(),
	}
}
