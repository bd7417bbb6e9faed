package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/calculator"
	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/recurrence"
)

type Share struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
	Minor  int64   `json:"minor"`
}

type CostSharesResponse struct {
	Unit   int64   `json:"unit"`
	Total  float64 `json:"total"`
	Shares []Share `json:"shares"`
}

type ExpandOccurrencesRequest struct {
	// EventID limits the expansion to one event. Empty expands every event
	// visible to the caller.
	EventID string            `json:"eventId,omitempty"`
	Window  recurrence.Window `json:"window"`
}

type OccurrenceView struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Index   int       `json:"index"`
}

type ExpandOccurrencesResponse struct {
	Occurrences []OccurrenceView `json:"occurrences"`
	Truncated   []string         `json:"truncated,omitempty"`
}

type GetBalancesRequest struct {
	// EventIDs selects the events to settle. Empty means every event visible
	// to the caller.
	EventIDs []string `json:"eventIds,omitempty"`
}

type Balance struct {
	UserID     string  `json:"userId"`
	NetBalance float64 `json:"netBalance"`
	TotalPaid  float64 `json:"totalPaid"`
	TotalOwed  float64 `json:"totalOwed"`
}

type Debt struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type GetBalancesResponse struct {
	Balances []Balance `json:"balances"`
	Debts    []Debt    `json:"debts"`
}

func (s *EventService) major(minor int64) float64 {
	return float64(minor) / float64(s.unit)
}

// GetCostShares computes what each participant owes for an event.
func (s *EventService) GetCostShares(ctx context.Context, req *connect.Request[EventRequest]) (*connect.Response[CostSharesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetCostShares request received", "event_id", req.Msg.EventID)

	e, err := s.visible(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("GetCostShares", err, "event_id", req.Msg.EventID)
	}
	shares, err := calculator.ComputeCostShares(e.CostDistribution, e.Invites, s.unit)
	if err != nil {
		return nil, fail("GetCostShares", err, "event_id", e.ID)
	}

	resp := &CostSharesResponse{Unit: shares.Unit, Total: s.major(shares.Total()), Shares: []Share{}}
	for _, user := range shares.Order {
		resp.Shares = append(resp.Shares, Share{
			UserID: user,
			Amount: shares.Major(user),
			Minor:  shares.Amounts[user],
		})
	}
	slog.Info("GetCostShares successful", "event_id", e.ID, "participants", len(resp.Shares))
	return connect.NewResponse(resp), nil
}

// ExpandOccurrences lists concrete occurrences within a window.
func (s *EventService) ExpandOccurrences(ctx context.Context, req *connect.Request[ExpandOccurrencesRequest]) (*connect.Response[ExpandOccurrencesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	w := req.Msg.Window
	slog.Info("ExpandOccurrences request received", "event_id", req.Msg.EventID, "from", w.From, "to", w.To)

	if w.From.IsZero() || w.To.IsZero() || w.To.Before(w.From) {
		return nil, fail("ExpandOccurrences", errdef.NewValidation("invalid window %s - %s", w.From, w.To))
	}

	var events []*models.Event
	if req.Msg.EventID != "" {
		e, err := s.visible(ctx, userID, req.Msg.EventID)
		if err != nil {
			return nil, fail("ExpandOccurrences", err, "event_id", req.Msg.EventID)
		}
		events = []*models.Event{e}
	} else {
		events, _ = s.loader.Load(ctx, userID)
	}

	result := s.expander.Expand(events, w)
	resp := &ExpandOccurrencesResponse{Occurrences: []OccurrenceView{}, Truncated: result.Truncated}
	for _, o := range result.Occurrences {
		resp.Occurrences = append(resp.Occurrences, OccurrenceView{
			EventID: o.Event.ID,
			Title:   o.Event.Title,
			Start:   o.Start,
			End:     o.End,
			Index:   o.Index,
		})
	}
	slog.Info("ExpandOccurrences successful", "count", len(resp.Occurrences))
	return connect.NewResponse(resp), nil
}

// GetBalances settles the costs of several events: the creator of each event
// paid it, and every participant owes their share.
func (s *EventService) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetBalances request received", "events_count", len(req.Msg.EventIDs))

	var events []*models.Event
	if len(req.Msg.EventIDs) == 0 {
		events, _ = s.loader.Load(ctx, userID)
	}
	for _, id := range req.Msg.EventIDs {
		e, err := s.visible(ctx, userID, id)
		if err != nil {
			return nil, fail("GetBalances", err, "event_id", id)
		}
		events = append(events, e)
	}

	balances, edges, err := calculator.CalculateEventBalances(events, s.unit)
	if err != nil {
		return nil, fail("GetBalances", err)
	}

	resp := &GetBalancesResponse{Balances: []Balance{}, Debts: []Debt{}}
	for _, b := range balances {
		resp.Balances = append(resp.Balances, Balance{
			UserID:     b.UserID,
			NetBalance: s.major(b.NetBalance),
			TotalPaid:  s.major(b.TotalPaid),
			TotalOwed:  s.major(b.TotalOwed),
		})
	}
	for _, d := range edges {
		resp.Debts = append(resp.Debts, Debt{From: d.From, To: d.To, Amount: s.major(d.Amount)})
	}
	slog.Info("GetBalances successful", "members", len(resp.Balances), "debts", len(resp.Debts))
	return connect.NewResponse(resp), nil
}
