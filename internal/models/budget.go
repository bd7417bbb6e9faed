package models

import "time"

// MonthLayout formats a budget month key (YYYY-MM).
const MonthLayout = "2006-01"

// Budget is one user's spending for one calendar month.
type Budget struct {
	ID     string  `json:"id"`
	UserID string  `json:"userId"`
	Month  string  `json:"month"`
	Limit  float64 `json:"limit"`
	Spent  float64 `json:"spent"`

	// Events lists every cost attributed to this month, in attribution order.
	Events []BudgetEvent `json:"events"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BudgetEvent is one attributed cost.
type BudgetEvent struct {
	EventID    string    `json:"eventId"`
	EventTitle string    `json:"eventTitle"`
	Cost       float64   `json:"cost"`
	Date       time.Time `json:"date"`
}

// Remaining is the unspent part of the limit. It is negative when over budget.
func (b *Budget) Remaining() float64 {
	return b.Limit - b.Spent
}

// OverLimit reports whether a limit is set and spending exceeds it.
func (b *Budget) OverLimit() bool {
	return b.Limit > 0 && b.Spent > b.Limit
}
