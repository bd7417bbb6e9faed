package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/gatherly/internal/models"
)

// MemberBalance represents the balance information for one participant, in minor units.
type MemberBalance struct {
	UserID     string
	NetBalance int64 // Positive = owed money, Negative = owes money
	TotalPaid  int64 // Total amount paid across all events
	TotalOwed  int64 // Total amount this person owes
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount int64
}

// CalculateEventBalances computes balances across multiple events.
// The creator of each event is treated as having paid its total and each
// participant owes their share, including the creator when invited.
//
// Algorithm:
// - For each event: creator contributed +total, each participant owes their share
// - Aggregate: net_balance = total_paid - total_owed
// - Debt edges: simplified using greedy matching of largest debtor to largest creditor
func CalculateEventBalances(events []*models.Event, unit int64) ([]MemberBalance, []DebtEdge, error) {
	balances := make(map[string]*MemberBalance)
	get := func(id string) *MemberBalance {
		if _, exists := balances[id]; !exists {
			balances[id] = &MemberBalance{UserID: id}
		}
		return balances[id]
	}

	for _, e := range events {
		if e.CreatorID == "" || e.Status == models.EventStatusCancelled {
			continue
		}

		shares, err := ComputeCostShares(e.CostDistribution, e.Invites, unit)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to calculate shares for event %s: %w", e.ID, err)
		}
		if len(shares.Order) == 0 {
			continue
		}

		// The creator paid what the participants owe in total.
		get(e.CreatorID).TotalPaid += shares.Total()
		for _, user := range shares.Order {
			get(user).TotalOwed += shares.Amounts[user]
		}
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, bal := range balances {
		bal.NetBalance = bal.TotalPaid - bal.TotalOwed
		memberBalances = append(memberBalances, *bal)
	}
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].UserID < memberBalances[j].UserID
	})

	return memberBalances, simplifyDebts(memberBalances), nil
}

// simplifyDebts matches debtors with creditors to minimize transactions.
func simplifyDebts(balances []MemberBalance) []DebtEdge {
	type party struct {
		id     string
		amount int64
	}
	var creditors, debtors []party
	for _, bal := range balances {
		if bal.NetBalance > 0 {
			creditors = append(creditors, party{bal.UserID, bal.NetBalance})
		} else if bal.NetBalance < 0 {
			debtors = append(debtors, party{bal.UserID, -bal.NetBalance})
		}
	}
	byAmount := func(ps []party) {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].amount > ps[j].amount })
	}
	byAmount(creditors)
	byAmount(debtors)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})

		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
