// Package calculator computes how an event's cost is shared and what
// participants owe each other.
package calculator

import (
	"math"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

// Shares is the per-user result of a cost distribution, in minor units.
type Shares struct {
	// Unit is the number of minor units per major unit (1 for whole units, 100 for cents).
	Unit int64

	// Order lists participants in invite order.
	Order []string

	// Amounts maps userId to the owed amount in minor units.
	Amounts map[string]int64
}

// Total returns the sum of all shares in minor units.
func (s *Shares) Total() int64 {
	var sum int64
	for _, a := range s.Amounts {
		sum += a
	}
	return sum
}

// Major returns user's share in major units.
func (s *Shares) Major(userID string) float64 {
	return float64(s.Amounts[userID]) / float64(s.Unit)
}

// ComputeCostShares distributes dist across the invites that were not declined.
//
// Equal mode converts the total to minor units once and gives every participant
// total/n, handing the remainder out one unit at a time in invite order, so the
// shares always sum to the total and differ by at most one minor unit.
//
// Manual mode takes each invite's cost override, then dist.PerUser, then zero.
// It never falls back to an equal share and never returns users outside the
// invite list.
func ComputeCostShares(dist models.CostDistribution, invites []models.EventInvite, unit int64) (*Shares, error) {
	if unit <= 0 {
		return nil, errdef.NewValidation("currency unit must be positive, got %d", unit)
	}
	if dist.Total < 0 || math.IsNaN(dist.Total) || math.IsInf(dist.Total, 0) {
		return nil, errdef.NewValidation("cost total must be a non-negative number, got %v", dist.Total)
	}

	shares := &Shares{Unit: unit, Amounts: make(map[string]int64)}
	for _, inv := range invites {
		if inv.Status == models.InviteStatusDeclined {
			continue
		}
		if _, dup := shares.Amounts[inv.UserID]; dup {
			continue
		}
		shares.Order = append(shares.Order, inv.UserID)
		shares.Amounts[inv.UserID] = 0
	}

	switch dist.Type {
	case models.DistributionEqual, "":
		n := int64(len(shares.Order))
		if n == 0 {
			return shares, nil
		}
		total := toMinor(dist.Total, unit)
		base, rem := total/n, total%n
		for i, user := range shares.Order {
			amount := base
			if int64(i) < rem {
				amount++
			}
			shares.Amounts[user] = amount
		}
	case models.DistributionManual:
		overrides := make(map[string]*float64, len(invites))
		for i := range invites {
			overrides[invites[i].UserID] = invites[i].Cost
		}
		for _, user := range shares.Order {
			var cost float64
			if c := overrides[user]; c != nil {
				cost = *c
			} else if c, ok := dist.PerUser[user]; ok {
				cost = c
			}
			if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
				return nil, errdef.NewValidation("manual share for %s must be a non-negative number, got %v", user, cost)
			}
			shares.Amounts[user] = toMinor(cost, unit)
		}
	default:
		return nil, errdef.NewValidation("unknown distribution type %q", dist.Type)
	}

	return shares, nil
}

func toMinor(amount float64, unit int64) int64 {
	return int64(math.Round(amount * float64(unit)))
}
