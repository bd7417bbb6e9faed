package calculator

import (
	"math"
	"testing"

	"github.com/mmynk/gatherly/internal/models"
)

func invites(ids ...string) []models.EventInvite {
	out := make([]models.EventInvite, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.EventInvite{UserID: id, Status: models.InviteStatusAccepted})
	}
	return out
}

func ptr(f float64) *float64 { return &f }

func TestComputeCostShares(t *testing.T) {
	tests := []struct {
		name         string
		dist         models.CostDistribution
		invites      []models.EventInvite
		unit         int64
		wantErr      bool
		validateFunc func(t *testing.T, s *Shares)
	}{
		{
			name:    "equal split of 10 in whole units",
			dist:    models.CostDistribution{Total: 10, Type: models.DistributionEqual},
			invites: invites("Alice", "Bob", "Charlie"),
			unit:    1,
			validateFunc: func(t *testing.T, s *Shares) {
				want := map[string]int64{"Alice": 4, "Bob": 3, "Charlie": 3}
				for user, amount := range want {
					if s.Amounts[user] != amount {
						t.Errorf("%s share = %d, want %d", user, s.Amounts[user], amount)
					}
				}
			},
		},
		{
			name:    "equal split of 10 in cents",
			dist:    models.CostDistribution{Total: 10, Type: models.DistributionEqual},
			invites: invites("Alice", "Bob", "Charlie"),
			unit:    100,
			validateFunc: func(t *testing.T, s *Shares) {
				want := map[string]float64{"Alice": 3.34, "Bob": 3.33, "Charlie": 3.33}
				for user, amount := range want {
					if math.Abs(s.Major(user)-amount) > 1e-9 {
						t.Errorf("%s share = %v, want %v", user, s.Major(user), amount)
					}
				}
				if s.Total() != 1000 {
					t.Errorf("total = %d, want 1000", s.Total())
				}
			},
		},
		{
			name: "declined invites are excluded",
			dist: models.CostDistribution{Total: 30, Type: models.DistributionEqual},
			invites: []models.EventInvite{
				{UserID: "Alice", Status: models.InviteStatusAccepted},
				{UserID: "Bob", Status: models.InviteStatusDeclined},
				{UserID: "Charlie", Status: models.InviteStatusPending},
			},
			unit: 1,
			validateFunc: func(t *testing.T, s *Shares) {
				if _, ok := s.Amounts["Bob"]; ok {
					t.Errorf("declined user Bob has a share")
				}
				if s.Amounts["Alice"] != 15 || s.Amounts["Charlie"] != 15 {
					t.Errorf("shares = %v, want 15 each", s.Amounts)
				}
			},
		},
		{
			name:    "no participants yields empty shares",
			dist:    models.CostDistribution{Total: 50, Type: models.DistributionEqual},
			invites: nil,
			unit:    100,
			validateFunc: func(t *testing.T, s *Shares) {
				if len(s.Amounts) != 0 {
					t.Errorf("amounts = %v, want empty", s.Amounts)
				}
			},
		},
		{
			name: "manual split prefers invite override then perUser then zero",
			dist: models.CostDistribution{
				Total:   40,
				Type:    models.DistributionManual,
				PerUser: map[string]float64{"Alice": 5, "Bob": 12.5, "Mallory": 99},
			},
			invites: []models.EventInvite{
				{UserID: "Alice", Status: models.InviteStatusAccepted, Cost: ptr(20)},
				{UserID: "Bob", Status: models.InviteStatusAccepted},
				{UserID: "Charlie", Status: models.InviteStatusPending},
			},
			unit: 100,
			validateFunc: func(t *testing.T, s *Shares) {
				want := map[string]int64{"Alice": 2000, "Bob": 1250, "Charlie": 0}
				if len(s.Amounts) != len(want) {
					t.Errorf("amounts = %v, want exactly %v", s.Amounts, want)
				}
				for user, amount := range want {
					if s.Amounts[user] != amount {
						t.Errorf("%s share = %d, want %d", user, s.Amounts[user], amount)
					}
				}
			},
		},
		{
			name:    "negative total should error",
			dist:    models.CostDistribution{Total: -1, Type: models.DistributionEqual},
			invites: invites("Alice"),
			unit:    1,
			wantErr: true,
		},
		{
			name:    "zero unit should error",
			dist:    models.CostDistribution{Total: 1, Type: models.DistributionEqual},
			invites: invites("Alice"),
			unit:    0,
			wantErr: true,
		},
		{
			name:    "unknown distribution should error",
			dist:    models.CostDistribution{Total: 1, Type: "weighted"},
			invites: invites("Alice"),
			unit:    1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := ComputeCostShares(tt.dist, tt.invites, tt.unit)
			if (err != nil) != tt.wantErr {
				t.Errorf("ComputeCostShares() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.validateFunc != nil {
				tt.validateFunc(t, shares)
			}
		})
	}
}

func TestEqualSharesSumAndSpread(t *testing.T) {
	people := []string{"a", "b", "c", "d", "e", "f", "g"}
	for n := 1; n <= len(people); n++ {
		for _, total := range []float64{0, 0.01, 1, 10, 99.99, 1234.56} {
			shares, err := ComputeCostShares(models.CostDistribution{Total: total, Type: models.DistributionEqual}, invites(people[:n]...), 100)
			if err != nil {
				t.Fatalf("n=%d total=%v: %v", n, total, err)
			}
			want := int64(math.Round(total * 100))
			if shares.Total() != want {
				t.Errorf("n=%d total=%v: sum = %d, want %d", n, total, shares.Total(), want)
			}
			lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
			for _, a := range shares.Amounts {
				lo, hi = min(lo, a), max(hi, a)
			}
			if hi-lo > 1 {
				t.Errorf("n=%d total=%v: spread = %d, want <= 1", n, total, hi-lo)
			}
		}
	}
}

func TestEqualSharesAreReproducible(t *testing.T) {
	dist := models.CostDistribution{Total: 10, Type: models.DistributionEqual}
	first, _ := ComputeCostShares(dist, invites("Alice", "Bob", "Charlie"), 100)
	for i := 0; i < 20; i++ {
		again, _ := ComputeCostShares(dist, invites("Alice", "Bob", "Charlie"), 100)
		for user, amount := range first.Amounts {
			if again.Amounts[user] != amount {
				t.Fatalf("run %d: %s share = %d, want %d", i, user, again.Amounts[user], amount)
			}
		}
	}
}
