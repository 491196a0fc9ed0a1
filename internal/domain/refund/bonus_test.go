package refund_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripline/tripline-api/internal/domain/booking"
	"github.com/tripline/tripline-api/internal/domain/refund"
)

func TestFirstTimeBonus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	bonus := refund.BonusFromHistory(&booking.HistoryStats{}, now)

	if !bonus.Percentage.Equal(decimal.NewFromFloat(0.10)) {
		t.Fatalf("expected 10%% first-time bonus, got %s", bonus.Percentage)
	}
	if bonus.Tier != refund.TierBronze {
		t.Fatalf("expected bronze tier, got %s", bonus.Tier)
	}
}

func TestBonusTiers(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	old := now.Add(-400 * 24 * time.Hour)

	tests := []struct {
		name      string
		stats     booking.HistoryStats
		wantScore float64
		wantTier  refund.Tier
		wantPct   decimal.Decimal
	}{
		{
			// 30 (volume cap) + 25 (all completed) + 10 (spend) + 20 (recent) = 85
			name: "gold",
			stats: booking.HistoryStats{
				BookingCount:   8,
				CompletedCount: 8,
				TotalSpent:     decimal.NewFromInt(10000),
				LastBookingAt:  &recent,
			},
			wantScore: 85,
			wantTier:  refund.TierGold,
			wantPct:   decimal.NewFromFloat(0.05),
		},
		{
			// 10 + 12.5 + 7.5 + 20 = 50, silver lower bound
			name: "silver boundary",
			stats: booking.HistoryStats{
				BookingCount:   2,
				CompletedCount: 1,
				TotalSpent:     decimal.NewFromInt(7500),
				LastBookingAt:  &recent,
			},
			wantScore: 50,
			wantTier:  refund.TierSilver,
			wantPct:   decimal.NewFromFloat(0.04),
		},
		{
			// 15 + 0 + 20 + 5 = 40
			name: "bronze",
			stats: booking.HistoryStats{
				BookingCount:   3,
				CompletedCount: 0,
				TotalSpent:     decimal.NewFromInt(20000),
				LastBookingAt:  &old,
			},
			wantScore: 40,
			wantTier:  refund.TierBronze,
			wantPct:   decimal.NewFromFloat(0.03),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := refund.ActivityScore(&tt.stats, now)
			if score != tt.wantScore {
				t.Fatalf("expected score %v, got %v", tt.wantScore, score)
			}

			bonus := refund.BonusFromHistory(&tt.stats, now)
			if bonus.Tier != tt.wantTier {
				t.Fatalf("expected tier %s, got %s", tt.wantTier, bonus.Tier)
			}
			if !bonus.Percentage.Equal(tt.wantPct) {
				t.Fatalf("expected bonus %s, got %s", tt.wantPct, bonus.Percentage)
			}
		})
	}
}

func TestRecencyBuckets(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		daysAgo float64
		want    float64
	}{
		{10, 20},
		{60, 15},
		{120, 10},
		{365, 5},
	}

	for _, c := range cases {
		last := now.Add(-time.Duration(c.daysAgo*24) * time.Hour)
		stats := booking.HistoryStats{BookingCount: 1, LastBookingAt: &last}
		got := refund.ActivityScore(&stats, now) - 5 // subtract volume component
		if got != c.want {
			t.Fatalf("days ago %v: expected recency %v, got %v", c.daysAgo, c.want, got)
		}
	}
}

func TestScoreVolumeAndSpendCaps(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-400 * 24 * time.Hour)

	stats := booking.HistoryStats{
		BookingCount:   100,
		CompletedCount: 0,
		TotalSpent:     decimal.NewFromInt(1000000),
		LastBookingAt:  &old,
	}

	// 30 cap + 0 + 25 cap + 5 = 60
	if got := refund.ActivityScore(&stats, now); got != 60 {
		t.Fatalf("expected capped score 60, got %v", got)
	}
}
