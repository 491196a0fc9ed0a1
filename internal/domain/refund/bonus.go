package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripline/tripline-api/internal/domain/booking"
)

type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Bonus is a loyalty uplift percentage with its provenance.
type Bonus struct {
	Percentage decimal.Decimal `json:"percentage"`
	Tier       Tier            `json:"tier"`
	Reason     string          `json:"reason"`
	Score      float64         `json:"score"`
}

var (
	bonusFirstTime = decimal.NewFromFloat(0.10)
	bonusGold      = decimal.NewFromFloat(0.05)
	bonusSilver    = decimal.NewFromFloat(0.04)
	bonusBronze    = decimal.NewFromFloat(0.03)
)

// BonusCalculator computes a loyalty bonus from a user's booking history.
// Pure read side: it never mutates the ledger.
type BonusCalculator struct {
	bookings *booking.Repository
	now      func() time.Time
}

func NewBonusCalculator(bookings *booking.Repository) *BonusCalculator {
	return &BonusCalculator{bookings: bookings, now: time.Now}
}

func (c *BonusCalculator) Calculate(ctx context.Context, userID uuid.UUID) (*Bonus, error) {
	stats, err := c.bookings.HistoryStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return BonusFromHistory(stats, c.now()), nil
}

// BonusFromHistory maps booking history to a bonus. Split out as a pure
// function for deterministic tests.
func BonusFromHistory(stats *booking.HistoryStats, now time.Time) *Bonus {
	if stats.BookingCount == 0 {
		return &Bonus{
			Percentage: bonusFirstTime,
			Tier:       TierBronze,
			Reason:     "first-time traveller bonus",
			Score:      0,
		}
	}

	score := ActivityScore(stats, now)
	switch {
	case score >= 80:
		return &Bonus{Percentage: bonusGold, Tier: TierGold, Reason: "gold tier activity", Score: score}
	case score >= 50:
		return &Bonus{Percentage: bonusSilver, Tier: TierSilver, Reason: "silver tier activity", Score: score}
	default:
		return &Bonus{Percentage: bonusBronze, Tier: TierBronze, Reason: "bronze tier activity", Score: score}
	}
}

// ActivityScore rates a user's booking history in [0,100]:
// booking volume (up to 30), completion ratio (up to 25), total spend
// (up to 25) and how recent the last booking was (up to 20).
func ActivityScore(stats *booking.HistoryStats, now time.Time) float64 {
	volume := float64(stats.BookingCount) * 5
	if volume > 30 {
		volume = 30
	}

	var completion float64
	if stats.BookingCount > 0 {
		completion = float64(stats.CompletedCount) / float64(stats.BookingCount) * 25
	}

	spend := stats.TotalSpent.InexactFloat64() / 1000
	if spend > 25 {
		spend = 25
	}

	return volume + completion + spend + recencyScore(stats.LastBookingAt, now)
}

func recencyScore(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	days := now.Sub(*last).Hours() / 24
	switch {
	case days <= 30:
		return 20
	case days <= 90:
		return 15
	case days <= 180:
		return 10
	default:
		return 5
	}
}
