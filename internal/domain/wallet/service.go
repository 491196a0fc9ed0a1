package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service is the read side of the wallet plus manual top-ups.
// Gift-card driven movements go through the giftcard and refund services,
// which compose repository Tx methods into their own ledger transactions.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetBalance returns the stored total split into gift-card and added-money
// balances. The two parts always sum to the stored total.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	balance, err := s.repo.BalanceBreakdown(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !balance.TotalBalance.Equal(balance.GiftCardBalance.Add(balance.AddedMoneyBalance)) {
		// Should be unreachable while every movement commits atomically.
		log.Error().
			Str("user_id", userID.String()).
			Str("total", balance.TotalBalance.String()).
			Str("gift_card", balance.GiftCardBalance.String()).
			Str("added_money", balance.AddedMoneyBalance.String()).
			Msg("wallet balance identity violated")
	}

	return balance, nil
}

func (s *Service) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, description string) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidAmount
	}
	if referenceID == "" {
		return ErrMissingReference
	}

	if err := s.repo.TopUp(ctx, userID, amount, referenceID, description); err != nil {
		return err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("reference_id", referenceID).
		Msg("wallet topup applied")
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
