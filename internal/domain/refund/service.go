package refund

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tripline/tripline-api/internal/domain/booking"
	"github.com/tripline/tripline-api/internal/domain/giftcard"
	"github.com/tripline/tripline-api/internal/pkg/notifier"
)

// Cancellation policy: a flat fee is withheld from every refund, and
// choosing store credit over a bank reversal earns a 10% uplift.
var (
	bookingFee       = decimal.NewFromInt(500)
	storeCreditBonus = decimal.NewFromFloat(0.10)
)

type Choice string

const (
	ChoiceBank     Choice = "bank"
	ChoiceGiftCard Choice = "giftcard"
)

// Result statuses.
const (
	StatusGiftCardIssued    = "giftcard_issued"
	StatusBankRefundPending = "bank_refund_pending"
	StatusNoRefund          = "cancelled_no_refund"
)

// Result reports what a cancellation committed. For bank refunds the
// payment-gateway reversal is external; the ledger records nothing.
type Result struct {
	BookingID       uuid.UUID       `json:"booking_id"`
	Choice          Choice          `json:"refund_choice"`
	Status          string          `json:"status"`
	RefundBase      decimal.Decimal `json:"refund_base"`
	BonusPercentage decimal.Decimal `json:"bonus_percentage"`
	CreditedAmount  decimal.Decimal `json:"credited_amount"`
	GiftCardCode    string          `json:"giftcard_code,omitempty"`
}

// Engine turns a booking cancellation into a refund decision. The booking
// status flip, the pre-approved application, the gift card and the wallet
// credit all commit in one transaction.
type Engine struct {
	db        *sqlx.DB
	bookings  *booking.Repository
	giftcards *giftcard.Service
	notify    *notifier.Notifier
}

func NewEngine(db *sqlx.DB, bookings *booking.Repository, giftcards *giftcard.Service, notify *notifier.Notifier) *Engine {
	return &Engine{
		db:        db,
		bookings:  bookings,
		giftcards: giftcards,
		notify:    notify,
	}
}

// ProcessCancellation cancels a booking and settles its refund.
// Safe to retry: a booking already cancelled fails with ErrAlreadyCancelled
// and writes nothing, and the cancellation application's unique booking key
// blocks a second credit even across racing transactions.
func (e *Engine) ProcessCancellation(ctx context.Context, bookingID, userID uuid.UUID, choice Choice) (*Result, error) {
	if choice != ChoiceBank && choice != ChoiceGiftCard {
		return nil, ErrInvalidChoice
	}

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := e.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	b, err := e.bookings.GetForUpdateTx(ctx2, tx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotBookingOwner
	}
	if b.Status == booking.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	refundBase := b.TotalAmount.Sub(bookingFee)
	if refundBase.Cmp(decimal.Zero) < 0 {
		refundBase = decimal.Zero
	}

	if err := e.bookings.MarkCancelledTx(ctx2, tx, b.ID); err != nil {
		return nil, err
	}

	result := &Result{
		BookingID:  b.ID,
		Choice:     choice,
		RefundBase: refundBase,
	}

	if choice == ChoiceBank {
		result.Status = StatusBankRefundPending
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%w: commit tx", ErrInternal)
		}

		log.Info().
			Str("booking_id", b.ID.String()).
			Str("user_id", userID.String()).
			Str("refund_base", refundBase.String()).
			Msg("booking cancelled, bank refund pending")
		e.notify.Publish(ctx, notifier.EventRefundBankPending, userID, map[string]string{
			"booking_id": b.ID.String(),
			"amount":     refundBase.String(),
		})
		return result, nil
	}

	if refundBase.IsZero() {
		// Fee swallowed the whole amount; nothing to credit.
		result.Status = StatusNoRefund
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%w: commit tx", ErrInternal)
		}
		log.Info().
			Str("booking_id", b.ID.String()).
			Str("user_id", userID.String()).
			Msg("booking cancelled, amount below cancellation fee")
		return result, nil
	}

	creditAmount := refundBase.Mul(decimal.NewFromInt(1).Add(storeCreditBonus)).Round(2)

	app, err := e.giftcards.CreateCancellationApplicationTx(ctx2, tx, userID, creditAmount, b.ID,
		fmt.Sprintf("Refund for cancelled booking %s", b.ID))
	if err != nil {
		if errors.Is(err, giftcard.ErrDuplicateCancellation) {
			return nil, ErrAlreadyCancelled
		}
		return nil, err
	}

	approval, err := e.giftcards.ApproveTx(ctx2, tx, app.ID, giftcard.ProcessedBySystem,
		"auto-approved cancellation refund")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	result.Status = StatusGiftCardIssued
	result.BonusPercentage = storeCreditBonus
	result.CreditedAmount = approval.CreditedAmount
	result.GiftCardCode = approval.GiftCardCode

	log.Info().
		Str("booking_id", b.ID.String()).
		Str("user_id", userID.String()).
		Str("refund_base", refundBase.String()).
		Str("credited", approval.CreditedAmount.String()).
		Str("code", approval.GiftCardCode).
		Msg("booking cancelled, gift card issued")
	e.giftcards.PublishIssued(ctx, userID, approval)

	return result, nil
}
