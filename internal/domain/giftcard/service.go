package giftcard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tripline/tripline-api/internal/domain/wallet"
	"github.com/tripline/tripline-api/internal/pkg/notifier"
)

// Issued cards stay redeemable for a year.
const cardValidity = 365 * 24 * time.Hour

// Service drives the application state machine and gift card life cycle.
// Every mutation is one database transaction: application transition, card
// row, wallet delta and audit row commit together or not at all.
type Service struct {
	db      *sqlx.DB
	repo    *Repository
	wallets *wallet.Repository
	notify  *notifier.Notifier
	now     func() time.Time
	genCode func(uuid.UUID) string
}

func NewService(db *sqlx.DB, repo *Repository, wallets *wallet.Repository, notify *notifier.Notifier) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		wallets: wallets,
		notify:  notify,
		now:     time.Now,
		genCode: GenerateCode,
	}
}

func (s *Service) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	return tx, nil
}

// CreateApplication records a monetary request in pending state.
func (s *Service) CreateApplication(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, bookingID *uuid.UUID, source ApplicationSource) (uuid.UUID, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return uuid.Nil, ErrInvalidAmount
	}
	if userID == uuid.Nil {
		return uuid.Nil, ErrApplicationNotFound
	}

	app := &Application{
		UserID:    userID,
		BookingID: bookingID,
		Amount:    amount,
		Reason:    reason,
		Source:    source,
		Status:    ApplicationStatusPending,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("source", string(source)).
		Msg("gift card application created")
	return app.ID, nil
}

// CreateCancellationApplicationTx records the pre-approval request a booking
// cancellation creates, inside the caller's transaction. The partial unique
// index on (booking_id) for cancellation applications makes a second refund
// attempt for the same booking fail with ErrDuplicateCancellation.
func (s *Service) CreateCancellationApplicationTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, bookingID uuid.UUID, reason string) (*Application, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	app := &Application{
		UserID:    userID,
		BookingID: &bookingID,
		Amount:    amount,
		Reason:    reason,
		Source:    SourceCancellation,
		Status:    ApplicationStatusPending,
	}
	if err := s.repo.CreateApplicationTx(ctx, tx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Approve transitions a pending application to approved and issues its gift
// card, crediting the wallet in the same transaction.
func (s *Service) Approve(ctx context.Context, applicationID uuid.UUID, adminID uuid.UUID, notes string) (*ApprovalResult, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := s.ApproveTx(ctx, tx, applicationID, adminID.String(), notes)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	s.publishIssued(ctx, result)
	return result, nil
}

// ApproveTx runs the approval inside an external transaction. Used by the
// refund engine so the booking cancellation and the credit commit together.
// Does NOT commit or roll back; the caller owns the transaction, and must
// call PublishIssued after a successful commit.
func (s *Service) ApproveTx(ctx context.Context, tx *sqlx.Tx, applicationID uuid.UUID, processedBy, notes string) (*ApprovalResult, error) {
	app, err := s.repo.GetApplicationForUpdateTx(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != ApplicationStatusPending {
		return nil, ErrInvalidStateTransition
	}

	now := s.now()
	if err := s.repo.MarkProcessedTx(ctx, tx, app.ID, ApplicationStatusApproved, processedBy, notes, now); err != nil {
		return nil, err
	}

	card, err := s.issueTx(ctx, tx, app, now)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.ApplyTx(ctx, tx, app.UserID, wallet.Entry{
		Type:        wallet.TransactionTypeCredit,
		Source:      wallet.SourceGiftCard,
		Amount:      app.Amount,
		Description: fmt.Sprintf("Gift card %s issued", card.Code),
		BookingID:   app.BookingID,
		GiftCardID:  &card.ID,
	}); err != nil {
		return nil, err
	}

	return &ApprovalResult{
		ApplicationID:  app.ID,
		GiftCardCode:   card.Code,
		CreditedAmount: app.Amount,
	}, nil
}

// issueTx materializes the gift card row, regenerating the code on a
// collision up to the retry budget.
func (s *Service) issueTx(ctx context.Context, tx *sqlx.Tx, app *Application, now time.Time) (*GiftCard, error) {
	card := &GiftCard{
		UserID:        app.UserID,
		ApplicationID: app.ID,
		Amount:        app.Amount,
		Balance:       app.Amount,
		Status:        StatusActive,
		ExpiryDate:    now.Add(cardValidity),
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		card.Code = s.genCode(app.ID)
		inserted, err := s.repo.InsertGiftCardTx(ctx, tx, card)
		if err != nil {
			return nil, err
		}
		if inserted {
			return card, nil
		}
		log.Warn().
			Str("application_id", app.ID.String()).
			Int("attempt", attempt+1).
			Msg("gift card code collision, regenerating")
	}

	return nil, ErrCodeGenerationExhausted
}

// Reject transitions a pending application to rejected. No ledger effect.
func (s *Service) Reject(ctx context.Context, applicationID uuid.UUID, adminID uuid.UUID, notes string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	app, err := s.repo.GetApplicationForUpdateTx(ctx, tx, applicationID)
	if err != nil {
		return err
	}
	if app.Status != ApplicationStatusPending {
		return ErrInvalidStateTransition
	}

	if err := s.repo.MarkProcessedTx(ctx, tx, app.ID, ApplicationStatusRejected, adminID.String(), notes, s.now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	log.Info().
		Str("application_id", applicationID.String()).
		Str("admin_id", adminID.String()).
		Msg("gift card application rejected")
	s.notify.Publish(ctx, notifier.EventApplicationRejected, app.UserID, map[string]string{
		"application_id": applicationID.String(),
	})
	return nil
}

// Redeem spends part or all of a card's balance against a booking,
// decrementing the card and the wallet together.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, code string, amount decimal.Decimal, bookingID *uuid.UUID) (*RedemptionResult, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	card, err := s.repo.GetByCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && card.UserID != userID {
		return nil, ErrNotCardOwner
	}
	if card.Status != StatusActive {
		return nil, ErrInvalidStateTransition
	}

	now := s.now()
	if card.ExpiryDate.Before(now) {
		// Past expiry but not yet swept; treat as non-active.
		return nil, ErrInvalidStateTransition
	}
	if card.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientCardBalance
	}

	remaining, err := s.repo.RedeemTx(ctx, tx, card.ID, amount, bookingID, now)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.ApplyTx(ctx, tx, card.UserID, wallet.Entry{
		Type:        wallet.TransactionTypeDebit,
		Source:      wallet.SourceRedemption,
		Amount:      amount,
		Description: fmt.Sprintf("Gift card %s redeemed", card.Code),
		BookingID:   bookingID,
		GiftCardID:  &card.ID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	status := StatusActive
	if remaining.IsZero() {
		status = StatusUsed
	}

	log.Info().
		Str("code", card.Code).
		Str("user_id", card.UserID.String()).
		Str("amount", amount.String()).
		Str("remaining", remaining.String()).
		Msg("gift card redeemed")
	s.notify.Publish(ctx, notifier.EventGiftCardRedeemed, card.UserID, map[string]string{
		"code":      card.Code,
		"amount":    amount.String(),
		"remaining": remaining.String(),
	})

	return &RedemptionResult{
		Code:             card.Code,
		RedeemedAmount:   amount,
		RemainingBalance: remaining,
		Status:           status,
	}, nil
}

// Cancel is the admin override: the card is frozen and its remaining
// balance leaves the wallet, keeping the balance identity intact.
func (s *Service) Cancel(ctx context.Context, code string, adminID uuid.UUID) error {
	return s.freeze(ctx, code, StatusCancelled, wallet.SourceCancellation,
		fmt.Sprintf("Gift card cancelled by admin %s", adminID))
}

// ExpireDue sweeps active cards past their expiry date. Each card is its
// own transaction so one failure does not block the rest of the batch.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	codes, err := s.repo.ListExpiredCodes(ctx, s.now(), 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, code := range codes {
		if err := s.freeze(ctx, code, StatusExpired, wallet.SourceExpiry, "Gift card expired"); err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to expire gift card")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) freeze(ctx context.Context, code string, status Status, source wallet.TransactionSource, description string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	card, err := s.repo.GetByCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		return err
	}
	if card.Status != StatusActive {
		return ErrInvalidStateTransition
	}

	if err := s.repo.FreezeTx(ctx, tx, card.ID, status); err != nil {
		return err
	}

	// The frozen remainder leaves the spendable balance.
	if card.Balance.Cmp(decimal.Zero) > 0 {
		if err := s.wallets.ApplyTx(ctx, tx, card.UserID, wallet.Entry{
			Type:        wallet.TransactionTypeDebit,
			Source:      source,
			Amount:      card.Balance,
			Description: description,
			GiftCardID:  &card.ID,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	event := notifier.EventGiftCardExpired
	if status == StatusCancelled {
		event = notifier.EventGiftCardCancelled
	}
	log.Info().Str("code", code).Str("status", string(status)).Msg("gift card frozen")
	s.notify.Publish(ctx, event, card.UserID, map[string]string{"code": code})
	return nil
}

// GetCard returns a card by code, restricted to its owner unless the caller
// is privileged (ownerID == uuid.Nil).
func (s *Service) GetCard(ctx context.Context, ownerID uuid.UUID, code string) (*GiftCard, error) {
	card, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ownerID != uuid.Nil && card.UserID != ownerID {
		return nil, ErrGiftCardNotFound
	}
	return card, nil
}

func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	return s.repo.GetApplication(ctx, id)
}

func (s *Service) ListApplications(ctx context.Context, status ApplicationStatus, limit, offset int) ([]Application, error) {
	return s.repo.ListApplications(ctx, status, limit, offset)
}

func (s *Service) ListApplicationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Application, error) {
	return s.repo.ListApplicationsByUser(ctx, userID, limit, offset)
}

// PublishIssued emits the post-commit event for an approved application.
// Split out so ApproveTx callers can publish after their own commit.
func (s *Service) PublishIssued(ctx context.Context, userID uuid.UUID, result *ApprovalResult) {
	s.notify.Publish(ctx, notifier.EventGiftCardIssued, userID, map[string]string{
		"application_id": result.ApplicationID.String(),
		"code":           result.GiftCardCode,
		"amount":         result.CreditedAmount.String(),
	})
	s.notify.Publish(ctx, notifier.EventWalletCredited, userID, map[string]string{
		"amount": result.CreditedAmount.String(),
	})
}

func (s *Service) publishIssued(ctx context.Context, result *ApprovalResult) {
	app, err := s.repo.GetApplication(ctx, result.ApplicationID)
	if err != nil {
		log.Warn().Err(err).Msg("issued event: application lookup failed")
		return
	}
	s.PublishIssued(ctx, app.UserID, result)
}
