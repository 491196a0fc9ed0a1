package giftcard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// ErrDuplicateCancellation surfaces the unique index on cancellation
// applications per booking: the structural idempotency key for refunds.
var ErrDuplicateCancellation = errors.New("cancellation application already exists for booking")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const applicationColumns = `id, user_id, booking_id, amount, reason, source, status, admin_notes, processed_by, processed_at, created_at`

const giftCardColumns = `id, code, user_id, application_id, amount, balance, status, expiry_date, used_at, used_booking_id, created_at`

// CreateApplicationTx inserts a new application within the caller's
// transaction. Populates the generated id and created_at.
func (r *Repository) CreateApplicationTx(ctx context.Context, tx *sqlx.Tx, app *Application) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO gift_card_applications (user_id, booking_id, amount, reason, source, status, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, app.UserID, app.BookingID, app.Amount, app.Reason, string(app.Source), string(app.Status), app.AdminNotes).
		Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCancellation
		}
		return fmt.Errorf("%w: create application", ErrInternal)
	}
	return nil
}

// CreateApplication inserts a new application in its own transaction.
func (r *Repository) CreateApplication(ctx context.Context, app *Application) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.CreateApplicationTx(ctx2, tx, app); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var app Application
	err := r.db.GetContext(ctx2, &app, `
		SELECT `+applicationColumns+` FROM gift_card_applications WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get application", ErrInternal)
	}
	return &app, nil
}

// GetApplicationForUpdateTx locks the application row so the status check
// and the transition commit together.
func (r *Repository) GetApplicationForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Application, error) {
	var app Application
	err := tx.GetContext(ctx, &app, `
		SELECT `+applicationColumns+` FROM gift_card_applications WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock application", ErrInternal)
	}
	return &app, nil
}

// MarkProcessedTx transitions a pending application to approved or rejected.
// The status predicate makes a lost race surface as ErrInvalidStateTransition
// even without the prior FOR UPDATE read.
func (r *Repository) MarkProcessedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status ApplicationStatus, processedBy, notes string, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE gift_card_applications
		SET status = $2, processed_by = $3, processed_at = $4, admin_notes = $5
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), processedBy, at, notes)
	if err != nil {
		return fmt.Errorf("%w: mark application processed", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// InsertGiftCardTx writes a card row, reporting false on a code collision
// without aborting the enclosing transaction.
func (r *Repository) InsertGiftCardTx(ctx context.Context, tx *sqlx.Tx, card *GiftCard) (bool, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO gift_cards (code, user_id, application_id, amount, balance, status, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, created_at
	`, card.Code, card.UserID, card.ApplicationID, card.Amount, card.Balance, string(card.Status), card.ExpiryDate).
		Scan(&card.ID, &card.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Code collision, caller regenerates.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: insert gift card", ErrInternal)
	}
	return true, nil
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*GiftCard, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var card GiftCard
	err := r.db.GetContext(ctx2, &card, `
		SELECT `+giftCardColumns+` FROM gift_cards WHERE code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiftCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get gift card", ErrInternal)
	}
	return &card, nil
}

// GetByCodeForUpdateTx locks the card row for redemption or freezing.
func (r *Repository) GetByCodeForUpdateTx(ctx context.Context, tx *sqlx.Tx, code string) (*GiftCard, error) {
	var card GiftCard
	err := tx.GetContext(ctx, &card, `
		SELECT `+giftCardColumns+` FROM gift_cards WHERE code = $1 FOR UPDATE
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiftCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock gift card", ErrInternal)
	}
	return &card, nil
}

// RedeemTx decrements the card balance; a card drained to zero becomes used.
// The balance predicate rejects over-draws atomically.
func (r *Repository) RedeemTx(ctx context.Context, tx *sqlx.Tx, cardID uuid.UUID, amount decimal.Decimal, bookingID *uuid.UUID, at time.Time) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE gift_cards
		SET balance = balance - $2,
		    status = CASE WHEN balance - $2 = 0 THEN 'used' ELSE status END,
		    used_at = $4,
		    used_booking_id = COALESCE($3, used_booking_id)
		WHERE id = $1 AND status = 'active' AND balance >= $2
		RETURNING balance
	`, cardID, amount, bookingID, at).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrInsufficientCardBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: redeem gift card", ErrInternal)
	}
	return remaining, nil
}

// FreezeTx moves an active card to a terminal status (expired or cancelled),
// leaving its balance as the frozen remainder.
func (r *Repository) FreezeTx(ctx context.Context, tx *sqlx.Tx, cardID uuid.UUID, status Status) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE gift_cards SET status = $2 WHERE id = $1 AND status = 'active'
	`, cardID, string(status))
	if err != nil {
		return fmt.Errorf("%w: freeze gift card", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// ListExpiredCodes returns codes of active cards whose expiry date passed.
func (r *Repository) ListExpiredCodes(ctx context.Context, asOf time.Time, limit int) ([]string, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	codes := make([]string, 0)
	err := r.db.SelectContext(ctx2, &codes, `
		SELECT code FROM gift_cards
		WHERE status = 'active' AND expiry_date < $1
		ORDER BY expiry_date
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list expired cards", ErrInternal)
	}
	return codes, nil
}

// ListApplications returns applications filtered by status, newest first.
func (r *Repository) ListApplications(ctx context.Context, status ApplicationStatus, limit, offset int) ([]Application, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	apps := make([]Application, 0)
	err := r.db.SelectContext(ctx2, &apps, `
		SELECT `+applicationColumns+`
		FROM gift_card_applications
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list applications", ErrInternal)
	}
	return apps, nil
}

// ListApplicationsByUser returns one user's applications, newest first.
func (r *Repository) ListApplicationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Application, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	apps := make([]Application, 0)
	err := r.db.SelectContext(ctx2, &apps, `
		SELECT `+applicationColumns+`
		FROM gift_card_applications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list user applications", ErrInternal)
	}
	return apps, nil
}

// CountGiftCards is used by tests asserting that failed events leave the
// card table untouched.
func (r *Repository) CountGiftCards(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `SELECT COUNT(*) FROM gift_cards WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count gift cards", ErrInternal)
	}
	return count, nil
}
