package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

var (
	ErrNotFound = errors.New("booking not found")
	ErrInternal = errors.New("booking storage failure")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a booking projection row. Called by the catalog sync
// boundary and by tests.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx2, `
		INSERT INTO bookings (user_id, total_amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, b.UserID, b.TotalAmount, string(b.Status)).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create booking", ErrInternal)
	}
	return nil
}

// GetForUpdateTx locks the booking row for the rest of the transaction.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := tx.GetContext(ctx, &b, `
		SELECT id, user_id, total_amount, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock booking", ErrInternal)
	}
	return &b, nil
}

// MarkCancelledTx flips a booking to cancelled within the caller's
// transaction, so the refund decision and the status change commit together.
func (r *Repository) MarkCancelledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
	`, id)
	if err != nil {
		return fmt.Errorf("%w: cancel booking", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// HistoryStats aggregates the user's non-cancelled bookings.
func (r *Repository) HistoryStats(ctx context.Context, userID uuid.UUID) (*HistoryStats, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stats HistoryStats
	err := r.db.GetContext(ctx2, &stats, `
		SELECT
			COUNT(*)                                          AS booking_count,
			COUNT(*) FILTER (WHERE status = 'completed')      AS completed_count,
			COALESCE(SUM(total_amount), 0)                    AS total_spent,
			MAX(created_at)                                   AS last_booking_at
		FROM bookings
		WHERE user_id = $1 AND status <> 'cancelled'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: history stats", ErrInternal)
	}
	return &stats, nil
}
