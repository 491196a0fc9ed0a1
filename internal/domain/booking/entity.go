package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is the ledger's projection of a catalog booking. The catalog
// service owns the full record; the ledger only consumes id, user and
// amount, and flips status to cancelled inside the refund transaction.
type Booking struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      Status          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HistoryStats aggregates a user's non-cancelled booking history for
// loyalty scoring.
type HistoryStats struct {
	BookingCount   int             `db:"booking_count"`
	CompletedCount int             `db:"completed_count"`
	TotalSpent     decimal.Decimal `db:"total_spent"`
	LastBookingAt  *time.Time      `db:"last_booking_at"`
}
