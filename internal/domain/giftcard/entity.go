package giftcard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// ApplicationSource records what created a monetary request.
type ApplicationSource string

const (
	SourceUser         ApplicationSource = "user"
	SourceAdmin        ApplicationSource = "admin"
	SourceCancellation ApplicationSource = "cancellation"
)

// ProcessedBySystem marks applications approved by the cancellation flow
// rather than a human admin.
const ProcessedBySystem = "system-cancellation"

// Application is a monetary request awaiting approval or rejection.
// It leaves pending exactly once.
type Application struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	UserID      uuid.UUID         `db:"user_id" json:"user_id"`
	BookingID   *uuid.UUID        `db:"booking_id" json:"booking_id,omitempty"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Reason      string            `db:"reason" json:"reason"`
	Source      ApplicationSource `db:"source" json:"source"`
	Status      ApplicationStatus `db:"status" json:"status"`
	AdminNotes  string            `db:"admin_notes" json:"admin_notes"`
	ProcessedBy *string           `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// GiftCard is a redeemable credit instrument owned by exactly one approved
// application. Its code is immutable once issued and its balance never
// exceeds its face amount.
type GiftCard struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	ApplicationID uuid.UUID       `db:"application_id" json:"application_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Status        Status          `db:"status" json:"status"`
	ExpiryDate    time.Time       `db:"expiry_date" json:"expiry_date"`
	UsedAt        *time.Time      `db:"used_at" json:"used_at,omitempty"`
	UsedBookingID *uuid.UUID      `db:"used_booking_id" json:"used_booking_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ApprovalResult reports what an approval committed.
type ApprovalResult struct {
	ApplicationID  uuid.UUID       `json:"application_id"`
	GiftCardCode   string          `json:"giftcard_code"`
	CreditedAmount decimal.Decimal `json:"credited_amount"`
}

// RedemptionResult reports the card state after a redemption.
type RedemptionResult struct {
	Code             string          `json:"code"`
	RedeemedAmount   decimal.Decimal `json:"redeemed_amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           Status          `json:"status"`
}
