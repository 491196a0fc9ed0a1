package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// TransactionSource records what caused a balance movement. Every wallet
// mutation carries exactly one source; the balance breakdown depends on it.
type TransactionSource string

const (
	SourceTopUp        TransactionSource = "topup"
	SourceGiftCard     TransactionSource = "gift_card"
	SourceRedemption   TransactionSource = "redemption"
	SourceExpiry       TransactionSource = "expiry"
	SourceCancellation TransactionSource = "cancellation"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type Wallet struct {
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	TotalBalance decimal.Decimal `db:"total_balance" json:"total_balance"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an append-only audit row. Never updated after creation.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	UserID      uuid.UUID         `db:"user_id" json:"user_id"`
	Type        TransactionType   `db:"type" json:"type"`
	Source      TransactionSource `db:"source" json:"source"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Description string            `db:"description" json:"description"`
	BookingID   *uuid.UUID        `db:"booking_id" json:"booking_id,omitempty"`
	GiftCardID  *uuid.UUID        `db:"gift_card_id" json:"gift_card_id,omitempty"`
	ReferenceID *string           `db:"reference_id" json:"reference_id,omitempty"`
	Status      TransactionStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Balance is the read-side breakdown. TotalBalance always equals
// GiftCardBalance + AddedMoneyBalance.
type Balance struct {
	TotalBalance      decimal.Decimal `json:"total_balance"`
	GiftCardBalance   decimal.Decimal `json:"gift_card_balance"`
	AddedMoneyBalance decimal.Decimal `json:"added_money_balance"`
}

// Entry describes one wallet movement applied inside a ledger transaction.
// The balance delta and its audit row are written together.
type Entry struct {
	Type        TransactionType
	Source      TransactionSource
	Amount      decimal.Decimal
	Description string
	BookingID   *uuid.UUID
	GiftCardID  *uuid.UUID
	ReferenceID *string
}
