package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// Repository persists wallets and their append-only transaction log.
//
// Balance mutations are always expressed as atomic increments
// (total_balance = total_balance + delta) paired with exactly one audit row,
// inside whatever transaction the caller supplies. Reading the balance and
// writing it back from application code is never done.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureTx lazily creates the wallet row for a user.
func (r *Repository) EnsureTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, total_balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("%w: ensure wallet", ErrInternal)
	}
	return nil
}

// ApplyTx applies one wallet movement inside the caller's transaction:
// the atomic balance delta and its audit row are written together.
// The caller owns commit/rollback.
func (r *Repository) ApplyTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, entry Entry) error {
	if entry.Amount.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidAmount
	}

	if err := r.EnsureTx(ctx, tx, userID); err != nil {
		return err
	}

	switch entry.Type {
	case TransactionTypeCredit:
		_, err := tx.ExecContext(ctx, `
			UPDATE wallets
			SET total_balance = total_balance + $2, updated_at = now()
			WHERE user_id = $1
		`, userID, entry.Amount)
		if err != nil {
			return fmt.Errorf("%w: credit balance", ErrInternal)
		}
	case TransactionTypeDebit:
		result, err := tx.ExecContext(ctx, `
			UPDATE wallets
			SET total_balance = total_balance - $2, updated_at = now()
			WHERE user_id = $1 AND total_balance >= $2
		`, userID, entry.Amount)
		if err != nil {
			return fmt.Errorf("%w: debit balance", ErrInternal)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: rows affected", ErrInternal)
		}
		if rows == 0 {
			return ErrInsufficientFunds
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInternal, entry.Type)
	}

	return r.insertTransaction(ctx, tx, userID, entry)
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, entry Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (user_id, type, source, amount, description, booking_id, gift_card_id, reference_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'completed')
	`, userID, string(entry.Type), string(entry.Source), entry.Amount, entry.Description,
		entry.BookingID, entry.GiftCardID, entry.ReferenceID)
	if err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

// lockWallet creates the wallet row if missing and takes a row lock on it,
// serializing concurrent movements for one user within this transaction.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	if err := r.EnsureTx(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `SELECT total_balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: lock wallet", ErrInternal)
	}
	return balance, nil
}

func (r *Repository) topUpAmountByRef(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, referenceID string) (decimal.Decimal, bool, error) {
	var amount decimal.Decimal
	err := tx.GetContext(ctx, &amount, `
		SELECT amount
		FROM wallet_transactions
		WHERE user_id = $1 AND source = 'topup' AND reference_id = $2
		LIMIT 1
	`, userID, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: lookup reference", ErrInternal)
	}
	return amount, true, nil
}

// TopUp credits the wallet with externally added money, keyed by the
// caller-supplied reference. Retrying the same reference with the same
// amount is a no-op; a different amount is a conflict.
func (r *Repository) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, description string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	// The wallet row lock serializes top-ups per user, so the reference
	// check below cannot race a concurrent insert of the same reference.
	if _, err := r.lockWallet(ctx2, tx, userID); err != nil {
		return err
	}

	existing, exists, err := r.topUpAmountByRef(ctx2, tx, userID, referenceID)
	if err != nil {
		return err
	}
	if exists {
		if !existing.Equal(amount) {
			return ErrReferenceConflict
		}
		return nil
	}

	ref := referenceID
	if err := r.ApplyTx(ctx2, tx, userID, Entry{
		Type:        TransactionTypeCredit,
		Source:      SourceTopUp,
		Amount:      amount,
		Description: description,
		ReferenceID: &ref,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// GetBalance returns the stored total balance, zero if no wallet exists yet.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance decimal.Decimal
	err := r.db.GetContext(ctx2, &balance, `SELECT total_balance FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return balance, nil
}

// BalanceBreakdown resolves the stored total into its two sources:
// remaining balance on active gift cards, and directly added money.
func (r *Repository) BalanceBreakdown(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row struct {
		Total      decimal.Decimal `db:"total_balance"`
		GiftCard   decimal.Decimal `db:"gift_card_balance"`
		AddedMoney decimal.Decimal `db:"added_money_balance"`
	}
	err := r.db.GetContext(ctx2, &row, `
		SELECT
			COALESCE((SELECT total_balance FROM wallets WHERE user_id = $1), 0)       AS total_balance,
			COALESCE((SELECT SUM(balance) FROM gift_cards
			          WHERE user_id = $1 AND status = 'active'), 0)                   AS gift_card_balance,
			COALESCE((SELECT SUM(amount) FROM wallet_transactions
			          WHERE user_id = $1 AND type = 'credit' AND source = 'topup'), 0) AS added_money_balance
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: balance breakdown", ErrInternal)
	}

	return &Balance{
		TotalBalance:      row.Total,
		GiftCardBalance:   row.GiftCard,
		AddedMoneyBalance: row.AddedMoney,
	}, nil
}

// ListTransactions returns the newest transactions first.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, type, source, amount, description, booking_id, gift_card_id, reference_id, status, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}
