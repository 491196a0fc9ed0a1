package giftcard

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive amounts, before any write.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrApplicationNotFound is returned when the application does not exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrGiftCardNotFound is returned when no card matches the code.
	ErrGiftCardNotFound = errors.New("gift card not found")

	// ErrInvalidStateTransition is returned when processing a non-pending
	// application or operating on a non-active gift card. Nothing is written.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInsufficientCardBalance is returned when a redemption exceeds the
	// card's remaining balance.
	ErrInsufficientCardBalance = errors.New("insufficient gift card balance")

	// ErrCodeGenerationExhausted is returned when code generation keeps
	// colliding past the retry budget. Retryable.
	ErrCodeGenerationExhausted = errors.New("gift card code generation exhausted")

	// ErrNotCardOwner is returned when a user redeems someone else's card.
	ErrNotCardOwner = errors.New("gift card belongs to another user")

	ErrInternal = errors.New("gift card storage failure")
)
