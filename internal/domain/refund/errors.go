package refund

import "errors"

var (
	ErrInvalidChoice    = errors.New("refund_choice must be bank or giftcard")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrNotBookingOwner  = errors.New("booking belongs to another user")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrInternal         = errors.New("refund storage failure")
)
