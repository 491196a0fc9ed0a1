package wallet

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount: must be greater than 0")
	ErrMissingReference  = errors.New("reference_id is required")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrReferenceConflict = errors.New("reference_id already used with a different amount")
	ErrInternal          = errors.New("wallet storage failure")
)
