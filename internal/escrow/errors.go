package escrow

import "errors"

// Validation errors surfaced synchronously to the caller. A failed operation
// mutates nothing and emits no event.
var (
	ErrUnauthorized        = errors.New("escrow: caller not authorized for this operation")
	ErrAlreadyAgreed       = errors.New("escrow: escrow account already agreed")
	ErrExpired             = errors.New("escrow: contract expired")
	ErrEscrowNotSet        = errors.New("escrow: no escrow account agreed yet")
	ErrAmountMismatch      = errors.New("escrow: amount does not match transaction amount")
	ErrInsufficientBalance = errors.New("escrow: amount exceeds outstanding balance")
)
