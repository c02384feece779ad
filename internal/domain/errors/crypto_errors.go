package errors

import (
	"errors"
	"fmt"
)

// ErrWalletNotFound is returned when a merchant has no registered payout
// wallet for the crypto rail.
var ErrWalletNotFound = errors.New("merchant wallet not found")

// ChainValidationError is returned when an on-chain transaction does not
// match the stored payment expectation. The local record is left unchanged.
type ChainValidationError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ChainValidationError) Error() string {
	return fmt.Sprintf("on-chain validation failed on %s: expected %s, got %s",
		e.Field, e.Expected, e.Actual)
}

// NewChainValidationError creates a new ChainValidationError
func NewChainValidationError(field, expected, actual string) *ChainValidationError {
	return &ChainValidationError{Field: field, Expected: expected, Actual: actual}
}
