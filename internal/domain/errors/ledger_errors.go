package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across repositories and services. Callers branch on
// these with errors.Is instead of parsing messages.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrDuplicateKey        = errors.New("duplicate business key")
	ErrCustomerLinked      = errors.New("customer already linked")
	ErrTokenUsed           = errors.New("token already used")
	ErrTokenExpired        = errors.New("token expired")
)

// InsufficientFundsError is returned when an account cannot cover a ledger
// operation from the bucket the operation draws on.
type InsufficientFundsError struct {
	Bucket    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: requested %s, available %s",
		e.Bucket, e.Requested.String(), e.Available.String())
}

// NewInsufficientFundsError creates a new InsufficientFundsError
func NewInsufficientFundsError(bucket string, requested, available decimal.Decimal) *InsufficientFundsError {
	return &InsufficientFundsError{
		Bucket:    bucket,
		Requested: requested,
		Available: available,
	}
}

// InvalidCardError is returned when a token is requested for a card that does
// not exist or is not active.
type InvalidCardError struct {
	CardID string
	Reason string
}

func (e *InvalidCardError) Error() string {
	return fmt.Sprintf("invalid card %s: %s", e.CardID, e.Reason)
}

// NewInvalidCardError creates a new InvalidCardError
func NewInvalidCardError(cardID, reason string) *InvalidCardError {
	return &InvalidCardError{CardID: cardID, Reason: reason}
}
