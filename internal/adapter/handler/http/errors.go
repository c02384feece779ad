package http

import (
	"errors"
	"net/http"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
)

// errorStatus maps domain failures to HTTP status codes. Anything unmapped
// is an infrastructure fault and surfaces as a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domainErr.ErrAccountNotFound),
		errors.Is(err, domainErr.ErrTransactionNotFound),
		errors.Is(err, domainErr.ErrTokenNotFound),
		errors.Is(err, domainErr.ErrPaymentNotFound),
		errors.Is(err, domainErr.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErr.ErrDuplicateKey),
		errors.Is(err, domainErr.ErrCustomerLinked),
		errors.Is(err, domainErr.ErrTokenUsed):
		return http.StatusConflict
	case errors.Is(err, domainErr.ErrTokenExpired):
		return http.StatusGone
	}

	var insufficient *domainErr.InsufficientFundsError
	var chain *domainErr.ChainValidationError
	var transition *domainErr.InvalidTransitionError
	var card *domainErr.InvalidCardError
	switch {
	case errors.As(err, &insufficient), errors.As(err, &chain):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &card):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
