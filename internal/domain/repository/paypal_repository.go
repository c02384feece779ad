package repository

import (
	"context"

	"github.com/meridianpay/payments/internal/domain/model"
)

// PaypalRepository owns the PayPal order rows.
type PaypalRepository interface {
	Create(ctx context.Context, tx *model.PaypalTransaction) error
	GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.PaypalTransaction, error)

	// UpdateStatus persists a status change guarded by the expected current
	// status.
	UpdateStatus(ctx context.Context, pspTransactionID string, from, to model.PaypalStatus, mutate func(*model.PaypalTransaction)) (*model.PaypalTransaction, error)
}
