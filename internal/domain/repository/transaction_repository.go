package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/payments/internal/domain/model"
)

// TransactionRepository owns the bank-card transaction rows.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*model.Transaction, error)
	ExistsByStan(ctx context.Context, stan string) (bool, error)

	// UpdateStatus persists a status change validated by the caller. The
	// update is guarded by the expected current status so a concurrent
	// transition loses cleanly instead of overwriting.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TransactionStatus, at time.Time) (*model.Transaction, error)

	LinkCustomer(ctx context.Context, id uuid.UUID, cardID, customerAccountID, customerID uuid.UUID) (*model.Transaction, error)

	// ExpireStale moves every PENDING transaction past its deadline to
	// EXPIRED and returns the number of rows affected.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// ListAuthorizedBefore returns AUTHORIZED transactions whose
	// authorization is older than cutoff, for the auto-capture sweep.
	ListAuthorizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Transaction, error)
}
