package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianpay/payments/internal/domain/model"
)

// AccountRepository owns the funds ledger rows. The four mutators run their
// precondition check and state update inside one serializable transaction
// with the affected rows locked.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error

	Reserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error)
	CaptureReserved(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error)
	Release(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error)
	FinalizeCapture(ctx context.Context, merchantAccountID, customerAccountID uuid.UUID, amount decimal.Decimal) error
}
