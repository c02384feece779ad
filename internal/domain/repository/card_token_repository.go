package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/payments/internal/domain/model"
)

// CardRepository reads stored cards for token issuance.
type CardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
}

// CardTokenRepository owns the ephemeral card tokens.
type CardTokenRepository interface {
	Create(ctx context.Context, token *model.CardToken) error
	GetByToken(ctx context.Context, token string) (*model.CardToken, error)
	GetLiveByTransactionID(ctx context.Context, transactionID uuid.UUID, now time.Time) (*model.CardToken, error)

	// MarkUsed flips is_used and scrubs the encrypted CVV column in one
	// update.
	MarkUsed(ctx context.Context, id uuid.UUID) error

	// SoftDelete marks the token inert and scrubs its CVV material.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// SweepExpired soft-deletes every live token past expiry and scrubs
	// CVV material; returns the number of rows affected.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
