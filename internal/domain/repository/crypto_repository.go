package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpay/payments/internal/domain/model"
)

// CryptoRepository owns the crypto payment intent rows.
type CryptoRepository interface {
	Create(ctx context.Context, tx *model.CryptoTransaction) error
	GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.CryptoTransaction, error)
	GetByCryptoPaymentID(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error)

	// UpdateStatus persists a status change guarded by the expected current
	// status.
	UpdateStatus(ctx context.Context, cryptoPaymentID string, from, to model.CryptoStatus, mutate func(*model.CryptoTransaction)) (*model.CryptoTransaction, error)

	// ListByStatus returns intents in the given status, oldest first, for
	// the background loops.
	ListByStatus(ctx context.Context, status model.CryptoStatus, limit int) ([]*model.CryptoTransaction, error)

	// ListExpiredPending returns PENDING intents whose deadline has passed.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.CryptoTransaction, error)
}

// MerchantWalletRepository resolves a merchant's registered payout wallet.
// Addresses are stored encrypted; decryption happens at the adapter boundary.
type MerchantWalletRepository interface {
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*model.MerchantWallet, error)
}
