package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
)

// cryptoRepository implements the CryptoRepository interface
type cryptoRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCryptoRepository creates a new crypto transaction repository instance
func NewCryptoRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CryptoRepository {
	return &cryptoRepository{
		db:     db,
		logger: logger,
	}
}

func (r *cryptoRepository) Create(ctx context.Context, transaction *model.CryptoTransaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		r.logger.Error("Failed to create crypto transaction",
			zap.String("psp_transaction_id", transaction.PSPTransactionID),
			zap.Error(err))
		return fmt.Errorf("failed to create crypto transaction: %w", err)
	}

	return nil
}

func (r *cryptoRepository) GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.CryptoTransaction, error) {
	var transaction model.CryptoTransaction

	err := r.db.WithContext(ctx).
		Where("psp_transaction_id = ?", pspTransactionID).
		First(&transaction).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get crypto transaction: %w", err)
	}

	return &transaction, nil
}

func (r *cryptoRepository) GetByCryptoPaymentID(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error) {
	var transaction model.CryptoTransaction

	err := r.db.WithContext(ctx).
		Where("crypto_payment_id = ?", cryptoPaymentID).
		First(&transaction).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErr.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get crypto transaction: %w", err)
	}

	return &transaction, nil
}

func (r *cryptoRepository) UpdateStatus(ctx context.Context, cryptoPaymentID string, from, to model.CryptoStatus, mutate func(*model.CryptoTransaction)) (*model.CryptoTransaction, error) {
	var transaction model.CryptoTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("crypto_payment_id = ?", cryptoPaymentID).
			First(&transaction).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock crypto transaction: %w", err)
		}

		if transaction.Status != from {
			return domainErr.NewInvalidTransitionError("crypto_transaction",
				string(transaction.Status), string(to))
		}

		transaction.Status = to
		if mutate != nil {
			mutate(&transaction)
		}

		if err := tx.Save(&transaction).Error; err != nil {
			return fmt.Errorf("failed to update crypto transaction: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

func (r *cryptoRepository) ListByStatus(ctx context.Context, status model.CryptoStatus, limit int) ([]*model.CryptoTransaction, error) {
	var transactions []*model.CryptoTransaction

	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list crypto transactions: %w", err)
	}

	return transactions, nil
}

func (r *cryptoRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.CryptoTransaction, error) {
	var transactions []*model.CryptoTransaction

	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.CryptoStatusPending, now).
		Order("expires_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired crypto transactions: %w", err)
	}

	return transactions, nil
}

// merchantWalletRepository implements the MerchantWalletRepository interface
type merchantWalletRepository struct {
	db *gorm.DB
}

// NewMerchantWalletRepository creates a new merchant wallet repository instance
func NewMerchantWalletRepository(db *gorm.DB) domainRepo.MerchantWalletRepository {
	return &merchantWalletRepository{db: db}
}

func (r *merchantWalletRepository) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*model.MerchantWallet, error) {
	var wallet model.MerchantWallet

	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get merchant wallet: %w", err)
	}

	return &wallet, nil
}
