package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
)

// paypalRepository implements the PaypalRepository interface
type paypalRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaypalRepository creates a new PayPal transaction repository instance
func NewPaypalRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaypalRepository {
	return &paypalRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paypalRepository) Create(ctx context.Context, transaction *model.PaypalTransaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		r.logger.Error("Failed to create PayPal transaction",
			zap.String("psp_transaction_id", transaction.PSPTransactionID),
			zap.Error(err))
		return fmt.Errorf("failed to create paypal transaction: %w", err)
	}

	return nil
}

func (r *paypalRepository) GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.PaypalTransaction, error) {
	var transaction model.PaypalTransaction

	err := r.db.WithContext(ctx).
		Where("psp_transaction_id = ?", pspTransactionID).
		First(&transaction).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get paypal transaction: %w", err)
	}

	return &transaction, nil
}

func (r *paypalRepository) UpdateStatus(ctx context.Context, pspTransactionID string, from, to model.PaypalStatus, mutate func(*model.PaypalTransaction)) (*model.PaypalTransaction, error) {
	var transaction model.PaypalTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("psp_transaction_id = ?", pspTransactionID).
			First(&transaction).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock paypal transaction: %w", err)
		}

		if transaction.Status != from {
			return domainErr.NewInvalidTransitionError("paypal_transaction",
				string(transaction.Status), string(to))
		}

		transaction.Status = to
		if mutate != nil {
			mutate(&transaction)
		}

		if err := tx.Save(&transaction).Error; err != nil {
			return fmt.Errorf("failed to update paypal transaction: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &transaction, nil
}
