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

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *model.Transaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Stan uniqueness is the creation-time idempotency guard
		var count int64
		if err := tx.Model(&model.Transaction{}).
			Where("merchant_stan = ?", transaction.MerchantStan).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check stan uniqueness: %w", err)
		}
		if count > 0 {
			return domainErr.ErrDuplicateKey
		}

		if err := tx.Create(transaction).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, domainErr.ErrDuplicateKey) {
			return err
		}
		r.logger.Error("Failed to create transaction",
			zap.String("stan", transaction.MerchantStan),
			zap.String("external_payment_id", transaction.ExternalPaymentID),
			zap.Error(err))
		return err
	}

	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErr.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &transaction, nil
}

func (r *transactionRepository) GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*model.Transaction, error) {
	var transaction model.Transaction

	err := r.db.WithContext(ctx).
		Where("external_payment_id = ?", externalPaymentID).
		First(&transaction).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErr.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &transaction, nil
}

func (r *transactionRepository) ExistsByStan(ctx context.Context, stan string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("merchant_stan = ?", stan).
		Count(&count).Error

	if err != nil {
		return false, fmt.Errorf("failed to check stan: %w", err)
	}

	return count > 0, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TransactionStatus, at time.Time) (*model.Transaction, error) {
	var transaction model.Transaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&transaction).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrTransactionNotFound
			}
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		// The caller validated against the table; re-check under the lock
		// so a concurrent transition loses cleanly.
		if transaction.Status != from {
			return domainErr.NewInvalidTransitionError("transaction",
				string(transaction.Status), string(to))
		}

		transaction.Status = to
		switch to {
		case model.TransactionStatusAuthorized:
			transaction.AuthorizedAt = &at
		case model.TransactionStatusCaptured:
			transaction.CapturedAt = &at
		case model.TransactionStatusFailed:
			transaction.FailedAt = &at
		}

		if err := tx.Save(&transaction).Error; err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionRepository) LinkCustomer(ctx context.Context, id uuid.UUID, cardID, customerAccountID, customerID uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&transaction).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrTransactionNotFound
			}
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		// One-time link, no re-link
		if transaction.CustomerAccountID != nil {
			return domainErr.ErrCustomerLinked
		}

		transaction.CardID = &cardID
		transaction.CustomerAccountID = &customerAccountID
		transaction.CustomerID = &customerID

		if err := tx.Save(&transaction).Error; err != nil {
			return fmt.Errorf("failed to link customer: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("status = ? AND expires_at <= ?", model.TransactionStatusPending, now).
		Updates(map[string]interface{}{
			"status":     model.TransactionStatusExpired,
			"updated_at": now,
		})

	if result.Error != nil {
		r.logger.Error("Failed to expire stale transactions", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to expire stale transactions: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *transactionRepository) ListAuthorizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction

	query := r.db.WithContext(ctx).
		Where("status = ? AND authorized_at <= ?", model.TransactionStatusAuthorized, cutoff).
		Order("authorized_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list authorized transactions: %w", err)
	}

	return transactions, nil
}
