package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErr.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account",
			zap.String("account_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// mutate locks the account row, applies the domain mutation and saves the
// result inside one transaction. Precondition failures come back as typed
// domain errors and roll the transaction back untouched.
func (r *accountRepository) mutate(ctx context.Context, accountID uuid.UUID, op string, fn func(*model.Account) error) (*model.Account, error) {
	var account model.Account

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			First(&account).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}

		if err := fn(&account); err != nil {
			return err
		}

		if err := tx.Save(&account).Error; err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		return nil
	})

	if err != nil {
		var insufficient *domainErr.InsufficientFundsError
		if errors.Is(err, domainErr.ErrAccountNotFound) || errors.As(err, &insufficient) {
			// Precondition failure, caller branches on it
			return nil, err
		}
		r.logger.Error("Ledger mutation failed",
			zap.String("operation", op),
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return nil, err
	}

	return &account, nil
}

func (r *accountRepository) Reserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := r.mutate(ctx, accountID, "reserve", func(a *model.Account) error {
		return a.Reserve(amount)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Funds reserved",
		zap.String("account_id", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("available", account.Available.String()),
		zap.String("reserved", account.Reserved.String()))

	return account, nil
}

func (r *accountRepository) CaptureReserved(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := r.mutate(ctx, accountID, "capture_reserved", func(a *model.Account) error {
		return a.CaptureReserved(amount)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Reserved funds captured",
		zap.String("account_id", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("reserved", account.Reserved.String()),
		zap.String("pending_capture", account.PendingCapture.String()))

	return account, nil
}

func (r *accountRepository) Release(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := r.mutate(ctx, accountID, "release", func(a *model.Account) error {
		return a.Release(amount)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Reserved funds released",
		zap.String("account_id", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("available", account.Available.String()),
		zap.String("reserved", account.Reserved.String()))

	return account, nil
}

// FinalizeCapture settles funds from the customer's pending_capture into the
// merchant's balance. Rows are locked in a fixed order (merchant first) so
// two concurrent finalizations cannot deadlock.
func (r *accountRepository) FinalizeCapture(ctx context.Context, merchantAccountID, customerAccountID uuid.UUID, amount decimal.Decimal) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var merchant, customer model.Account

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", merchantAccountID).
			First(&merchant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock merchant account: %w", err)
		}

		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", customerAccountID).
			First(&customer).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErr.ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock customer account: %w", err)
		}

		if err := model.FinalizeCapture(&merchant, &customer, amount); err != nil {
			return err
		}

		if err := tx.Save(&customer).Error; err != nil {
			return fmt.Errorf("failed to update customer account: %w", err)
		}
		if err := tx.Save(&merchant).Error; err != nil {
			return fmt.Errorf("failed to update merchant account: %w", err)
		}

		return nil
	})

	if err != nil {
		var insufficient *domainErr.InsufficientFundsError
		if errors.Is(err, domainErr.ErrAccountNotFound) || errors.As(err, &insufficient) {
			return err
		}
		r.logger.Error("Failed to finalize capture",
			zap.String("merchant_account_id", merchantAccountID.String()),
			zap.String("customer_account_id", customerAccountID.String()),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return err
	}

	r.logger.Info("Capture finalized",
		zap.String("merchant_account_id", merchantAccountID.String()),
		zap.String("customer_account_id", customerAccountID.String()),
		zap.String("amount", amount.String()))

	return nil
}
