package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
)

// cardRepository implements the CardRepository interface
type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository instance
func NewCardRepository(db *gorm.DB) domainRepo.CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&card).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return &card, nil
}

// cardTokenRepository implements the CardTokenRepository interface
type cardTokenRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCardTokenRepository creates a new card token repository instance
func NewCardTokenRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CardTokenRepository {
	return &cardTokenRepository{
		db:     db,
		logger: logger,
	}
}

func (r *cardTokenRepository) Create(ctx context.Context, token *model.CardToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		r.logger.Error("Failed to create card token",
			zap.String("transaction_id", token.TransactionID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create card token: %w", err)
	}

	return nil
}

func (r *cardTokenRepository) GetByToken(ctx context.Context, token string) (*model.CardToken, error) {
	var cardToken model.CardToken

	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&cardToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErr.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get card token: %w", err)
	}

	return &cardToken, nil
}

func (r *cardTokenRepository) GetLiveByTransactionID(ctx context.Context, transactionID uuid.UUID, now time.Time) (*model.CardToken, error) {
	var cardToken model.CardToken

	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND is_used = false AND deleted_at IS NULL AND expires_at > ?",
			transactionID, now).
		First(&cardToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get live token: %w", err)
	}

	return &cardToken, nil
}

func (r *cardTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	// Flipping is_used and scrubbing the CVV happen in one update so a
	// crash cannot leave CVV material behind a used token.
	result := r.db.WithContext(ctx).Model(&model.CardToken{}).
		Where("id = ? AND is_used = false", id).
		Updates(map[string]interface{}{
			"is_used":       true,
			"encrypted_cvv": nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark token used",
			zap.String("token_id", id.String()),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark token used: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domainErr.ErrTokenUsed
	}

	return nil
}

func (r *cardTokenRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.CardToken{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":    at,
			"encrypted_cvv": nil,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to soft-delete token: %w", result.Error)
	}

	return nil
}

func (r *cardTokenRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.CardToken{}).
		Where("deleted_at IS NULL AND expires_at <= ?", now).
		Updates(map[string]interface{}{
			"deleted_at":    now,
			"encrypted_cvv": nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to sweep expired tokens", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}
