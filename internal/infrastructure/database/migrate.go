package database

import (
	"github.com/meridianpay/payments/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	logger.Info("Creating PostgreSQL extensions...")
	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	logger.Info("Running GORM auto-migrations...")
	err := db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.Card{},
		&model.CardToken{},
		&model.CryptoTransaction{},
		&model.PaypalTransaction{},
		&model.MerchantWallet{},
		&model.AuditLog{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes that GORM tags cannot express.
func createCustomIndexes(db *gorm.DB) error {
	// At most one live token per transaction. Used or soft-deleted tokens
	// are excluded so reissuance after consumption stays possible.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_live_token_per_transaction ON card_tokens (transaction_id) WHERE is_used = false AND deleted_at IS NULL`).Error; err != nil {
		return err
	}

	// Sweeper scans for authorized transactions ready for auto capture.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_authorized_at ON transactions (authorized_at) WHERE status = 'AUTHORIZED'`).Error; err != nil {
		return err
	}

	// Confirmation polling and expiry sweeps over crypto payments.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_crypto_transactions_status ON crypto_transactions (status) WHERE status IN ('PENDING', 'CONFIRMING')`).Error; err != nil {
		return err
	}

	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return err
	}
	return nil
}
