package database

import (
	"github.com/meridianpay/payments/internal/adapter/repository"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Account        domainRepo.AccountRepository
	Transaction    domainRepo.TransactionRepository
	Card           domainRepo.CardRepository
	CardToken      domainRepo.CardTokenRepository
	Crypto         domainRepo.CryptoRepository
	MerchantWallet domainRepo.MerchantWalletRepository
	Paypal         domainRepo.PaypalRepository
	Audit          domainRepo.AuditRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Account:        repository.NewAccountRepository(db, logger),
		Transaction:    repository.NewTransactionRepository(db, logger),
		Card:           repository.NewCardRepository(db),
		CardToken:      repository.NewCardTokenRepository(db, logger),
		Crypto:         repository.NewCryptoRepository(db, logger),
		MerchantWallet: repository.NewMerchantWalletRepository(db),
		Paypal:         repository.NewPaypalRepository(db, logger),
		Audit:          repository.NewAuditRepository(db, logger),
	}
}
