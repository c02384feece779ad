package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/middleware/correlation"
)

// DefaultExpiryWindow is how long a pending transaction may wait for card
// data before it goes stale.
const DefaultExpiryWindow = 30 * time.Minute

// TransactionService orchestrates the authorization lifecycle of bank-card
// payments. Transitions are validated once, centrally, against the model's
// transition table.
type TransactionService struct {
	transactionRepo domainRepo.TransactionRepository
	auditRepo       domainRepo.AuditRepository
	logger          *zap.Logger
	now             func() time.Time
}

// NewTransactionService creates a new transaction service instance
func NewTransactionService(
	transactionRepo domainRepo.TransactionRepository,
	auditRepo domainRepo.AuditRepository,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		auditRepo:       auditRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// Create registers a new payment attempt. The merchant stan is the
// creation-time idempotency guard: a duplicate comes back as
// ErrDuplicateKey, never as a second row.
func (s *TransactionService) Create(ctx context.Context, merchantAccountID uuid.UUID, amount decimal.Decimal, currency, stan, externalPaymentID string, expiryWindow time.Duration) (*model.Transaction, error) {
	if expiryWindow <= 0 {
		expiryWindow = DefaultExpiryWindow
	}

	transaction := &model.Transaction{
		ID:                uuid.New(),
		ExternalPaymentID: externalPaymentID,
		MerchantStan:      stan,
		Amount:            amount,
		Currency:          currency,
		Status:            model.TransactionStatusPending,
		ExpiresAt:         s.now().UTC().Add(expiryWindow),
		MerchantAccountID: merchantAccountID,
	}

	err := s.transactionRepo.Create(ctx, transaction)
	if err != nil {
		if errors.Is(err, domainErr.ErrDuplicateKey) {
			s.logger.Info("Duplicate stan rejected",
				zap.String("stan", stan),
				zap.String("external_payment_id", externalPaymentID))
			s.auditRepo.Record(ctx, "transaction.create", externalPaymentID,
				correlation.ActorIP(ctx), model.AuditResultRejected,
				map[string]interface{}{"reason": "duplicate stan", "stan": stan})
			return nil, err
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.logger.Info("Transaction created",
		zap.String("transaction_id", transaction.ID.String()),
		zap.String("external_payment_id", externalPaymentID),
		zap.String("stan", stan),
		zap.String("amount", amount.String()),
		zap.String("currency", currency),
		zap.Time("expires_at", transaction.ExpiresAt))

	s.auditRepo.Record(ctx, "transaction.create", transaction.ID.String(),
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{
			"amount":         amount.String(),
			"currency":       currency,
			"correlation_id": correlation.FromContext(ctx),
		})

	return transaction, nil
}

// IsValid reports whether the transaction may still accept card data.
func (s *TransactionService) IsValid(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domainErr.ErrTransactionNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to validate transaction: %w", err)
	}

	return transaction.IsValid(s.now().UTC()), nil
}

// Get returns the transaction by id.
func (s *TransactionService) Get(ctx context.Context, transactionID uuid.UUID) (*model.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, transactionID)
}

// Transition moves the transaction to newStatus if the transition table
// permits it. An illegal transition is reported as a typed failure and
// leaves the status unchanged.
func (s *TransactionService) Transition(ctx context.Context, transactionID uuid.UUID, newStatus model.TransactionStatus) (*model.Transaction, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if !transaction.Status.CanTransitionTo(newStatus) {
		s.logger.Info("Transition rejected",
			zap.String("transaction_id", transactionID.String()),
			zap.String("from", string(transaction.Status)),
			zap.String("to", string(newStatus)))
		s.auditRepo.Record(ctx, "transaction.transition", transactionID.String(),
			correlation.ActorIP(ctx), model.AuditResultRejected,
			map[string]interface{}{
				"from": string(transaction.Status),
				"to":   string(newStatus),
			})
		return nil, domainErr.NewInvalidTransitionError("transaction",
			string(transaction.Status), string(newStatus))
	}

	updated, err := s.transactionRepo.UpdateStatus(ctx, transactionID,
		transaction.Status, newStatus, s.now().UTC())
	if err != nil {
		var transition *domainErr.InvalidTransitionError
		if errors.As(err, &transition) {
			// Lost a race; report it like any other rejected transition
			return nil, err
		}
		return nil, fmt.Errorf("failed to transition transaction: %w", err)
	}

	s.logger.Info("Transaction transitioned",
		zap.String("transaction_id", transactionID.String()),
		zap.String("from", string(transaction.Status)),
		zap.String("to", string(newStatus)))

	s.auditRepo.Record(ctx, "transaction.transition", transactionID.String(),
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{
			"from": string(transaction.Status),
			"to":   string(newStatus),
		})

	return updated, nil
}

// LinkCustomer attaches the paying party after the card/token flow completes.
// One-time: a second link attempt fails with ErrCustomerLinked.
func (s *TransactionService) LinkCustomer(ctx context.Context, transactionID, cardID, customerAccountID, customerID uuid.UUID) (*model.Transaction, error) {
	transaction, err := s.transactionRepo.LinkCustomer(ctx, transactionID, cardID, customerAccountID, customerID)
	if err != nil {
		if errors.Is(err, domainErr.ErrCustomerLinked) || errors.Is(err, domainErr.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to link customer: %w", err)
	}

	s.logger.Info("Customer linked",
		zap.String("transaction_id", transactionID.String()),
		zap.String("customer_account_id", customerAccountID.String()),
		zap.String("card_id", cardID.String()))

	return transaction, nil
}

// ExpireStale moves every PENDING transaction past its deadline to EXPIRED.
func (s *TransactionService) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := s.transactionRepo.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale transactions: %w", err)
	}

	if expired > 0 {
		s.logger.Info("Expired stale transactions", zap.Int64("count", expired))
	}

	return expired, nil
}
