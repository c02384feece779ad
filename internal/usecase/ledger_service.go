package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/middleware/correlation"
)

// LedgerService owns the per-account funds ledger. Every mutation is audited,
// including rejected attempts.
type LedgerService struct {
	accountRepo domainRepo.AccountRepository
	auditRepo   domainRepo.AuditRepository
	logger      *zap.Logger
}

// NewLedgerService creates a new ledger service instance
func NewLedgerService(
	accountRepo domainRepo.AccountRepository,
	auditRepo domainRepo.AuditRepository,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// isPrecondition reports whether err is a domain precondition failure the
// caller should branch on, as opposed to an infrastructure fault.
func isPrecondition(err error) bool {
	var insufficient *domainErr.InsufficientFundsError
	var transition *domainErr.InvalidTransitionError
	return errors.Is(err, domainErr.ErrAccountNotFound) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &transition)
}

func (s *LedgerService) audit(ctx context.Context, action string, accountID uuid.UUID, amount decimal.Decimal, err error) {
	result := model.AuditResultSuccess
	details := map[string]interface{}{
		"amount":         amount.String(),
		"correlation_id": correlation.FromContext(ctx),
	}

	if err != nil {
		if isPrecondition(err) {
			result = model.AuditResultRejected
		} else {
			result = model.AuditResultError
		}
		details["reason"] = err.Error()
	}

	s.auditRepo.Record(ctx, action, accountID.String(), correlation.ActorIP(ctx), result, details)
}

// Reserve moves amount from available to reserved. Insufficient funds or a
// missing account come back as typed failures, not infrastructure errors.
func (s *LedgerService) Reserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := s.accountRepo.Reserve(ctx, accountID, amount)
	s.audit(ctx, "ledger.reserve", accountID, amount, err)
	if err != nil {
		if isPrecondition(err) {
			s.logger.Info("Reserve rejected",
				zap.String("account_id", accountID.String()),
				zap.String("amount", amount.String()),
				zap.String("reason", err.Error()))
			return nil, err
		}
		return nil, fmt.Errorf("failed to reserve funds: %w", err)
	}

	return account, nil
}

// CanReserve is an advisory read-only check. It takes no lock, so the answer
// may be stale by the time a real Reserve runs; Reserve is the authoritative
// gate.
func (s *LedgerService) CanReserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (bool, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domainErr.ErrAccountNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to check reservable funds: %w", err)
	}

	return account.Available.GreaterThanOrEqual(amount), nil
}

// CaptureReserved moves amount from reserved to pending_capture on the same
// account.
func (s *LedgerService) CaptureReserved(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := s.accountRepo.CaptureReserved(ctx, accountID, amount)
	s.audit(ctx, "ledger.capture_reserved", accountID, amount, err)
	if err != nil {
		if isPrecondition(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to capture reserved funds: %w", err)
	}

	return account, nil
}

// Release is the compensating rollback for Reserve.
func (s *LedgerService) Release(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	account, err := s.accountRepo.Release(ctx, accountID, amount)
	s.audit(ctx, "ledger.release", accountID, amount, err)
	if err != nil {
		if isPrecondition(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to release funds: %w", err)
	}

	return account, nil
}

// FinalizeCapture settles funds from the customer's pending_capture into the
// merchant's balance. Idempotent in the at-least-once sense: once the first
// attempt succeeds, a repeat fails its precondition and changes nothing.
func (s *LedgerService) FinalizeCapture(ctx context.Context, merchantAccountID, customerAccountID uuid.UUID, amount decimal.Decimal) error {
	err := s.accountRepo.FinalizeCapture(ctx, merchantAccountID, customerAccountID, amount)
	s.audit(ctx, "ledger.finalize_capture", customerAccountID, amount, err)
	if err != nil {
		if isPrecondition(err) {
			s.logger.Info("FinalizeCapture rejected",
				zap.String("merchant_account_id", merchantAccountID.String()),
				zap.String("customer_account_id", customerAccountID.String()),
				zap.String("amount", amount.String()),
				zap.String("reason", err.Error()))
			return err
		}
		return fmt.Errorf("failed to finalize capture: %w", err)
	}

	return nil
}

// GetAccount returns the current account state.
func (s *LedgerService) GetAccount(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// CreateAccount opens an account funded with an initial deposit. Balance
// records the lifetime deposits; available is the spendable mirror of it.
func (s *LedgerService) CreateAccount(ctx context.Context, currency string, deposit decimal.Decimal, isMerchant bool) (*model.Account, error) {
	account := &model.Account{
		ID:             uuid.New(),
		Currency:       currency,
		Balance:        deposit,
		Available:      deposit,
		Reserved:       decimal.Zero,
		PendingCapture: decimal.Zero,
		IsMerchant:     isMerchant,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.audit(ctx, "ledger.create_account", account.ID, deposit, nil)
	return account, nil
}
