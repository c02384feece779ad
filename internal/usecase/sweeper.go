package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/middleware/correlation"
)

// SweeperConfig carries the background runner's intervals and thresholds.
type SweeperConfig struct {
	Interval       time.Duration
	CaptureAge     time.Duration
	BatchSize      int
	CryptoPolling  bool
	TokenSweeping  bool
	ExpireSweeping bool
}

// Sweeper is the cooperative periodic runner. One iteration drives the
// auto-capture of long-authorized transactions and, when enabled, the stale
// expiry, token and crypto confirmation sweeps. Every underlying operation
// is idempotent, so iterations are independently safe to retry.
type Sweeper struct {
	ledger          *LedgerService
	transactions    *TransactionService
	tokens          *TokenService
	cryptoPayments  *CryptoService
	transactionRepo domainRepo.TransactionRepository
	config          SweeperConfig
	logger          *zap.Logger
	now             func() time.Time
}

// NewSweeper creates a new sweeper instance
func NewSweeper(
	ledger *LedgerService,
	transactions *TransactionService,
	tokens *TokenService,
	cryptoPayments *CryptoService,
	transactionRepo domainRepo.TransactionRepository,
	config SweeperConfig,
	logger *zap.Logger,
) *Sweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Sweeper{
		ledger:          ledger,
		transactions:    transactions,
		tokens:          tokens,
		cryptoPayments:  cryptoPayments,
		transactionRepo: transactionRepo,
		config:          config,
		logger:          logger,
		now:             time.Now,
	}
}

// Run loops until ctx is cancelled, waiting out the interval between
// iterations. A failed iteration is logged; the next one proceeds.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("capture_age", s.config.CaptureAge))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			iterCtx := correlation.WithID(ctx, "sweep-"+uuid.New().String())
			s.runOnce(iterCtx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.AutoCapture(ctx); err != nil {
		s.logger.Error("Auto-capture sweep failed", zap.Error(err))
	}

	if s.config.ExpireSweeping {
		if _, err := s.transactions.ExpireStale(ctx); err != nil {
			s.logger.Error("Transaction expiry sweep failed", zap.Error(err))
		}
		if _, err := s.cryptoPayments.ExpireStale(ctx, s.config.BatchSize); err != nil {
			s.logger.Error("Crypto expiry sweep failed", zap.Error(err))
		}
	}

	if s.config.TokenSweeping {
		if _, err := s.tokens.Sweep(ctx); err != nil {
			s.logger.Error("Token sweep failed", zap.Error(err))
		}
	}

	if s.config.CryptoPolling {
		if _, err := s.cryptoPayments.PollConfirming(ctx, s.config.BatchSize); err != nil {
			s.logger.Error("Crypto confirmation poll failed", zap.Error(err))
		}
	}
}

// AutoCapture finalizes every AUTHORIZED transaction older than the capture
// age: ledger finalize first, then the CAPTURED transition. At-least-once; a
// failed finalize leaves the transaction AUTHORIZED for the next sweep.
func (s *Sweeper) AutoCapture(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.config.CaptureAge)

	stale, err := s.transactionRepo.ListAuthorizedBefore(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	captured := 0
	for _, transaction := range stale {
		if transaction.CustomerAccountID == nil {
			// Nothing to settle from; skipped, not retried
			s.logger.Warn("Skipping authorized transaction without customer account",
				zap.String("transaction_id", transaction.ID.String()))
			continue
		}

		if _, err := s.ledger.CaptureReserved(ctx,
			*transaction.CustomerAccountID, transaction.Amount); err != nil {
			var insufficient *domainErr.InsufficientFundsError
			if !errors.As(err, &insufficient) {
				s.logger.Warn("Capture step failed, leaving transaction for next sweep",
					zap.String("transaction_id", transaction.ID.String()),
					zap.Error(err))
				continue
			}
			// Reserved already drained: a prior sweep (or a synchronous
			// capture that died before finalize) moved the funds to
			// pending capture. Finalize picks up from there.
		}

		if err := s.ledger.FinalizeCapture(ctx,
			transaction.MerchantAccountID, *transaction.CustomerAccountID,
			transaction.Amount); err != nil {
			s.logger.Warn("FinalizeCapture failed, leaving transaction for next sweep",
				zap.String("transaction_id", transaction.ID.String()),
				zap.Error(err))
			continue
		}

		if _, err := s.transactions.Transition(ctx, transaction.ID,
			model.TransactionStatusCaptured); err != nil {
			var transition *domainErr.InvalidTransitionError
			if errors.As(err, &transition) {
				// A concurrent caller already captured it
				continue
			}
			s.logger.Error("Failed to mark transaction captured after finalize",
				zap.String("transaction_id", transaction.ID.String()),
				zap.Error(err))
			continue
		}

		captured++
	}

	if captured > 0 {
		s.logger.Info("Auto-capture sweep completed",
			zap.Int("captured", captured),
			zap.Int("scanned", len(stale)))
	}

	return captured, nil
}
