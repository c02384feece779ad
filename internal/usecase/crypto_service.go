package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	"github.com/meridianpay/payments/internal/domain/provider"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
	"github.com/meridianpay/payments/internal/middleware/correlation"
)

// CryptoConfig carries the crypto rail's tunables.
type CryptoConfig struct {
	Asset                 string
	FallbackRate          decimal.Decimal
	AmountTolerancePct    decimal.Decimal
	ConfirmationThreshold int
	PaymentExpiry         time.Duration
}

// CryptoService is the settlement adapter for the on-chain rail. All entry
// points are keyed by the caller-supplied pspTransactionId; wallet addresses
// and tx hashes are stored encrypted and never leave the adapter.
type CryptoService struct {
	cryptoRepo domainRepo.CryptoRepository
	walletRepo domainRepo.MerchantWalletRepository
	auditRepo  domainRepo.AuditRepository
	rates      provider.RateSource
	explorer   provider.ChainExplorer
	encryption crypto.EncryptionService
	config     CryptoConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewCryptoService creates a new crypto settlement service instance
func NewCryptoService(
	cryptoRepo domainRepo.CryptoRepository,
	walletRepo domainRepo.MerchantWalletRepository,
	auditRepo domainRepo.AuditRepository,
	rates provider.RateSource,
	explorer provider.ChainExplorer,
	encryption crypto.EncryptionService,
	config CryptoConfig,
	logger *zap.Logger,
) *CryptoService {
	return &CryptoService{
		cryptoRepo: cryptoRepo,
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		rates:      rates,
		explorer:   explorer,
		encryption: encryption,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// CreatePayment creates a crypto payment intent. Idempotent on
// pspTransactionId: an existing non-FAILED record is returned unchanged.
func (s *CryptoService) CreatePayment(ctx context.Context, pspTransactionID string, merchantID uuid.UUID, amountFiat decimal.Decimal, currency string) (*model.CryptoTransaction, error) {
	existing, err := s.cryptoRepo.GetByPSPTransactionID(ctx, pspTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if existing != nil && existing.Status != model.CryptoStatusFailed {
		s.logger.Info("Crypto payment already exists (idempotency)",
			zap.String("psp_transaction_id", pspTransactionID),
			zap.String("crypto_payment_id", existing.CryptoPaymentID),
			zap.String("status", string(existing.Status)))
		return existing, nil
	}

	rate, err := s.rates.GetRate(ctx, currency, s.config.Asset)
	if err != nil {
		// Rate source outage is non-fatal; a hardcoded rate keeps the rail up
		s.logger.Warn("Rate source unavailable, using fallback rate",
			zap.String("currency", currency),
			zap.String("asset", s.config.Asset),
			zap.String("fallback_rate", s.config.FallbackRate.String()),
			zap.Error(err))
		rate = s.config.FallbackRate
	}

	wallet, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up merchant wallet: %w", err)
	}
	if wallet == nil {
		return nil, domainErr.ErrWalletNotFound
	}

	amountCrypto := amountFiat.Div(rate).Round(8)
	now := s.now().UTC()

	transaction := &model.CryptoTransaction{
		ID:               uuid.New(),
		PSPTransactionID: pspTransactionID,
		CryptoPaymentID:  "cp_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		MerchantID:       merchantID,
		AmountFiat:       amountFiat,
		Currency:         currency,
		AmountCrypto:     amountCrypto,
		ExchangeRate:     rate,
		WalletAddress:    wallet.EncryptedAddress,
		Status:           model.CryptoStatusPending,
		ExpiresAt:        now.Add(s.config.PaymentExpiry),
	}

	if err := s.cryptoRepo.Create(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to create crypto payment: %w", err)
	}

	s.logger.Info("Crypto payment created",
		zap.String("psp_transaction_id", pspTransactionID),
		zap.String("crypto_payment_id", transaction.CryptoPaymentID),
		zap.String("amount_fiat", amountFiat.String()),
		zap.String("amount_crypto", amountCrypto.String()),
		zap.String("rate", rate.String()))

	s.auditRepo.Record(ctx, "crypto.create_payment", transaction.CryptoPaymentID,
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{
			"psp_transaction_id": pspTransactionID,
			"amount_fiat":        amountFiat.String(),
			"currency":           currency,
			"amount_crypto":      amountCrypto.String(),
			"correlation_id":     correlation.FromContext(ctx),
		})

	return transaction, nil
}

// Confirm is the single confirmation entry point. It validates the submitted
// on-chain transaction against the stored expectation; if the chain already
// reports enough confirmations the intent completes immediately, otherwise it
// moves to CONFIRMING for the poll loop to finish.
func (s *CryptoService) Confirm(ctx context.Context, cryptoPaymentID, txHash string) (*model.CryptoTransaction, error) {
	transaction, err := s.cryptoRepo.GetByCryptoPaymentID(ctx, cryptoPaymentID)
	if err != nil {
		return nil, err
	}

	if transaction.Status != model.CryptoStatusPending && transaction.Status != model.CryptoStatusCancelled {
		return nil, domainErr.NewInvalidTransitionError("crypto_transaction",
			string(transaction.Status), string(model.CryptoStatusCompleted))
	}

	chainTx, err := s.explorer.GetTransaction(ctx, txHash)
	if err != nil {
		// Explorer outage: defer, do not fail the intent
		return nil, fmt.Errorf("failed to query chain transaction: %w", err)
	}

	expectedAddress, err := s.encryption.Decrypt(transaction.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt wallet address: %w", err)
	}

	if validationErr := s.validateChainTx(chainTx, expectedAddress, transaction.AmountCrypto); validationErr != nil {
		s.logger.Info("On-chain validation rejected",
			zap.String("crypto_payment_id", cryptoPaymentID),
			zap.String("reason", validationErr.Error()))
		s.auditRepo.Record(ctx, "crypto.confirm", cryptoPaymentID,
			correlation.ActorIP(ctx), model.AuditResultRejected,
			map[string]interface{}{"reason": validationErr.Error()})
		return nil, validationErr
	}

	encryptedHash, err := s.encryption.Encrypt(txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt tx hash: %w", err)
	}

	target := model.CryptoStatusConfirming
	var completedAt *time.Time
	if chainTx.Confirmations >= s.config.ConfirmationThreshold {
		target = model.CryptoStatusCompleted
		at := s.now().UTC()
		completedAt = &at
	}

	updated, err := s.cryptoRepo.UpdateStatus(ctx, cryptoPaymentID, transaction.Status, target,
		func(t *model.CryptoTransaction) {
			t.TxHash = &encryptedHash
			t.Confirmations = chainTx.Confirmations
			t.CompletedAt = completedAt
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Crypto payment confirmed",
		zap.String("crypto_payment_id", cryptoPaymentID),
		zap.String("status", string(updated.Status)),
		zap.Int("confirmations", chainTx.Confirmations))

	s.auditRepo.Record(ctx, "crypto.confirm", cryptoPaymentID,
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{
			"status":        string(updated.Status),
			"confirmations": chainTx.Confirmations,
		})

	return updated, nil
}

func (s *CryptoService) validateChainTx(chainTx *provider.ChainTransaction, expectedAddress string, expectedAmount decimal.Decimal) error {
	if !strings.EqualFold(chainTx.Recipient, expectedAddress) {
		return domainErr.NewChainValidationError("recipient", expectedAddress, chainTx.Recipient)
	}

	tolerance := expectedAmount.Mul(s.config.AmountTolerancePct).Div(decimal.NewFromInt(100))
	diff := chainTx.Amount.Sub(expectedAmount).Abs()
	if diff.GreaterThan(tolerance) {
		return domainErr.NewChainValidationError("amount",
			expectedAmount.String(), chainTx.Amount.String())
	}

	return nil
}

// Capture finishes a CONFIRMING intent once the chain reports the configured
// confirmation threshold. Below the threshold it is a no-op, left for the
// next poll.
func (s *CryptoService) Capture(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error) {
	transaction, err := s.cryptoRepo.GetByCryptoPaymentID(ctx, cryptoPaymentID)
	if err != nil {
		return nil, err
	}

	if transaction.Status != model.CryptoStatusConfirming {
		return nil, domainErr.NewInvalidTransitionError("crypto_transaction",
			string(transaction.Status), string(model.CryptoStatusCaptured))
	}

	if transaction.TxHash == nil {
		return nil, fmt.Errorf("confirming payment %s has no tx hash", cryptoPaymentID)
	}

	txHash, err := s.encryption.Decrypt(*transaction.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt tx hash: %w", err)
	}

	confirmations, err := s.explorer.GetConfirmations(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmations: %w", err)
	}

	if confirmations < s.config.ConfirmationThreshold {
		s.logger.Debug("Confirmation threshold not reached",
			zap.String("crypto_payment_id", cryptoPaymentID),
			zap.Int("confirmations", confirmations),
			zap.Int("threshold", s.config.ConfirmationThreshold))
		return transaction, nil
	}

	at := s.now().UTC()
	updated, err := s.cryptoRepo.UpdateStatus(ctx, cryptoPaymentID,
		model.CryptoStatusConfirming, model.CryptoStatusCaptured,
		func(t *model.CryptoTransaction) {
			t.Confirmations = confirmations
			t.CompletedAt = &at
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Crypto payment captured",
		zap.String("crypto_payment_id", cryptoPaymentID),
		zap.Int("confirmations", confirmations))

	s.auditRepo.Record(ctx, "crypto.capture", cryptoPaymentID, "",
		model.AuditResultSuccess,
		map[string]interface{}{"confirmations": confirmations})

	return updated, nil
}

// Expire moves a PENDING intent past its deadline to EXPIRED.
func (s *CryptoService) Expire(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error) {
	transaction, err := s.cryptoRepo.GetByCryptoPaymentID(ctx, cryptoPaymentID)
	if err != nil {
		return nil, err
	}

	if transaction.Status != model.CryptoStatusPending {
		return nil, domainErr.NewInvalidTransitionError("crypto_transaction",
			string(transaction.Status), string(model.CryptoStatusExpired))
	}

	if s.now().UTC().Before(transaction.ExpiresAt) {
		return nil, fmt.Errorf("payment %s has not expired yet", cryptoPaymentID)
	}

	updated, err := s.cryptoRepo.UpdateStatus(ctx, cryptoPaymentID,
		model.CryptoStatusPending, model.CryptoStatusExpired, nil)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Record(ctx, "crypto.expire", cryptoPaymentID, "",
		model.AuditResultSuccess, nil)

	return updated, nil
}

// Cancel is the user-initiated PENDING -> CANCELLED transition.
func (s *CryptoService) Cancel(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error) {
	transaction, err := s.cryptoRepo.GetByCryptoPaymentID(ctx, cryptoPaymentID)
	if err != nil {
		return nil, err
	}

	if transaction.Status != model.CryptoStatusPending {
		return nil, domainErr.NewInvalidTransitionError("crypto_transaction",
			string(transaction.Status), string(model.CryptoStatusCancelled))
	}

	updated, err := s.cryptoRepo.UpdateStatus(ctx, cryptoPaymentID,
		model.CryptoStatusPending, model.CryptoStatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Crypto payment cancelled",
		zap.String("crypto_payment_id", cryptoPaymentID))

	s.auditRepo.Record(ctx, "crypto.cancel", cryptoPaymentID,
		correlation.ActorIP(ctx), model.AuditResultSuccess, nil)

	return updated, nil
}

// GetStatus returns the intent for the caller's idempotency key. Encrypted
// fields are never serialized.
func (s *CryptoService) GetStatus(ctx context.Context, pspTransactionID string) (*model.CryptoTransaction, error) {
	transaction, err := s.cryptoRepo.GetByPSPTransactionID(ctx, pspTransactionID)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, domainErr.ErrPaymentNotFound
	}
	return transaction, nil
}

// ExpireStale drives every overdue PENDING intent to EXPIRED. Called by the
// background runner.
func (s *CryptoService) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	stale, err := s.cryptoRepo.ListExpiredPending(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired payments: %w", err)
	}

	expired := 0
	for _, transaction := range stale {
		if _, err := s.Expire(ctx, transaction.CryptoPaymentID); err != nil {
			var transition *domainErr.InvalidTransitionError
			if errors.As(err, &transition) {
				// Lost a race with a confirm or cancel; fine
				continue
			}
			s.logger.Warn("Failed to expire crypto payment",
				zap.String("crypto_payment_id", transaction.CryptoPaymentID),
				zap.Error(err))
			continue
		}
		expired++
	}

	return expired, nil
}

// PollConfirming re-checks every CONFIRMING intent against the chain. Each
// iteration is independently safe to retry.
func (s *CryptoService) PollConfirming(ctx context.Context, batchSize int) (int, error) {
	confirming, err := s.cryptoRepo.ListByStatus(ctx, model.CryptoStatusConfirming, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list confirming payments: %w", err)
	}

	captured := 0
	for _, transaction := range confirming {
		updated, err := s.Capture(ctx, transaction.CryptoPaymentID)
		if err != nil {
			s.logger.Warn("Confirmation poll failed for payment",
				zap.String("crypto_payment_id", transaction.CryptoPaymentID),
				zap.Error(err))
			continue
		}
		if updated.Status == model.CryptoStatusCaptured {
			captured++
		}
	}

	return captured, nil
}
