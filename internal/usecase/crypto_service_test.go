package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	"github.com/meridianpay/payments/internal/domain/provider"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
)

const testWalletAddress = "0xAbCd1234ef567890abcd1234EF567890ABCD1234"

type cryptoFixture struct {
	cryptoRepo *MockCryptoRepository
	walletRepo *MockMerchantWalletRepository
	rates      *MockRateSource
	explorer   *MockChainExplorer
	encryption crypto.EncryptionService
	service    *CryptoService
}

func newCryptoFixture(t *testing.T) *cryptoFixture {
	f := &cryptoFixture{
		cryptoRepo: new(MockCryptoRepository),
		walletRepo: new(MockMerchantWalletRepository),
		rates:      new(MockRateSource),
		explorer:   new(MockChainExplorer),
		encryption: newTestEncryption(t),
	}
	f.service = NewCryptoService(f.cryptoRepo, f.walletRepo, newAuditMock(),
		f.rates, f.explorer, f.encryption,
		CryptoConfig{
			Asset:                 "ETH",
			FallbackRate:          decimal.RequireFromString("2000"),
			AmountTolerancePct:    decimal.RequireFromString("1"),
			ConfirmationThreshold: 12,
			PaymentExpiry:         time.Hour,
		}, zap.NewNop())
	f.service.now = func() time.Time { return testNow }
	return f
}

func (f *cryptoFixture) encryptedWallet(t *testing.T, merchantID uuid.UUID) *model.MerchantWallet {
	t.Helper()
	encrypted, err := f.encryption.Encrypt(testWalletAddress)
	assert.NoError(t, err)
	return &model.MerchantWallet{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		Asset:            "ETH",
		EncryptedAddress: encrypted,
	}
}

func (f *cryptoFixture) pendingIntent(t *testing.T, merchantID uuid.UUID) *model.CryptoTransaction {
	t.Helper()
	encrypted, err := f.encryption.Encrypt(testWalletAddress)
	assert.NoError(t, err)
	return &model.CryptoTransaction{
		ID:               uuid.New(),
		PSPTransactionID: "psp-100",
		CryptoPaymentID:  "cp_abc",
		MerchantID:       merchantID,
		AmountFiat:       decimal.RequireFromString("100.00"),
		Currency:         "USD",
		AmountCrypto:     decimal.RequireFromString("0.05"),
		ExchangeRate:     decimal.RequireFromString("2000"),
		WalletAddress:    encrypted,
		Status:           model.CryptoStatusPending,
		ExpiresAt:        testNow.Add(time.Hour),
	}
}

func TestCryptoService_CreatePayment(t *testing.T) {
	merchantID := uuid.New()
	amountFiat := decimal.RequireFromString("100.00")

	t.Run("posting the same psp transaction id twice returns the first intent", func(t *testing.T) {
		f := newCryptoFixture(t)
		existing := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByPSPTransactionID", mock.Anything, "psp-100").Return(existing, nil)

		payment, err := f.service.CreatePayment(context.Background(), "psp-100", merchantID, amountFiat, "USD")

		assert.NoError(t, err)
		assert.Equal(t, existing.CryptoPaymentID, payment.CryptoPaymentID)
		f.rates.AssertNotCalled(t, "GetRate", mock.Anything, mock.Anything, mock.Anything)
		f.cryptoRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("converts fiat at the live rate", func(t *testing.T) {
		f := newCryptoFixture(t)
		f.cryptoRepo.On("GetByPSPTransactionID", mock.Anything, "psp-100").Return(nil, nil)
		f.rates.On("GetRate", mock.Anything, "USD", "ETH").
			Return(decimal.RequireFromString("2500"), nil)
		f.walletRepo.On("GetByMerchantID", mock.Anything, merchantID).
			Return(f.encryptedWallet(t, merchantID), nil)
		f.cryptoRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.CryptoTransaction) bool {
			return tx.Status == model.CryptoStatusPending &&
				tx.AmountCrypto.Equal(decimal.RequireFromString("0.04")) &&
				tx.ExchangeRate.Equal(decimal.RequireFromString("2500")) &&
				tx.ExpiresAt.Equal(testNow.Add(time.Hour))
		})).Return(nil)

		payment, err := f.service.CreatePayment(context.Background(), "psp-100", merchantID, amountFiat, "USD")

		assert.NoError(t, err)
		assert.Contains(t, payment.CryptoPaymentID, "cp_")
		f.cryptoRepo.AssertExpectations(t)
	})

	t.Run("rate source outage falls back to the configured rate", func(t *testing.T) {
		f := newCryptoFixture(t)
		f.cryptoRepo.On("GetByPSPTransactionID", mock.Anything, "psp-100").Return(nil, nil)
		f.rates.On("GetRate", mock.Anything, "USD", "ETH").
			Return(decimal.Zero, errors.New("gateway timeout"))
		f.walletRepo.On("GetByMerchantID", mock.Anything, merchantID).
			Return(f.encryptedWallet(t, merchantID), nil)
		f.cryptoRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.CryptoTransaction) bool {
			return tx.ExchangeRate.Equal(decimal.RequireFromString("2000")) &&
				tx.AmountCrypto.Equal(decimal.RequireFromString("0.05"))
		})).Return(nil)

		_, err := f.service.CreatePayment(context.Background(), "psp-100", merchantID, amountFiat, "USD")

		assert.NoError(t, err)
		f.cryptoRepo.AssertExpectations(t)
	})

	t.Run("merchant without a wallet is rejected", func(t *testing.T) {
		f := newCryptoFixture(t)
		f.cryptoRepo.On("GetByPSPTransactionID", mock.Anything, "psp-100").Return(nil, nil)
		f.rates.On("GetRate", mock.Anything, "USD", "ETH").
			Return(decimal.RequireFromString("2000"), nil)
		f.walletRepo.On("GetByMerchantID", mock.Anything, merchantID).Return(nil, nil)

		_, err := f.service.CreatePayment(context.Background(), "psp-100", merchantID, amountFiat, "USD")

		assert.ErrorIs(t, err, domainErr.ErrWalletNotFound)
	})
}

func TestCryptoService_Confirm(t *testing.T) {
	merchantID := uuid.New()

	t.Run("wrong recipient is rejected and the intent is unchanged", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:          "0xhash",
				Recipient:     "0x000000000000000000000000000000000000dead",
				Amount:        intent.AmountCrypto,
				Confirmations: 20,
			}, nil)

		_, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		var validation *domainErr.ChainValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, "recipient", validation.Field)
		f.cryptoRepo.AssertNotCalled(t, "UpdateStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recipient match is case-insensitive", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:          "0xhash",
				Recipient:     "0xabcd1234ef567890abcd1234ef567890abcd1234",
				Amount:        intent.AmountCrypto,
				Confirmations: 3,
			}, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusPending, model.CryptoStatusConfirming, mock.Anything).
			Return(intent, nil)

		updated, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusConfirming, updated.Status)
	})

	t.Run("amount outside tolerance is rejected", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:      "0xhash",
				Recipient: testWalletAddress,
				// 2% short of 0.05 with a 1% tolerance
				Amount:        decimal.RequireFromString("0.049"),
				Confirmations: 20,
			}, nil)

		_, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		var validation *domainErr.ChainValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
	})

	t.Run("amount within tolerance is accepted", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:          "0xhash",
				Recipient:     testWalletAddress,
				Amount:        decimal.RequireFromString("0.0496"),
				Confirmations: 3,
			}, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusPending, model.CryptoStatusConfirming, mock.Anything).
			Return(intent, nil)

		updated, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusConfirming, updated.Status)
		assert.Equal(t, 3, updated.Confirmations)
		assert.NotNil(t, updated.TxHash)
	})

	t.Run("enough confirmations completes immediately", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:          "0xhash",
				Recipient:     testWalletAddress,
				Amount:        intent.AmountCrypto,
				Confirmations: 12,
			}, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusPending, model.CryptoStatusCompleted, mock.Anything).
			Return(intent, nil)

		updated, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusCompleted, updated.Status)
		assert.NotNil(t, updated.CompletedAt)
	})

	t.Run("a cancelled intent can still be confirmed", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		intent.Status = model.CryptoStatusCancelled
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetTransaction", mock.Anything, "0xhash").
			Return(&provider.ChainTransaction{
				Hash:          "0xhash",
				Recipient:     testWalletAddress,
				Amount:        intent.AmountCrypto,
				Confirmations: 12,
			}, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusCancelled, model.CryptoStatusCompleted, mock.Anything).
			Return(intent, nil)

		updated, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusCompleted, updated.Status)
	})

	t.Run("a completed intent cannot be confirmed again", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		intent.Status = model.CryptoStatusCompleted
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)

		_, err := f.service.Confirm(context.Background(), "cp_abc", "0xhash")

		var transition *domainErr.InvalidTransitionError
		assert.ErrorAs(t, err, &transition)
		f.explorer.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
	})
}

func TestCryptoService_Capture(t *testing.T) {
	merchantID := uuid.New()

	confirmingIntent := func(f *cryptoFixture, t *testing.T) *model.CryptoTransaction {
		intent := f.pendingIntent(t, merchantID)
		intent.Status = model.CryptoStatusConfirming
		encrypted, err := f.encryption.Encrypt("0xhash")
		assert.NoError(t, err)
		intent.TxHash = &encrypted
		return intent
	}

	t.Run("below threshold is a no-op", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := confirmingIntent(f, t)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetConfirmations", mock.Anything, "0xhash").Return(5, nil)

		got, err := f.service.Capture(context.Background(), "cp_abc")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusConfirming, got.Status)
		f.cryptoRepo.AssertNotCalled(t, "UpdateStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("threshold reached captures the intent", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := confirmingIntent(f, t)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.explorer.On("GetConfirmations", mock.Anything, "0xhash").Return(12, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusConfirming, model.CryptoStatusCaptured, mock.Anything).
			Return(intent, nil)

		got, err := f.service.Capture(context.Background(), "cp_abc")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusCaptured, got.Status)
		assert.Equal(t, 12, got.Confirmations)
	})
}

func TestCryptoService_Expire(t *testing.T) {
	merchantID := uuid.New()

	t.Run("not yet due", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)

		_, err := f.service.Expire(context.Background(), "cp_abc")

		assert.Error(t, err)
		f.cryptoRepo.AssertNotCalled(t, "UpdateStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("past deadline expires", func(t *testing.T) {
		f := newCryptoFixture(t)
		intent := f.pendingIntent(t, merchantID)
		intent.ExpiresAt = testNow.Add(-time.Minute)
		f.cryptoRepo.On("GetByCryptoPaymentID", mock.Anything, "cp_abc").Return(intent, nil)
		f.cryptoRepo.On("UpdateStatus", mock.Anything, "cp_abc",
			model.CryptoStatusPending, model.CryptoStatusExpired, mock.Anything).
			Return(intent, nil)

		got, err := f.service.Expire(context.Background(), "cp_abc")

		assert.NoError(t, err)
		assert.Equal(t, model.CryptoStatusExpired, got.Status)
	})
}

func TestCryptoService_GetStatus(t *testing.T) {
	f := newCryptoFixture(t)
	f.cryptoRepo.On("GetByPSPTransactionID", mock.Anything, "psp-missing").Return(nil, nil)

	_, err := f.service.GetStatus(context.Background(), "psp-missing")

	assert.ErrorIs(t, err, domainErr.ErrPaymentNotFound)
}
