package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/meridianpay/payments/internal/domain/model"
	"github.com/meridianpay/payments/internal/domain/provider"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *model.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Reserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) CaptureReserved(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) Release(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*model.Account, error) {
	args := m.Called(ctx, accountID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) FinalizeCapture(ctx context.Context, merchantAccountID, customerAccountID uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, merchantAccountID, customerAccountID, amount)
	return args.Error(0)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Record(ctx context.Context, action, subjectID, actorIP, result string, details map[string]interface{}) {
	m.Called(ctx, action, subjectID, actorIP, result, details)
}

// newAuditMock returns an audit mock that accepts any record. Tests that
// assert on audit results set expectations explicitly instead.
func newAuditMock() *MockAuditRepository {
	audit := new(MockAuditRepository)
	audit.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	return audit
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*model.Transaction, error) {
	args := m.Called(ctx, externalPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ExistsByStan(ctx context.Context, stan string) (bool, error) {
	args := m.Called(ctx, stan)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TransactionStatus, at time.Time) (*model.Transaction, error) {
	args := m.Called(ctx, id, from, to, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	tx := args.Get(0).(*model.Transaction)
	tx.Status = to
	return tx, args.Error(1)
}

func (m *MockTransactionRepository) LinkCustomer(ctx context.Context, id uuid.UUID, cardID, customerAccountID, customerID uuid.UUID) (*model.Transaction, error) {
	args := m.Called(ctx, id, cardID, customerAccountID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) ListAuthorizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

// MockCardRepository is a mock implementation of CardRepository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

// MockCardTokenRepository is a mock implementation of CardTokenRepository
type MockCardTokenRepository struct {
	mock.Mock
}

func (m *MockCardTokenRepository) Create(ctx context.Context, token *model.CardToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockCardTokenRepository) GetByToken(ctx context.Context, token string) (*model.CardToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CardToken), args.Error(1)
}

func (m *MockCardTokenRepository) GetLiveByTransactionID(ctx context.Context, transactionID uuid.UUID, now time.Time) (*model.CardToken, error) {
	args := m.Called(ctx, transactionID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CardToken), args.Error(1)
}

func (m *MockCardTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCardTokenRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCardTokenRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockCryptoRepository is a mock implementation of CryptoRepository
type MockCryptoRepository struct {
	mock.Mock
}

func (m *MockCryptoRepository) Create(ctx context.Context, tx *model.CryptoTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockCryptoRepository) GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.CryptoTransaction, error) {
	args := m.Called(ctx, pspTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CryptoTransaction), args.Error(1)
}

func (m *MockCryptoRepository) GetByCryptoPaymentID(ctx context.Context, cryptoPaymentID string) (*model.CryptoTransaction, error) {
	args := m.Called(ctx, cryptoPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CryptoTransaction), args.Error(1)
}

func (m *MockCryptoRepository) UpdateStatus(ctx context.Context, cryptoPaymentID string, from, to model.CryptoStatus, mutate func(*model.CryptoTransaction)) (*model.CryptoTransaction, error) {
	args := m.Called(ctx, cryptoPaymentID, from, to, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	tx := args.Get(0).(*model.CryptoTransaction)
	tx.Status = to
	if mutate != nil {
		mutate(tx)
	}
	return tx, args.Error(1)
}

func (m *MockCryptoRepository) ListByStatus(ctx context.Context, status model.CryptoStatus, limit int) ([]*model.CryptoTransaction, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CryptoTransaction), args.Error(1)
}

func (m *MockCryptoRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.CryptoTransaction, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CryptoTransaction), args.Error(1)
}

// MockMerchantWalletRepository is a mock implementation of MerchantWalletRepository
type MockMerchantWalletRepository struct {
	mock.Mock
}

func (m *MockMerchantWalletRepository) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*model.MerchantWallet, error) {
	args := m.Called(ctx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MerchantWallet), args.Error(1)
}

// MockPaypalRepository is a mock implementation of PaypalRepository
type MockPaypalRepository struct {
	mock.Mock
}

func (m *MockPaypalRepository) Create(ctx context.Context, tx *model.PaypalTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockPaypalRepository) GetByPSPTransactionID(ctx context.Context, pspTransactionID string) (*model.PaypalTransaction, error) {
	args := m.Called(ctx, pspTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaypalTransaction), args.Error(1)
}

func (m *MockPaypalRepository) UpdateStatus(ctx context.Context, pspTransactionID string, from, to model.PaypalStatus, mutate func(*model.PaypalTransaction)) (*model.PaypalTransaction, error) {
	args := m.Called(ctx, pspTransactionID, from, to, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	tx := args.Get(0).(*model.PaypalTransaction)
	tx.Status = to
	if mutate != nil {
		mutate(tx)
	}
	return tx, args.Error(1)
}

// MockRateSource is a mock implementation of provider.RateSource
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) GetRate(ctx context.Context, fiatCurrency, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, fiatCurrency, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockChainExplorer is a mock implementation of provider.ChainExplorer
type MockChainExplorer struct {
	mock.Mock
}

func (m *MockChainExplorer) GetTransaction(ctx context.Context, hash string) (*provider.ChainTransaction, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ChainTransaction), args.Error(1)
}

func (m *MockChainExplorer) GetConfirmations(ctx context.Context, hash string) (int, error) {
	args := m.Called(ctx, hash)
	return args.Int(0), args.Error(1)
}

func (m *MockChainExplorer) ListTransactionsTo(ctx context.Context, address string, limit int) ([]provider.ChainTransaction, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.ChainTransaction), args.Error(1)
}

// MockPayPalClient is a mock implementation of provider.PayPalClient
type MockPayPalClient struct {
	mock.Mock
}

func (m *MockPayPalClient) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *MockPayPalClient) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *MockPayPalClient) CaptureOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}
