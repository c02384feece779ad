package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
)

const testEncryptionKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func newTestEncryption(t *testing.T) crypto.EncryptionService {
	t.Helper()
	service, err := crypto.NewAESEncryptionService(testEncryptionKey)
	assert.NoError(t, err)
	return service
}

func newTokenService(tokenRepo *MockCardTokenRepository, cardRepo *MockCardRepository, t *testing.T) *TokenService {
	service := NewTokenService(tokenRepo, cardRepo, newTestEncryption(t), zap.NewNop())
	service.now = func() time.Time { return testNow }
	return service
}

func activeCard(id uuid.UUID) *model.Card {
	return &model.Card{ID: id, Status: model.CardStatusActive, PanLast4: "4242"}
}

func TestTokenService_IssueToken(t *testing.T) {
	cardID := uuid.New()
	transactionID := uuid.New()

	t.Run("issues a fresh token bound to the transaction", func(t *testing.T) {
		cardRepo := new(MockCardRepository)
		cardRepo.On("GetByID", mock.Anything, cardID).Return(activeCard(cardID), nil)
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetLiveByTransactionID", mock.Anything, transactionID, testNow).Return(nil, nil)
		tokenRepo.On("Create", mock.Anything, mock.MatchedBy(func(token *model.CardToken) bool {
			return token.CardID == cardID &&
				token.TransactionID == transactionID &&
				len(token.Token) == 64 &&
				token.EncryptedCVV != nil &&
				token.ExpiresAt.Equal(testNow.Add(TokenTTL))
		})).Return(nil)

		service := newTokenService(tokenRepo, cardRepo, t)

		token, err := service.IssueToken(context.Background(), cardID, transactionID, "123")

		assert.NoError(t, err)
		assert.NotEqual(t, "123", *token.EncryptedCVV)
		tokenRepo.AssertExpectations(t)
	})

	t.Run("returns the existing live token unchanged", func(t *testing.T) {
		existing := &model.CardToken{
			ID:            uuid.New(),
			CardID:        cardID,
			TransactionID: transactionID,
			Token:         "existing-token",
			ExpiresAt:     testNow.Add(10 * time.Minute),
		}
		cardRepo := new(MockCardRepository)
		cardRepo.On("GetByID", mock.Anything, cardID).Return(activeCard(cardID), nil)
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetLiveByTransactionID", mock.Anything, transactionID, testNow).Return(existing, nil)

		service := newTokenService(tokenRepo, cardRepo, t)

		token, err := service.IssueToken(context.Background(), cardID, transactionID, "123")

		assert.NoError(t, err)
		assert.Equal(t, existing.Token, token.Token)
		tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects a missing card", func(t *testing.T) {
		cardRepo := new(MockCardRepository)
		cardRepo.On("GetByID", mock.Anything, cardID).Return(nil, nil)

		service := newTokenService(new(MockCardTokenRepository), cardRepo, t)

		_, err := service.IssueToken(context.Background(), cardID, transactionID, "123")

		var card *domainErr.InvalidCardError
		assert.ErrorAs(t, err, &card)
	})

	t.Run("rejects a blocked card", func(t *testing.T) {
		blocked := activeCard(cardID)
		blocked.Status = model.CardStatusBlocked
		cardRepo := new(MockCardRepository)
		cardRepo.On("GetByID", mock.Anything, cardID).Return(blocked, nil)

		service := newTokenService(new(MockCardTokenRepository), cardRepo, t)

		_, err := service.IssueToken(context.Background(), cardID, transactionID, "123")

		var card *domainErr.InvalidCardError
		assert.ErrorAs(t, err, &card)
	})
}

func TestTokenService_Validate(t *testing.T) {
	transactionID := uuid.New()

	t.Run("live token validates", func(t *testing.T) {
		token := &model.CardToken{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Token:         "tok",
			ExpiresAt:     testNow.Add(time.Minute),
		}
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetByToken", mock.Anything, "tok").Return(token, nil)

		service := newTokenService(tokenRepo, new(MockCardRepository), t)

		got, err := service.Validate(context.Background(), "tok", transactionID)

		assert.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)
	})

	t.Run("token bound to another transaction is not found", func(t *testing.T) {
		token := &model.CardToken{
			ID:            uuid.New(),
			TransactionID: uuid.New(),
			Token:         "tok",
			ExpiresAt:     testNow.Add(time.Minute),
		}
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetByToken", mock.Anything, "tok").Return(token, nil)

		service := newTokenService(tokenRepo, new(MockCardRepository), t)

		_, err := service.Validate(context.Background(), "tok", transactionID)

		assert.ErrorIs(t, err, domainErr.ErrTokenNotFound)
	})

	t.Run("used token is rejected", func(t *testing.T) {
		token := &model.CardToken{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Token:         "tok",
			IsUsed:        true,
			ExpiresAt:     testNow.Add(time.Minute),
		}
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetByToken", mock.Anything, "tok").Return(token, nil)

		service := newTokenService(tokenRepo, new(MockCardRepository), t)

		_, err := service.Validate(context.Background(), "tok", transactionID)

		assert.ErrorIs(t, err, domainErr.ErrTokenUsed)
	})

	t.Run("expired token is rejected and lazily retired", func(t *testing.T) {
		token := &model.CardToken{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Token:         "tok",
			ExpiresAt:     testNow.Add(-time.Second),
		}
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("GetByToken", mock.Anything, "tok").Return(token, nil)
		tokenRepo.On("SoftDelete", mock.Anything, token.ID, testNow).Return(nil)

		service := newTokenService(tokenRepo, new(MockCardRepository), t)

		_, err := service.Validate(context.Background(), "tok", transactionID)

		assert.ErrorIs(t, err, domainErr.ErrTokenExpired)
		tokenRepo.AssertExpectations(t)
	})
}

func TestTokenService_MarkUsed(t *testing.T) {
	tokenID := uuid.New()

	t.Run("second use is rejected", func(t *testing.T) {
		tokenRepo := new(MockCardTokenRepository)
		tokenRepo.On("MarkUsed", mock.Anything, tokenID).Return(domainErr.ErrTokenUsed)

		service := newTokenService(tokenRepo, new(MockCardRepository), t)

		err := service.MarkUsed(context.Background(), tokenID)

		assert.ErrorIs(t, err, domainErr.ErrTokenUsed)
	})
}

func TestTokenService_DecryptCVV(t *testing.T) {
	encryption := newTestEncryption(t)
	encrypted, err := encryption.Encrypt("987")
	assert.NoError(t, err)

	service := NewTokenService(new(MockCardTokenRepository), new(MockCardRepository), encryption, zap.NewNop())

	cvv, err := service.DecryptCVV(&model.CardToken{EncryptedCVV: &encrypted})

	assert.NoError(t, err)
	assert.Equal(t, "987", cvv)
}

func TestTokenService_Sweep(t *testing.T) {
	tokenRepo := new(MockCardTokenRepository)
	tokenRepo.On("SweepExpired", mock.Anything, testNow).Return(int64(5), nil)

	service := newTokenService(tokenRepo, new(MockCardRepository), t)

	swept, err := service.Sweep(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(5), swept)
}
