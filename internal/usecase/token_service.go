package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
	"github.com/meridianpay/payments/internal/domain/model"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
)

// TokenTTL is the fixed lifetime of an ephemeral card token.
const TokenTTL = 15 * time.Minute

// TokenService issues and retires the single-use tokens binding a card to
// one transaction attempt. CVV material is held encrypted and scrubbed at
// the first use or sweep; this is a compliance requirement.
type TokenService struct {
	tokenRepo  domainRepo.CardTokenRepository
	cardRepo   domainRepo.CardRepository
	encryption crypto.EncryptionService
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenService creates a new token service instance
func NewTokenService(
	tokenRepo domainRepo.CardTokenRepository,
	cardRepo domainRepo.CardRepository,
	encryption crypto.EncryptionService,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo:  tokenRepo,
		cardRepo:   cardRepo,
		encryption: encryption,
		logger:     logger,
		now:        time.Now,
	}
}

// IssueToken binds the card to the transaction attempt for TokenTTL. When a
// live token already exists for the transaction it is returned unchanged
// (idempotent issuance).
func (s *TokenService) IssueToken(ctx context.Context, cardID, transactionID uuid.UUID, cvv string) (*model.CardToken, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up card: %w", err)
	}
	if card == nil {
		return nil, domainErr.NewInvalidCardError(cardID.String(), "card does not exist")
	}
	if !card.IsActive() {
		return nil, domainErr.NewInvalidCardError(cardID.String(), "card is not active")
	}

	now := s.now().UTC()

	existing, err := s.tokenRepo.GetLiveByTransactionID(ctx, transactionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing token: %w", err)
	}
	if existing != nil {
		s.logger.Info("Returning existing live token (idempotent issuance)",
			zap.String("transaction_id", transactionID.String()),
			zap.String("token_id", existing.ID.String()))
		return existing, nil
	}

	token := &model.CardToken{
		ID:            uuid.New(),
		CardID:        cardID,
		TransactionID: transactionID,
		Token:         strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", ""),
		ExpiresAt:     now.Add(TokenTTL),
	}

	if cvv != "" {
		encrypted, err := s.encryption.Encrypt(cvv)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt cvv: %w", err)
		}
		token.EncryptedCVV = &encrypted
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	s.logger.Info("Card token issued",
		zap.String("token_id", token.ID.String()),
		zap.String("card_id", cardID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

// Validate returns the token only if it matches the transaction, has not
// been used or soft-deleted, and has not expired. An expired token is lazily
// soft-deleted on read.
func (s *TokenService) Validate(ctx context.Context, tokenValue string, transactionID uuid.UUID) (*model.CardToken, error) {
	token, err := s.tokenRepo.GetByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domainErr.ErrTokenNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if token.TransactionID != transactionID {
		return nil, domainErr.ErrTokenNotFound
	}

	if token.IsUsed {
		return nil, domainErr.ErrTokenUsed
	}

	now := s.now().UTC()

	if token.DeletedAt != nil {
		return nil, domainErr.ErrTokenExpired
	}

	if token.IsExpired(now) {
		// Lazy cleanup: an expired token is retired the moment it is read
		if err := s.tokenRepo.SoftDelete(ctx, token.ID, now); err != nil {
			s.logger.Warn("Failed to soft-delete expired token",
				zap.String("token_id", token.ID.String()),
				zap.Error(err))
		}
		return nil, domainErr.ErrTokenExpired
	}

	return token, nil
}

// MarkUsed is a one-way transition; the token's CVV material is scrubbed in
// the same update so it can never authorize a second attempt.
func (s *TokenService) MarkUsed(ctx context.Context, tokenID uuid.UUID) error {
	if err := s.tokenRepo.MarkUsed(ctx, tokenID); err != nil {
		if errors.Is(err, domainErr.ErrTokenUsed) {
			return err
		}
		return fmt.Errorf("failed to mark token used: %w", err)
	}

	s.logger.Info("Token marked used", zap.String("token_id", tokenID.String()))
	return nil
}

// DecryptCVV exposes the cached CVV for the single authorization attempt.
func (s *TokenService) DecryptCVV(token *model.CardToken) (string, error) {
	if token.EncryptedCVV == nil {
		return "", domainErr.ErrTokenUsed
	}
	return s.encryption.Decrypt(*token.EncryptedCVV)
}

// Sweep soft-deletes all tokens past expiry and scrubs their CVV material.
// Defends against a caller that never completes the flow.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	swept, err := s.tokenRepo.SweepExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep tokens: %w", err)
	}

	if swept > 0 {
		s.logger.Info("Swept expired tokens", zap.Int64("count", swept))
	}

	return swept, nil
}
