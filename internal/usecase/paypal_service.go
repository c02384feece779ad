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
	"github.com/meridianpay/payments/internal/domain/provider"
	domainRepo "github.com/meridianpay/payments/internal/domain/repository"
	"github.com/meridianpay/payments/internal/infrastructure/crypto"
	"github.com/meridianpay/payments/internal/middleware/correlation"
)

// PaypalOrder is the caller-facing view of a PayPal payment. Encrypted
// columns are never exposed, only status/amount/currency/timestamps.
type PaypalOrder struct {
	PSPTransactionID string             `json:"psp_transaction_id"`
	Status           model.PaypalStatus `json:"status"`
	Amount           decimal.Decimal    `json:"amount"`
	Currency         string             `json:"currency"`
	ApprovalURL      string             `json:"approval_url,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// PaypalService is the settlement adapter for the PayPal rail, idempotent on
// the caller-supplied pspTransactionId.
type PaypalService struct {
	paypalRepo domainRepo.PaypalRepository
	auditRepo  domainRepo.AuditRepository
	client     provider.PayPalClient
	encryption crypto.EncryptionService
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaypalService creates a new PayPal settlement service instance
func NewPaypalService(
	paypalRepo domainRepo.PaypalRepository,
	auditRepo domainRepo.AuditRepository,
	client provider.PayPalClient,
	encryption crypto.EncryptionService,
	logger *zap.Logger,
) *PaypalService {
	return &PaypalService{
		paypalRepo: paypalRepo,
		auditRepo:  auditRepo,
		client:     client,
		encryption: encryption,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *PaypalService) view(transaction *model.PaypalTransaction, approvalURL string) *PaypalOrder {
	return &PaypalOrder{
		PSPTransactionID: transaction.PSPTransactionID,
		Status:           transaction.Status,
		Amount:           transaction.Amount,
		Currency:         transaction.Currency,
		ApprovalURL:      approvalURL,
		CompletedAt:      transaction.CompletedAt,
		CreatedAt:        transaction.CreatedAt,
	}
}

// CreateOrder creates a remote PayPal order and persists the encrypted order
// id. Idempotent on pspTransactionId: an existing record is returned
// unchanged, without a second remote order.
func (s *PaypalService) CreateOrder(ctx context.Context, pspTransactionID string, merchantID uuid.UUID, amount decimal.Decimal, currency, returnURL, cancelURL string) (*PaypalOrder, error) {
	existing, err := s.paypalRepo.GetByPSPTransactionID(ctx, pspTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing != nil {
		s.logger.Info("PayPal order already exists (idempotency)",
			zap.String("psp_transaction_id", pspTransactionID),
			zap.String("status", string(existing.Status)))

		approvalURL := ""
		if existing.Status == model.PaypalStatusPending {
			if orderID, err := s.encryption.Decrypt(existing.OrderID); err == nil {
				if remote, err := s.client.GetOrder(ctx, orderID); err == nil {
					approvalURL = remote.ApprovalURL
				}
			}
		}
		return s.view(existing, approvalURL), nil
	}

	remote, err := s.client.CreateOrder(ctx, &provider.CreateOrderRequest{
		ReferenceID: pspTransactionID,
		Amount:      amount,
		Currency:    currency,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create remote order: %w", err)
	}

	encryptedOrderID, err := s.encryption.Encrypt(remote.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt order id: %w", err)
	}

	transaction := &model.PaypalTransaction{
		ID:               uuid.New(),
		PSPTransactionID: pspTransactionID,
		MerchantID:       merchantID,
		OrderID:          encryptedOrderID,
		Amount:           amount,
		Currency:         currency,
		Status:           model.PaypalStatusPending,
	}

	if err := s.paypalRepo.Create(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	s.logger.Info("PayPal order created",
		zap.String("psp_transaction_id", pspTransactionID),
		zap.String("amount", amount.String()),
		zap.String("currency", currency))

	s.auditRepo.Record(ctx, "paypal.create_order", pspTransactionID,
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{
			"amount":         amount.String(),
			"currency":       currency,
			"correlation_id": correlation.FromContext(ctx),
		})

	return s.view(transaction, remote.ApprovalURL), nil
}

// CaptureOrder executes the remote capture. A remote "already captured"
// answer triggers a reconcile: the remote order is re-queried and the local
// row moves to CAPTURED if the remote side reports completion, so a client
// retry cannot leave a stuck PENDING row.
func (s *PaypalService) CaptureOrder(ctx context.Context, pspTransactionID string) (*PaypalOrder, error) {
	transaction, err := s.paypalRepo.GetByPSPTransactionID(ctx, pspTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if transaction == nil {
		return nil, domainErr.ErrPaymentNotFound
	}

	if transaction.Status == model.PaypalStatusCaptured {
		// Duplicate submission is not an error
		return s.view(transaction, ""), nil
	}
	if transaction.Status != model.PaypalStatusPending {
		return nil, domainErr.NewInvalidTransitionError("paypal_transaction",
			string(transaction.Status), string(model.PaypalStatusCaptured))
	}

	orderID, err := s.encryption.Decrypt(transaction.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt order id: %w", err)
	}

	remote, err := s.client.CaptureOrder(ctx, orderID)
	if err != nil {
		var duplicate *provider.DuplicateCaptureError
		if errors.As(err, &duplicate) {
			return s.reconcileCapture(ctx, transaction, orderID)
		}
		s.auditRepo.Record(ctx, "paypal.capture_order", pspTransactionID,
			correlation.ActorIP(ctx), model.AuditResultError,
			map[string]interface{}{"reason": err.Error()})
		return nil, fmt.Errorf("failed to capture remote order: %w", err)
	}

	updated, err := s.completeCapture(ctx, transaction, remote)
	if err != nil {
		return nil, err
	}

	s.logger.Info("PayPal order captured",
		zap.String("psp_transaction_id", pspTransactionID))

	s.auditRepo.Record(ctx, "paypal.capture_order", pspTransactionID,
		correlation.ActorIP(ctx), model.AuditResultSuccess, nil)

	return s.view(updated, ""), nil
}

// reconcileCapture resolves a duplicate-capture response against the remote
// order state.
func (s *PaypalService) reconcileCapture(ctx context.Context, transaction *model.PaypalTransaction, orderID string) (*PaypalOrder, error) {
	remote, err := s.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-query remote order: %w", err)
	}

	if remote.Status != provider.OrderStatusCompleted {
		return nil, fmt.Errorf("remote order in unexpected state %s after duplicate capture", remote.Status)
	}

	s.logger.Info("Reconciling duplicate capture from remote state",
		zap.String("psp_transaction_id", transaction.PSPTransactionID))

	updated, err := s.completeCapture(ctx, transaction, remote)
	if err != nil {
		return nil, err
	}

	s.auditRepo.Record(ctx, "paypal.capture_order", transaction.PSPTransactionID,
		correlation.ActorIP(ctx), model.AuditResultSuccess,
		map[string]interface{}{"reconciled": true})

	return s.view(updated, ""), nil
}

func (s *PaypalService) completeCapture(ctx context.Context, transaction *model.PaypalTransaction, remote *provider.Order) (*model.PaypalTransaction, error) {
	var encryptedPayerID, encryptedCaptureID *string

	if remote.PayerID != "" {
		encrypted, err := s.encryption.Encrypt(remote.PayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payer id: %w", err)
		}
		encryptedPayerID = &encrypted
	}
	if remote.CaptureID != "" {
		encrypted, err := s.encryption.Encrypt(remote.CaptureID)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt capture id: %w", err)
		}
		encryptedCaptureID = &encrypted
	}

	completedAt := remote.CompletedAt
	if completedAt == nil {
		at := s.now().UTC()
		completedAt = &at
	}

	updated, err := s.paypalRepo.UpdateStatus(ctx, transaction.PSPTransactionID,
		model.PaypalStatusPending, model.PaypalStatusCaptured,
		func(t *model.PaypalTransaction) {
			t.PayerID = encryptedPayerID
			t.CaptureID = encryptedCaptureID
			t.CompletedAt = completedAt
		})
	if err != nil {
		var transition *domainErr.InvalidTransitionError
		if errors.As(err, &transition) {
			// A concurrent capture won; read back the settled row
			current, getErr := s.paypalRepo.GetByPSPTransactionID(ctx, transaction.PSPTransactionID)
			if getErr == nil && current != nil && current.Status == model.PaypalStatusCaptured {
				return current, nil
			}
		}
		return nil, err
	}

	return updated, nil
}

// GetTransaction is the read-only status lookup for the caller's idempotency
// key.
func (s *PaypalService) GetTransaction(ctx context.Context, pspTransactionID string) (*PaypalOrder, error) {
	transaction, err := s.paypalRepo.GetByPSPTransactionID(ctx, pspTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if transaction == nil {
		return nil, domainErr.ErrPaymentNotFound
	}

	return s.view(transaction, ""), nil
}
