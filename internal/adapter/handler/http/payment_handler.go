package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/domain/model"
	"github.com/meridianpay/payments/internal/usecase"
)

// PaymentHandler exposes the bank-rail payment lifecycle: create, authorize
// with a single-use card token, capture and cancel.
type PaymentHandler struct {
	transactions *usecase.TransactionService
	tokens       *usecase.TokenService
	ledger       *usecase.LedgerService
	logger       *zap.Logger
}

func NewPaymentHandler(
	transactions *usecase.TransactionService,
	tokens *usecase.TokenService,
	ledger *usecase.LedgerService,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		transactions: transactions,
		tokens:       tokens,
		ledger:       ledger,
		logger:       logger,
	}
}

type createPaymentRequest struct {
	MerchantAccountID string `json:"merchant_account_id" validate:"required,uuid"`
	Amount            string `json:"amount" validate:"required"`
	Currency          string `json:"currency" validate:"required,len=3"`
	Stan              string `json:"stan" validate:"required,max=50"`
	ExternalPaymentID string `json:"external_payment_id" validate:"required,max=100"`
	ExpiryMinutes     int    `json:"expiry_minutes" validate:"omitempty,min=1,max=120"`
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	merchantAccountID, err := uuid.Parse(req.MerchantAccountID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid merchant_account_id"})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a positive decimal"})
	}

	var window time.Duration
	if req.ExpiryMinutes > 0 {
		window = time.Duration(req.ExpiryMinutes) * time.Minute
	}

	transaction, err := h.transactions.Create(c.Request().Context(),
		merchantAccountID, amount, req.Currency, req.Stan, req.ExternalPaymentID, window)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, transaction)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction ID"})
	}

	transaction, err := h.transactions.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, transaction)
}

type authorizePaymentRequest struct {
	CardID            string `json:"card_id" validate:"required,uuid"`
	CustomerAccountID string `json:"customer_account_id" validate:"required,uuid"`
	CustomerID        string `json:"customer_id" validate:"required,uuid"`
	CVV               string `json:"cvv" validate:"required,min=3,max=4,numeric"`
}

type authorizePaymentResponse struct {
	Transaction    *model.Transaction `json:"transaction"`
	Token          string             `json:"token"`
	TokenExpiresAt time.Time          `json:"token_expires_at"`
}

// AuthorizePayment handles POST /api/v1/payments/:id/authorize. It links the
// customer, reserves the funds, issues the single-use token and moves the
// transaction to AUTHORIZED. A reservation that cannot be covered fails the
// transaction instead.
func (h *PaymentHandler) AuthorizePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction ID"})
	}

	var req authorizePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid card_id"})
	}
	customerAccountID, err := uuid.Parse(req.CustomerAccountID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer_account_id"})
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer_id"})
	}

	ctx := c.Request().Context()

	open, err := h.transactions.IsValid(ctx, id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}
	if !open {
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction is not open for authorization"})
	}

	transaction, err := h.transactions.LinkCustomer(ctx, id, cardID, customerAccountID, customerID)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	if _, err := h.ledger.Reserve(ctx, customerAccountID, transaction.Amount); err != nil {
		status := errorStatus(err)
		if status == http.StatusUnprocessableEntity || status == http.StatusNotFound {
			if _, ferr := h.transactions.Transition(ctx, id, model.TransactionStatusFailed); ferr != nil {
				h.logger.Error("Failed to fail transaction after rejected reservation",
					zap.String("transaction_id", id.String()),
					zap.Error(ferr))
			}
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}

	token, err := h.tokens.IssueToken(ctx, cardID, id, req.CVV)
	if err != nil {
		// Compensate the reservation; the transaction stays PENDING
		if _, rerr := h.ledger.Release(ctx, customerAccountID, transaction.Amount); rerr != nil {
			h.logger.Error("Failed to release reservation after token failure",
				zap.String("transaction_id", id.String()),
				zap.Error(rerr))
		}
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	transaction, err = h.transactions.Transition(ctx, id, model.TransactionStatusAuthorized)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, authorizePaymentResponse{
		Transaction:    transaction,
		Token:          token.Token,
		TokenExpiresAt: token.ExpiresAt,
	})
}

type capturePaymentRequest struct {
	Token string `json:"token" validate:"required"`
}

// CapturePayment handles POST /api/v1/payments/:id/capture. The token is
// consumed, the reserved funds settle to the merchant and the transaction
// moves to CAPTURED.
func (h *PaymentHandler) CapturePayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction ID"})
	}

	var req capturePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()

	transaction, err := h.transactions.Get(ctx, id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}
	if transaction.CustomerAccountID == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction has no linked customer"})
	}

	token, err := h.tokens.Validate(ctx, req.Token, id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}
	if err := h.tokens.MarkUsed(ctx, token.ID); err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	if _, err := h.ledger.CaptureReserved(ctx, *transaction.CustomerAccountID, transaction.Amount); err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}
	if err := h.ledger.FinalizeCapture(ctx,
		transaction.MerchantAccountID, *transaction.CustomerAccountID, transaction.Amount); err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	transaction, err = h.transactions.Transition(ctx, id, model.TransactionStatusCaptured)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, transaction)
}

// CancelPayment handles POST /api/v1/payments/:id/cancel. An authorized
// transaction releases its reservation before moving to CANCELLED.
func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction ID"})
	}

	ctx := c.Request().Context()

	transaction, err := h.transactions.Get(ctx, id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	if transaction.Status == model.TransactionStatusAuthorized && transaction.CustomerAccountID != nil {
		if _, err := h.ledger.Release(ctx, *transaction.CustomerAccountID, transaction.Amount); err != nil {
			return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
		}
	}

	transaction, err = h.transactions.Transition(ctx, id, model.TransactionStatusCancelled)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, transaction)
}
