package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/usecase"
)

// CryptoHandler exposes the on-chain settlement rail.
type CryptoHandler struct {
	cryptoPayments *usecase.CryptoService
	logger         *zap.Logger
}

func NewCryptoHandler(cryptoPayments *usecase.CryptoService, logger *zap.Logger) *CryptoHandler {
	return &CryptoHandler{cryptoPayments: cryptoPayments, logger: logger}
}

type createCryptoPaymentRequest struct {
	PSPTransactionID string `json:"psp_transaction_id" validate:"required,max=100"`
	MerchantID       string `json:"merchant_id" validate:"required,uuid"`
	AmountFiat       string `json:"amount_fiat" validate:"required"`
	Currency         string `json:"currency" validate:"required,len=3"`
}

// CreatePayment handles POST /api/v1/crypto/payments. Idempotent on
// psp_transaction_id: posting the same ID again returns the existing payment.
func (h *CryptoHandler) CreatePayment(c echo.Context) error {
	var req createCryptoPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid merchant_id"})
	}

	amountFiat, err := decimal.NewFromString(req.AmountFiat)
	if err != nil || amountFiat.LessThanOrEqual(decimal.Zero) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_fiat must be a positive decimal"})
	}

	payment, err := h.cryptoPayments.CreatePayment(c.Request().Context(),
		req.PSPTransactionID, merchantID, amountFiat, req.Currency)
	if err != nil {
		h.logger.Error("Failed to create crypto payment",
			zap.String("psp_transaction_id", req.PSPTransactionID),
			zap.Error(err))
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, payment)
}

type confirmCryptoPaymentRequest struct {
	TxHash string `json:"tx_hash" validate:"required,max=200"`
}

// ConfirmPayment handles POST /api/v1/crypto/payments/:id/confirm, where :id
// is the crypto payment ID handed out at creation.
func (h *CryptoHandler) ConfirmPayment(c echo.Context) error {
	var req confirmCryptoPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	payment, err := h.cryptoPayments.Confirm(c.Request().Context(), c.Param("id"), req.TxHash)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, payment)
}

// CancelPayment handles POST /api/v1/crypto/payments/:id/cancel
func (h *CryptoHandler) CancelPayment(c echo.Context) error {
	payment, err := h.cryptoPayments.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, payment)
}

// GetStatus handles GET /api/v1/crypto/payments/:pspTransactionID
func (h *CryptoHandler) GetStatus(c echo.Context) error {
	payment, err := h.cryptoPayments.GetStatus(c.Request().Context(), c.Param("pspTransactionID"))
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, payment)
}
