package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/usecase"
)

// PaypalHandler exposes the PayPal settlement rail.
type PaypalHandler struct {
	paypalOrders *usecase.PaypalService
	logger       *zap.Logger
}

func NewPaypalHandler(paypalOrders *usecase.PaypalService, logger *zap.Logger) *PaypalHandler {
	return &PaypalHandler{paypalOrders: paypalOrders, logger: logger}
}

type createPaypalOrderRequest struct {
	PSPTransactionID string `json:"psp_transaction_id" validate:"required,max=100"`
	MerchantID       string `json:"merchant_id" validate:"required,uuid"`
	Amount           string `json:"amount" validate:"required"`
	Currency         string `json:"currency" validate:"required,len=3"`
	ReturnURL        string `json:"return_url" validate:"required,url"`
	CancelURL        string `json:"cancel_url" validate:"required,url"`
}

// CreateOrder handles POST /api/v1/paypal/orders. Idempotent on
// psp_transaction_id: retries return the existing order with a fresh
// approval URL.
func (h *PaypalHandler) CreateOrder(c echo.Context) error {
	var req createPaypalOrderRequest
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

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a positive decimal"})
	}

	order, err := h.paypalOrders.CreateOrder(c.Request().Context(),
		req.PSPTransactionID, merchantID, amount, req.Currency, req.ReturnURL, req.CancelURL)
	if err != nil {
		h.logger.Error("Failed to create PayPal order",
			zap.String("psp_transaction_id", req.PSPTransactionID),
			zap.Error(err))
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, order)
}

// CaptureOrder handles POST /api/v1/paypal/orders/:pspTransactionID/capture
func (h *PaypalHandler) CaptureOrder(c echo.Context) error {
	order, err := h.paypalOrders.CaptureOrder(c.Request().Context(), c.Param("pspTransactionID"))
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, order)
}

// GetOrder handles GET /api/v1/paypal/orders/:pspTransactionID
func (h *PaypalHandler) GetOrder(c echo.Context) error {
	order, err := h.paypalOrders.GetTransaction(c.Request().Context(), c.Param("pspTransactionID"))
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, order)
}
