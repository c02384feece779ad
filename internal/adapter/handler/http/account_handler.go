package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridianpay/payments/internal/usecase"
)

// AccountHandler exposes ledger account state and funds checks.
type AccountHandler struct {
	ledger *usecase.LedgerService
	logger *zap.Logger
}

func NewAccountHandler(ledger *usecase.LedgerService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledger, logger: logger}
}

type createAccountRequest struct {
	Currency   string `json:"currency" validate:"required,len=3"`
	Deposit    string `json:"deposit" validate:"required"`
	IsMerchant bool   `json:"is_merchant"`
}

// CreateAccount handles POST /api/v1/accounts
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	deposit, err := decimal.NewFromString(req.Deposit)
	if err != nil || deposit.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deposit must be a non-negative decimal"})
	}

	account, err := h.ledger.CreateAccount(c.Request().Context(), req.Currency, deposit, req.IsMerchant)
	if err != nil {
		h.logger.Error("Failed to create account", zap.Error(err))
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, account)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandler) GetAccount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	account, err := h.ledger.GetAccount(c.Request().Context(), id)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, account)
}

// CanReserve handles GET /api/v1/accounts/:id/can-reserve?amount=. Advisory
// only; the authoritative check happens under the row lock inside Reserve.
func (h *AccountHandler) CanReserve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a positive decimal"})
	}

	allowed, err := h.ledger.CanReserve(c.Request().Context(), id, amount)
	if err != nil {
		return c.JSON(errorStatus(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{"allowed": allowed})
}
