package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource supplies the current fiat -> crypto exchange rate. Callers fall
// back to a configured constant when the source is unavailable.
type RateSource interface {
	GetRate(ctx context.Context, fiatCurrency, asset string) (decimal.Decimal, error)
}

// ChainTransaction is one on-chain transfer as reported by the explorer.
type ChainTransaction struct {
	Hash          string          `json:"hash"`
	Recipient     string          `json:"recipient"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ChainExplorer is the read-only blockchain query source.
type ChainExplorer interface {
	// GetTransaction returns the on-chain transaction for the given hash.
	GetTransaction(ctx context.Context, hash string) (*ChainTransaction, error)

	// GetConfirmations returns the current confirmation count for a hash.
	GetConfirmations(ctx context.Context, hash string) (int, error)

	// ListTransactionsTo returns recent transfers to the given address.
	ListTransactionsTo(ctx context.Context, address string, limit int) ([]ChainTransaction, error)
}

// CreateOrderRequest is a PayPal order creation request.
type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

// Order is the remote PayPal order state.
type Order struct {
	OrderID     string
	Status      string
	ApprovalURL string
	PayerID     string
	CaptureID   string
	CompletedAt *time.Time
}

// PayPalClient wraps the PayPal order API.
type PayPalClient interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// CaptureOrder executes the remote capture. A duplicate capture comes
	// back as *DuplicateCaptureError so the caller can reconcile instead
	// of failing.
	CaptureOrder(ctx context.Context, orderID string) (*Order, error)
}

// PayPal order status values as reported by the remote API.
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"
)

// ProviderError is a failure reported by an external provider.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// DuplicateCaptureError signals the remote side already captured the order
// (PayPal answers HTTP 422 ORDER_ALREADY_CAPTURED).
type DuplicateCaptureError struct {
	OrderID string
}

func (e *DuplicateCaptureError) Error() string {
	return "order already captured: " + e.OrderID
}
