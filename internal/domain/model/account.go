package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErr "github.com/meridianpay/payments/internal/domain/errors"
)

// Account represents one party's funds at the bank. Liquid funds live in
// Available/Reserved/PendingCapture; Balance is the lifetime settled total
// (credited on merchant settlement, never debited on the customer side).
type Account struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Balance        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	Available      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"available"`
	Reserved       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"reserved"`
	PendingCapture decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"pending_capture"`
	IsMerchant     bool            `gorm:"not null;default:false" json:"is_merchant"`
	CreatedAt      time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// Reserve moves amount from Available to Reserved. The caller must hold the
// row lock; the precondition check and the mutation happen together so a
// failed check leaves the account untouched.
func (a *Account) Reserve(amount decimal.Decimal) error {
	if a.Available.LessThan(amount) {
		return domainErr.NewInsufficientFundsError("available", amount, a.Available)
	}
	a.Available = a.Available.Sub(amount)
	a.Reserved = a.Reserved.Add(amount)
	return nil
}

// CaptureReserved moves amount from Reserved to PendingCapture on the same
// account. Settlement to the counterparty is a separate finalize step.
func (a *Account) CaptureReserved(amount decimal.Decimal) error {
	if a.Reserved.LessThan(amount) {
		return domainErr.NewInsufficientFundsError("reserved", amount, a.Reserved)
	}
	a.Reserved = a.Reserved.Sub(amount)
	a.PendingCapture = a.PendingCapture.Add(amount)
	return nil
}

// Release is the compensating rollback for Reserve.
func (a *Account) Release(amount decimal.Decimal) error {
	if a.Reserved.LessThan(amount) {
		return domainErr.NewInsufficientFundsError("reserved", amount, a.Reserved)
	}
	a.Reserved = a.Reserved.Sub(amount)
	a.Available = a.Available.Add(amount)
	return nil
}

// FinalizeCapture settles amount from the customer's PendingCapture into the
// merchant's Balance. The only mutation that spans two accounts; both rows
// must be locked by the enclosing transaction.
func FinalizeCapture(merchant, customer *Account, amount decimal.Decimal) error {
	if customer.PendingCapture.LessThan(amount) {
		return domainErr.NewInsufficientFundsError("pending_capture", amount, customer.PendingCapture)
	}
	customer.PendingCapture = customer.PendingCapture.Sub(amount)
	merchant.Balance = merchant.Balance.Add(amount)
	return nil
}
