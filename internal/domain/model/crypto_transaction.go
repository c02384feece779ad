package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CryptoStatus represents the lifecycle state of a crypto payment intent
type CryptoStatus string

const (
	CryptoStatusPending    CryptoStatus = "PENDING"
	CryptoStatusConfirming CryptoStatus = "CONFIRMING"
	CryptoStatusCancelled  CryptoStatus = "CANCELLED"
	CryptoStatusCompleted  CryptoStatus = "COMPLETED"
	CryptoStatusCaptured   CryptoStatus = "CAPTURED"
	CryptoStatusExpired    CryptoStatus = "EXPIRED"
	CryptoStatusFailed     CryptoStatus = "FAILED"
)

// Scan implements sql.Scanner interface
func (s *CryptoStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = CryptoStatus(v)
	case []byte:
		*s = CryptoStatus(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (s CryptoStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// cryptoTransitions is the single confirmation pipeline: Confirm moves
// PENDING (or a revived CANCELLED) either straight to COMPLETED when the
// chain already reports finality, or to CONFIRMING for the poll loop to
// finish via CAPTURED.
var cryptoTransitions = map[CryptoStatus][]CryptoStatus{
	CryptoStatusPending: {
		CryptoStatusConfirming,
		CryptoStatusCompleted,
		CryptoStatusCancelled,
		CryptoStatusExpired,
		CryptoStatusFailed,
	},
	CryptoStatusCancelled: {
		CryptoStatusConfirming,
		CryptoStatusCompleted,
	},
	CryptoStatusConfirming: {
		CryptoStatusCaptured,
		CryptoStatusFailed,
	},
	// COMPLETED, CAPTURED, EXPIRED, FAILED are terminal
}

// CanTransitionTo reports whether the crypto transition table permits moving
// from s to next.
func (s CryptoStatus) CanTransitionTo(next CryptoStatus) bool {
	for _, allowed := range cryptoTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted from s.
func (s CryptoStatus) IsTerminal() bool {
	return len(cryptoTransitions[s]) == 0
}

// CryptoTransaction represents one crypto payment intent. WalletAddress and
// TxHash are stored encrypted; only the owning adapter touches them.
type CryptoTransaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PSPTransactionID string          `gorm:"column:psp_transaction_id;size:100;uniqueIndex;not null" json:"psp_transaction_id"`
	CryptoPaymentID  string          `gorm:"size:100;uniqueIndex;not null" json:"crypto_payment_id"`
	MerchantID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"merchant_id"`
	AmountFiat       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_fiat"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	AmountCrypto     decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"amount_crypto"`
	ExchangeRate     decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"exchange_rate"`
	WalletAddress    string          `gorm:"size:200;not null" json:"-"`
	TxHash           *string         `gorm:"size:200" json:"-"`
	Confirmations    int             `gorm:"not null;default:0" json:"confirmations"`
	Status           CryptoStatus    `gorm:"size:20;not null;index" json:"status"`
	ExpiresAt        time.Time       `gorm:"not null;index" json:"expires_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CryptoTransaction) TableName() string {
	return "crypto_transactions"
}
