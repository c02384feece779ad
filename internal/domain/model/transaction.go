package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a bank-card payment
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusAuthorized TransactionStatus = "AUTHORIZED"
	TransactionStatusCaptured   TransactionStatus = "CAPTURED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusExpired    TransactionStatus = "EXPIRED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// Scan implements sql.Scanner interface
func (s *TransactionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = TransactionStatus(v)
	case []byte:
		*s = TransactionStatus(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// transactionTransitions is the single source of truth for allowed status
// changes. Anything not listed is rejected.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusAuthorized,
		TransactionStatusFailed,
		TransactionStatusExpired,
		TransactionStatusCancelled,
	},
	TransactionStatusAuthorized: {
		TransactionStatusCaptured,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	// CAPTURED, FAILED, EXPIRED, CANCELLED are terminal
}

// CanTransitionTo reports whether the transition table permits moving from s
// to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted from s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

// Transaction represents one bank-card payment attempt
type Transaction struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalPaymentID string            `gorm:"size:100;uniqueIndex;not null" json:"external_payment_id"`
	MerchantStan      string            `gorm:"size:50;uniqueIndex;not null" json:"merchant_stan"`
	Amount            decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency          string            `gorm:"size:3;not null" json:"currency"`
	Status            TransactionStatus `gorm:"size:20;not null;index" json:"status"`
	ExpiresAt         time.Time         `gorm:"not null;index" json:"expires_at"`
	MerchantAccountID uuid.UUID         `gorm:"type:uuid;not null;index" json:"merchant_account_id"`
	CustomerAccountID *uuid.UUID        `gorm:"type:uuid" json:"customer_account_id,omitempty"`
	CustomerID        *uuid.UUID        `gorm:"type:uuid" json:"customer_id,omitempty"`
	CardID            *uuid.UUID        `gorm:"type:uuid" json:"card_id,omitempty"`
	TokenID           *uuid.UUID        `gorm:"type:uuid" json:"token_id,omitempty"`
	AuthorizedAt      *time.Time        `json:"authorized_at,omitempty"`
	CapturedAt        *time.Time        `json:"captured_at,omitempty"`
	FailedAt          *time.Time        `json:"failed_at,omitempty"`
	CreatedAt         time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}

// IsValid reports whether the transaction may still accept card data: PENDING
// and not past its expiry deadline.
func (t *Transaction) IsValid(now time.Time) bool {
	return t.Status == TransactionStatusPending && now.Before(t.ExpiresAt)
}
