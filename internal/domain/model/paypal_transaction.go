package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaypalStatus represents the lifecycle state of a PayPal order
type PaypalStatus string

const (
	PaypalStatusPending   PaypalStatus = "PENDING"
	PaypalStatusCaptured  PaypalStatus = "CAPTURED"
	PaypalStatusFailed    PaypalStatus = "FAILED"
	PaypalStatusCancelled PaypalStatus = "CANCELLED"
)

// Scan implements sql.Scanner interface
func (s *PaypalStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaypalStatus(v)
	case []byte:
		*s = PaypalStatus(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaypalStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// PaypalTransaction represents one PayPal order. The remote order, payer and
// capture ids are stored encrypted.
type PaypalTransaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PSPTransactionID string          `gorm:"column:psp_transaction_id;size:100;uniqueIndex;not null" json:"psp_transaction_id"`
	MerchantID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"merchant_id"`
	OrderID          string          `gorm:"size:300;not null" json:"-"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	Status           PaypalStatus    `gorm:"size:20;not null;index" json:"status"`
	PayerID          *string         `gorm:"size:300" json:"-"`
	CaptureID        *string         `gorm:"size:300" json:"-"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PaypalTransaction) TableName() string {
	return "paypal_transactions"
}
