package model

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus represents whether a stored card may be tokenized
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

// Card represents a stored payment card. The PAN is never persisted, only the
// last four digits for display.
type Card struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	AccountID  uuid.UUID  `gorm:"type:uuid;not null" json:"account_id"`
	PanLast4   string     `gorm:"size:4;not null" json:"pan_last4"`
	Brand      string     `gorm:"size:20" json:"brand"`
	Status     CardStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	CreatedAt  time.Time  `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Card) TableName() string {
	return "cards"
}

// IsActive reports whether the card may be bound to a new token.
func (c *Card) IsActive() bool {
	return c.Status == CardStatusActive
}

// CardToken is the ephemeral binding of a card to exactly one transaction
// attempt. The CVV material is held encrypted and is scrubbed the moment the
// token is used or swept.
type CardToken struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CardID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"card_id"`
	TransactionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"transaction_id"`
	Token         string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	EncryptedCVV  *string    `gorm:"size:200" json:"-"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	IsUsed        bool       `gorm:"not null;default:false" json:"is_used"`
	DeletedAt     *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CardToken) TableName() string {
	return "card_tokens"
}

// IsLive reports whether the token may still authorize an attempt: not used,
// not soft-deleted, not past expiry.
func (t *CardToken) IsLive(now time.Time) bool {
	return !t.IsUsed && t.DeletedAt == nil && now.Before(t.ExpiresAt)
}

// IsExpired reports whether the token's wall-clock deadline has passed.
func (t *CardToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
