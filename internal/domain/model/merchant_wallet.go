package model

import (
	"time"

	"github.com/google/uuid"
)

// MerchantWallet is a merchant's registered payout address for the crypto
// rail. The address is stored encrypted.
type MerchantWallet struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"merchant_id"`
	Asset            string    `gorm:"size:10;not null" json:"asset"`
	EncryptedAddress string    `gorm:"size:300;not null" json:"-"`
	CreatedAt        time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (MerchantWallet) TableName() string {
	return "merchant_wallets"
}
