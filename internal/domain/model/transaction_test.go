package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    TransactionStatus
		to      TransactionStatus
		allowed bool
	}{
		{"pending to authorized", TransactionStatusPending, TransactionStatusAuthorized, true},
		{"pending to failed", TransactionStatusPending, TransactionStatusFailed, true},
		{"pending to expired", TransactionStatusPending, TransactionStatusExpired, true},
		{"pending to cancelled", TransactionStatusPending, TransactionStatusCancelled, true},
		{"pending straight to captured", TransactionStatusPending, TransactionStatusCaptured, false},
		{"authorized to captured", TransactionStatusAuthorized, TransactionStatusCaptured, true},
		{"authorized to failed", TransactionStatusAuthorized, TransactionStatusFailed, true},
		{"authorized to cancelled", TransactionStatusAuthorized, TransactionStatusCancelled, true},
		{"authorized back to pending", TransactionStatusAuthorized, TransactionStatusPending, false},
		{"captured to anything", TransactionStatusCaptured, TransactionStatusCancelled, false},
		{"failed to authorized", TransactionStatusFailed, TransactionStatusAuthorized, false},
		{"expired to authorized", TransactionStatusExpired, TransactionStatusAuthorized, false},
		{"cancelled to captured", TransactionStatusCancelled, TransactionStatusCaptured, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.False(t, TransactionStatusAuthorized.IsTerminal())
	assert.True(t, TransactionStatusCaptured.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusExpired.IsTerminal())
	assert.True(t, TransactionStatusCancelled.IsTerminal())
}

func TestTransaction_IsValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pending before expiry", func(t *testing.T) {
		tx := &Transaction{Status: TransactionStatusPending, ExpiresAt: now.Add(time.Minute)}
		assert.True(t, tx.IsValid(now))
	})

	t.Run("pending past expiry", func(t *testing.T) {
		tx := &Transaction{Status: TransactionStatusPending, ExpiresAt: now.Add(-time.Second)}
		assert.False(t, tx.IsValid(now))
	})

	t.Run("pending exactly at expiry", func(t *testing.T) {
		tx := &Transaction{Status: TransactionStatusPending, ExpiresAt: now}
		assert.False(t, tx.IsValid(now))
	})

	t.Run("authorized is no longer open", func(t *testing.T) {
		tx := &Transaction{Status: TransactionStatusAuthorized, ExpiresAt: now.Add(time.Minute)}
		assert.False(t, tx.IsValid(now))
	})
}

func TestCryptoStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    CryptoStatus
		to      CryptoStatus
		allowed bool
	}{
		{"pending to confirming", CryptoStatusPending, CryptoStatusConfirming, true},
		{"pending straight to completed", CryptoStatusPending, CryptoStatusCompleted, true},
		{"pending to cancelled", CryptoStatusPending, CryptoStatusCancelled, true},
		{"pending to expired", CryptoStatusPending, CryptoStatusExpired, true},
		{"cancelled revived by late confirm", CryptoStatusCancelled, CryptoStatusConfirming, true},
		{"cancelled straight to completed", CryptoStatusCancelled, CryptoStatusCompleted, true},
		{"confirming to captured", CryptoStatusConfirming, CryptoStatusCaptured, true},
		{"confirming to failed", CryptoStatusConfirming, CryptoStatusFailed, true},
		{"confirming back to pending", CryptoStatusConfirming, CryptoStatusPending, false},
		{"completed is terminal", CryptoStatusCompleted, CryptoStatusCaptured, false},
		{"captured is terminal", CryptoStatusCaptured, CryptoStatusCompleted, false},
		{"expired is terminal", CryptoStatusExpired, CryptoStatusConfirming, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCardToken_IsLive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token CardToken
		live  bool
	}{
		{"fresh token", CardToken{ExpiresAt: now.Add(time.Minute)}, true},
		{"used token", CardToken{ExpiresAt: now.Add(time.Minute), IsUsed: true}, false},
		{"expired token", CardToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"soft-deleted token", CardToken{ExpiresAt: now.Add(time.Minute), DeletedAt: &deleted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.live, tt.token.IsLive(now))
		})
	}
}
