package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestNewAESEncryptionService(t *testing.T) {
	t.Run("accepts a 32-byte hex key", func(t *testing.T) {
		service, err := NewAESEncryptionService(testKey)
		assert.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("rejects a short key", func(t *testing.T) {
		_, err := NewAESEncryptionService("deadbeef")
		assert.Error(t, err)
	})

	t.Run("rejects a non-hex key", func(t *testing.T) {
		_, err := NewAESEncryptionService("not-hex-at-all")
		assert.Error(t, err)
	})
}

func TestAESEncryptionService_RoundTrip(t *testing.T) {
	service, err := NewAESEncryptionService(testKey)
	assert.NoError(t, err)

	for _, plaintext := range []string{
		"123",
		"0xAbCd1234ef567890abcd1234EF567890ABCD1234",
		"",
	} {
		ciphertext, err := service.Encrypt(plaintext)
		assert.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := service.Decrypt(ciphertext)
		assert.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestAESEncryptionService_NonceVariation(t *testing.T) {
	service, err := NewAESEncryptionService(testKey)
	assert.NoError(t, err)

	first, err := service.Encrypt("same plaintext")
	assert.NoError(t, err)
	second, err := service.Encrypt("same plaintext")
	assert.NoError(t, err)

	// Random nonce: equal plaintexts must not yield equal ciphertexts
	assert.NotEqual(t, first, second)
}

func TestAESEncryptionService_Decrypt(t *testing.T) {
	service, err := NewAESEncryptionService(testKey)
	assert.NoError(t, err)

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		ciphertext, err := service.Encrypt("sensitive")
		assert.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(ciphertext)
		assert.NoError(t, err)
		raw[len(raw)-1] ^= 0xff

		_, err = service.Decrypt(base64.StdEncoding.EncodeToString(raw))
		assert.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := service.Decrypt("%%%")
		assert.Error(t, err)
	})

	t.Run("too short to hold a nonce", func(t *testing.T) {
		_, err := service.Decrypt(base64.StdEncoding.EncodeToString([]byte("abc")))
		assert.Error(t, err)
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		other, err := NewAESEncryptionService("0000000000000000000000000000000000000000000000000000000000000000")
		assert.NoError(t, err)

		ciphertext, err := service.Encrypt("sensitive")
		assert.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		assert.Error(t, err)
	})
}
