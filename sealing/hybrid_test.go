package sealing

import (
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := GenerateRSAKeyPair()
	assert.NoError(t, err)
	return privateKey
}

func TestGenerateRSAKeyPair(t *testing.T) {
	privateKey := mustKey(t)
	assert.Equal(t, RSAKeyBits, privateKey.N.BitLen())
}

func TestHybridEncryptionDecryption(t *testing.T) {
	privateKey := mustKey(t)

	testCases := []struct {
		name      string
		plaintext []byte
	}{
		{name: "json value", plaintext: []byte(`{"value":2.50}`)},
		{name: "empty", plaintext: []byte("")},
		{name: "large data", plaintext: make([]byte, 10000)},
	}

	for _, hashAlg := range []HashAlgorithm{HashAlgorithmSHA256, HashAlgorithmSHA1} {
		t.Run(string(hashAlg), func(t *testing.T) {
			for _, tt := range testCases {
				t.Run(tt.name, func(t *testing.T) {
					sealed, err := EncryptHybrid(tt.plaintext, &privateKey.PublicKey, hashAlg)
					assert.NoError(t, err)
					check.NotEqual(t, "", sealed.EncryptedAESKey)
					check.NotEqual(t, "", sealed.Nonce)

					decrypted, err := DecryptHybrid(sealed.EncryptedAESKey, sealed.EncryptedPayload, sealed.Nonce, privateKey, hashAlg)
					assert.NoError(t, err)
					check.Equal(t, string(tt.plaintext), string(decrypted))
				})
			}
		})
	}
}

func TestDecryptHybrid_Failures(t *testing.T) {
	privateKey := mustKey(t)
	otherKey := mustKey(t)

	sealed, err := EncryptHybrid([]byte("secret"), &privateKey.PublicKey, HashAlgorithmSHA256)
	assert.NoError(t, err)

	t.Run("invalid base64", func(t *testing.T) {
		_, err := DecryptHybrid("invalid-base64!@#", sealed.EncryptedPayload, sealed.Nonce, privateKey, HashAlgorithmSHA256)
		check.NotNil(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := DecryptHybrid(sealed.EncryptedAESKey, sealed.EncryptedPayload, sealed.Nonce, otherKey, HashAlgorithmSHA256)
		check.NotNil(t, err)
	})

	t.Run("hash mismatch", func(t *testing.T) {
		_, err := DecryptHybrid(sealed.EncryptedAESKey, sealed.EncryptedPayload, sealed.Nonce, privateKey, HashAlgorithmSHA1)
		check.NotNil(t, err)
	})

	t.Run("unsupported hash", func(t *testing.T) {
		_, err := DecryptHybrid(sealed.EncryptedAESKey, sealed.EncryptedPayload, sealed.Nonce, privateKey, "SHA512")
		assert.NotNil(t, err)
		check.Equal(t, "unsupported hash algorithm: SHA512", err.Error())
	})

	t.Run("short nonce", func(t *testing.T) {
		_, err := DecryptHybrid(sealed.EncryptedAESKey, sealed.EncryptedPayload, "dGVzdA==", privateKey, HashAlgorithmSHA256)
		check.NotNil(t, err)
	})
}

func TestSealAndOpenBidValue(t *testing.T) {
	privateKey := mustKey(t)

	encrypted, err := SealBidValue(7.25, &privateKey.PublicKey, HashAlgorithmSHA1)
	assert.NoError(t, err)
	check.Equal(t, "SHA-1", encrypted.HashAlgorithm)

	value, err := OpenBidValue(encrypted, privateKey)
	assert.NoError(t, err)
	check.Equal(t, 7.25, value)
}

func TestOpenBidValue_InvalidPayload(t *testing.T) {
	privateKey := mustKey(t)

	for _, plaintext := range []string{`not json`, `{"price":2}`} {
		t.Run(plaintext, func(t *testing.T) {
			sealed, err := EncryptHybrid([]byte(plaintext), &privateKey.PublicKey, HashAlgorithmSHA256)
			assert.NoError(t, err)

			_, err = OpenBidValue(&auctionapi.EncryptedBidValue{
				AESKeyEncrypted:  sealed.EncryptedAESKey,
				EncryptedPayload: sealed.EncryptedPayload,
				Nonce:            sealed.Nonce,
			}, privateKey)
			check.True(t, errors.Is(err, ErrInvalidPayload))
		})
	}
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	privateKey := mustKey(t)

	pemString, err := PublicKeyToPEM(&privateKey.PublicKey)
	assert.NoError(t, err)

	parsed, err := ParsePublicKeyPEM([]byte(pemString))
	assert.NoError(t, err)
	check.True(t, parsed.Equal(&privateKey.PublicKey))

	_, err = ParsePublicKeyPEM([]byte("not pem"))
	check.NotNil(t, err)
}
