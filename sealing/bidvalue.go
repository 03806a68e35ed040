package sealing

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

// ErrInvalidPayload is returned when a decrypted bid value is not {"value": X}
var ErrInvalidPayload = errors.New("invalid payload format")

// bidValuePayload is the plaintext carried inside an encrypted bid value
type bidValuePayload struct {
	Value float64 `json:"value"`
}

// SealBidValue encrypts a bundle value for the auctioneer holding publicKey.
func SealBidValue(value float64, publicKey *rsa.PublicKey, hashAlg HashAlgorithm) (*auctionapi.EncryptedBidValue, error) {
	plaintext, err := json.Marshal(bidValuePayload{Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bid value: %w", err)
	}

	sealed, err := EncryptHybrid(plaintext, publicKey, hashAlg)
	if err != nil {
		return nil, err
	}

	return &auctionapi.EncryptedBidValue{
		AESKeyEncrypted:  sealed.EncryptedAESKey,
		EncryptedPayload: sealed.EncryptedPayload,
		Nonce:            sealed.Nonce,
		HashAlgorithm:    string(hashAlg),
	}, nil
}

// OpenBidValue decrypts an encrypted bid value. The payload must be a JSON
// object with a numeric "value" field.
func OpenBidValue(encrypted *auctionapi.EncryptedBidValue, privateKey *rsa.PrivateKey) (float64, error) {
	plaintext, err := DecryptHybrid(
		encrypted.AESKeyEncrypted,
		encrypted.EncryptedPayload,
		encrypted.Nonce,
		privateKey,
		HashAlgorithm(encrypted.HashAlgorithm),
	)
	if err != nil {
		return 0, err
	}

	var payload struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.Value == nil {
		return 0, fmt.Errorf("%w: missing value", ErrInvalidPayload)
	}
	return *payload.Value, nil
}

// PublicKeyToPEM converts an RSA public key to PKIX PEM format
func PublicKeyToPEM(publicKey *rsa.PublicKey) (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// ParsePublicKeyPEM parses a PKIX PEM RSA public key, as returned by a key request
func ParsePublicKeyPEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", parsed)
	}
	return rsaKey, nil
}
