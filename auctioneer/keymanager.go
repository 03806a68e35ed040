package main

import (
	"crypto/rsa"
	"fmt"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/sealing"
)

// KeyManager manages the auctioneer's RSA key pair for sealed bid values
type KeyManager struct {
	privateKey *rsa.PrivateKey // Keep private - sensitive!
	PublicKey  *rsa.PublicKey
}

// NewKeyManager creates a new KeyManager and generates a fresh RSA key pair
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := sealing.GenerateRSAKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	return sealing.PublicKeyToPEM(km.PublicKey)
}

// OpenBidValue decrypts a sealed bundle value with the auctioneer's private key
func (km *KeyManager) OpenBidValue(encrypted *auctionapi.EncryptedBidValue) (float64, error) {
	return sealing.OpenBidValue(encrypted, km.privateKey)
}

// HandleKeyRequest returns the public key together with an attestation binding it to this enclave
func HandleKeyRequest(attester Attester, keyManager *KeyManager) (*auctionapi.KeyResponse, error) {
	publicKeyPEM, err := keyManager.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	attestation, err := GenerateKeyAttestation(attester, publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key attestation: %w", err)
	}

	return &auctionapi.KeyResponse{
		Type:                  auctionapi.TypeKeyResponse,
		PublicKey:             publicKeyPEM,
		AttestationCOSEBase64: attestation.EncodeBase64(),
	}, nil
}
