package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

// ValidateKeyAttestation validates a key attestation against the default trust anchors
//
// Parameters:
//   - attestationCOSEBase64: Base64-encoded COSE_Sign1 bytes from KeyResponse.AttestationCOSEBase64
//   - expectedPublicKey: PEM-encoded public key to validate (from KeyResponse.PublicKey)
func ValidateKeyAttestation(attestationCOSEBase64 auctionapi.AttestationCOSEBase64, expectedPublicKey string) (*KeyValidationResult, error) {
	verifier, err := NewVerifier("")
	if err != nil {
		return nil, err
	}
	return verifier.ValidateKeyAttestation(attestationCOSEBase64, expectedPublicKey)
}

// ValidateKeyAttestation validates a key attestation from COSE bytes.
// It returns an error only when validation cannot be performed at all.
func (v *Verifier) ValidateKeyAttestation(attestationCOSEBase64 auctionapi.AttestationCOSEBase64, expectedPublicKey string) (*KeyValidationResult, error) {
	coseBytes, err := attestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	baseResult, parsed, err := v.validateCommonAttestation(coseBytes)
	if err != nil {
		return nil, err
	}

	result := &KeyValidationResult{
		BaseValidationResult: *baseResult,
	}

	var keyUserData auctionapi.KeyAttestationUserData
	if len(parsed.userData) > 0 {
		if err := json.Unmarshal(parsed.userData, &keyUserData); err != nil {
			return nil, fmt.Errorf("parse user data: %w", err)
		}
	}

	if keyUserData.PublicKey == "" {
		result.detail("Public key missing from attestation")
		return result, nil
	}

	// PEM encoders differ on trailing newlines
	if strings.TrimSpace(expectedPublicKey) == strings.TrimSpace(keyUserData.PublicKey) {
		result.PublicKeyMatch = true
		result.detail("Public key matches attestation")
	} else {
		result.detail("Public key mismatch: provided key does not match attested key")
	}

	return result, nil
}
