package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/auctionapi/parsing"
)

// VerifyCOSESignature verifies an untagged COSE_Sign1 signature against the
// ES384 key of the given base64 DER certificate
func VerifyCOSESignature(coseBytes auctionapi.AttestationCOSE, certB64 string) error {
	certDER, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return fmt.Errorf("decode certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	sign1, err := parsing.SplitCOSESign1(coseBytes)
	if err != nil {
		return err
	}

	// AWS Nitro uses ES384 (ECDSA P-384 with SHA-384)
	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	// Sig_structure for COSE_Sign1: ["Signature1", protected, external_aad, payload]
	sigStructureBytes, err := cbor.Marshal([]any{
		"Signature1",
		sign1.Protected,
		[]byte{},
		sign1.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	if err := verifier.Verify(sigStructureBytes, sign1.Signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return nil
}
