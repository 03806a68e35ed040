package validation

import (
	"crypto/x509"
	"fmt"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

// Verifier holds the trust anchors attestations are checked against
type Verifier struct {
	// KnownPCRs are the accepted enclave image measurements
	KnownPCRs []PCRSet

	// Roots anchor the attestation certificate chain
	Roots *x509.CertPool
}

// NewVerifier trusts the AWS Nitro root and the PCR sets in pcrConfigPath,
// or the sets shipped with this package when the path is empty
func NewVerifier(pcrConfigPath string) (*Verifier, error) {
	var (
		knownPCRs []PCRSet
		err       error
	)
	if pcrConfigPath == "" {
		knownPCRs, err = DefaultPCRs()
	} else {
		knownPCRs, err = LoadPCRsFromFile(pcrConfigPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load PCR configuration: %w", err)
	}

	roots, err := AWSNitroRoots()
	if err != nil {
		return nil, err
	}

	return &Verifier{KnownPCRs: knownPCRs, Roots: roots}, nil
}

// parsedAttestation is an attestation with its document and raw user data
type parsedAttestation struct {
	doc      auctionapi.AttestationDoc
	userData []byte
}

// validateCommonAttestation performs validation common to all attestation types:
// PCRs, certificate chain and COSE signature
func (v *Verifier) validateCommonAttestation(coseBytes auctionapi.AttestationCOSE) (*BaseValidationResult, *parsedAttestation, error) {
	attestationDoc, userData, err := coseBytes.ParseAttestationDoc()
	if err != nil {
		return nil, nil, fmt.Errorf("parse attestation document: %w", err)
	}

	result := &BaseValidationResult{
		ValidationDetails: []string{},
	}

	pcrMatch, matchedSet := ValidatePCRs(attestationDoc.PCRs, v.KnownPCRs)
	result.PCRsValid = pcrMatch
	if !pcrMatch {
		result.detail("PCR0: %s (no match)", attestationDoc.PCRs.ImageFileHash)
		result.detail("PCR1: %s (no match)", attestationDoc.PCRs.KernelHash)
		result.detail("PCR2: %s (no match)", attestationDoc.PCRs.ApplicationHash)
	} else {
		result.detail("PCR measurements valid")
		result.detail("Matched PCR set: #%d (commit: %s)", matchedSet, v.KnownPCRs[matchedSet].CommitHash)
	}

	// Validate certificate chain at the attestation timestamp
	switch {
	case attestationDoc.Certificate == "":
		result.detail("Missing certificate")
	case len(attestationDoc.CABundle) == 0:
		result.detail("Missing CA bundle")
	default:
		if err := ValidateCertificateChain(attestationDoc.Certificate, attestationDoc.CABundle, attestationDoc.Timestamp, v.Roots); err != nil {
			result.detail("Certificate chain validation failed: %v", err)
		} else {
			result.CertificateValid = true
			result.detail("Certificate chain verified")
		}
	}

	if err := VerifyCOSESignature(coseBytes, attestationDoc.Certificate); err != nil {
		result.detail("COSE signature verification failed: %v", err)
	} else {
		result.SignatureValid = true
		result.detail("COSE signature verified")
	}

	return result, &parsedAttestation{doc: attestationDoc, userData: userData}, nil
}
