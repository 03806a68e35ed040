package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/core"
)

// Attester produces NSM attestation documents. The Nitro handle implements it;
// tests inject a mock.
type Attester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// outcomeCommitments are the nonces and hashes that bind an outcome to its inputs
type outcomeCommitments struct {
	bidHashNonce           string
	requestNonce           string
	adjustmentFactorsNonce string
	itemReservesNonce      string
}

func newOutcomeCommitments() (*outcomeCommitments, error) {
	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}
	requestNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request nonce: %w", err)
	}
	adjustmentFactorsNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate adjustment factors nonce: %w", err)
	}
	itemReservesNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate item reserves nonce: %w", err)
	}
	return &outcomeCommitments{
		bidHashNonce:           bidHashNonce,
		requestNonce:           requestNonce,
		adjustmentFactorsNonce: adjustmentFactorsNonce,
		itemReservesNonce:      itemReservesNonce,
	}, nil
}

// BuildOutcomeUserData assembles the attested outcome. Bids are hashed with the
// values that entered the mechanism, in request order. Bidder identities in
// awards and exclusions are salted with the bid hash nonce.
func BuildOutcomeUserData(
	req auctionapi.VCGRequest,
	runID string,
	bids []core.Bid,
	policy core.TieBreakPolicy,
	welfare float64,
	awards []auctionapi.Award,
	excluded []auctionapi.ExcludedBid,
) (*auctionapi.OutcomeAttestationUserData, error) {
	commitments, err := newOutcomeCommitments()
	if err != nil {
		return nil, err
	}

	bidHashes := make([]string, 0, len(bids))
	for _, bid := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid.Bidder, bid.Bundle, bid.Value, commitments.bidHashNonce))
	}

	return &auctionapi.OutcomeAttestationUserData{
		AuctionID:              req.AuctionID,
		RunID:                  runID,
		BidHashes:              bidHashes,
		RequestHash:            core.ComputeRequestHash(req.AuctionID, runID, commitments.requestNonce),
		AdjustmentFactorsHash:  core.ComputeAdjustmentFactorsHash(req.AdjustmentFactors, commitments.adjustmentFactorsNonce),
		ItemReservesHash:       core.ComputeItemReservesHash(req.Reserves(), commitments.itemReservesNonce),
		TieBreak:               policy.String(),
		Welfare:                welfare,
		Awards:                 auctionapi.AttestAwards(awards, commitments.bidHashNonce),
		Excluded:               auctionapi.AttestExclusions(excluded, commitments.bidHashNonce),
		BidHashNonce:           commitments.bidHashNonce,
		RequestNonce:           commitments.requestNonce,
		AdjustmentFactorsNonce: commitments.adjustmentFactorsNonce,
		ItemReservesNonce:      commitments.itemReservesNonce,
		Timestamp:              time.Now().UTC(),
	}, nil
}

// generateSecureRandomBytes generates cryptographically secure random bytes.
// Inside an enclave crypto/rand draws from the NSM-seeded kernel pool.
func generateSecureRandomBytes(length int) ([]byte, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("entropy generation failed: %w", err)
	}
	return randomBytes, nil
}

func generateNonce() (string, error) {
	randomBytes, err := generateSecureRandomBytes(32) // 256 bits of entropy
	if err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// GenerateOutcomeAttestation embeds the outcome in an NSM attestation document
func GenerateOutcomeAttestation(attester Attester, userData *auctionapi.OutcomeAttestationUserData) (auctionapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	userDataBytes, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}

	return attest(attester, userDataBytes, "outcome")
}

// GenerateKeyAttestation generates raw COSE bytes binding the sealing key to the enclave
func GenerateKeyAttestation(attester Attester, publicKeyPEM string) (auctionapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, fmt.Errorf("enclave attester is nil")
	}

	keyUserData := &auctionapi.KeyAttestationUserData{
		KeyAlgorithm: "RSA-2048",
		PublicKey:    publicKeyPEM,
	}

	userDataBytes, err := json.Marshal(keyUserData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key user data: %w", err)
	}

	return attest(attester, userDataBytes, "key")
}

func attest(attester Attester, userData []byte, kind string) (auctionapi.AttestationCOSE, error) {
	randomNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attestation nonce: %w", err)
	}

	attestationCBOR, err := attester.Attest(enclave.AttestationOptions{
		UserData: userData,
		Nonce:    []byte(randomNonce),
	})
	if err != nil {
		log.Printf("ERROR: NSM %s attestation failed: %v", kind, err)
		return nil, fmt.Errorf("NSM %s attestation failed: %w", kind, err)
	}

	log.Printf("INFO: NSM %s attestation generated: %d bytes", kind, len(attestationCBOR))
	return auctionapi.AttestationCOSE(attestationCBOR), nil
}
