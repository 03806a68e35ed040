package validation

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/auctionapi/parsing"
	"github.com/cloudx-io/vcgauction/core"
)

var attestedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testEnclave stands in for the NSM: a P-384 root, a leaf signed by it, and
// debug-mode PCRs, producing COSE_Sign1 documents the verifier accepts.
type testEnclave struct {
	roots   *x509.CertPool
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
}

func newTestEnclave(t *testing.T) *testEnclave {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.Nil(t, err)
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-nitro-root"},
		NotBefore:             attestedAt.Add(-24 * time.Hour),
		NotAfter:              attestedAt.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	assert.Nil(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	assert.Nil(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.Nil(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-enclave"},
		NotBefore:    attestedAt.Add(-time.Hour),
		NotAfter:     attestedAt.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, rootCert, &leafKey.PublicKey, rootKey)
	assert.Nil(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)

	return &testEnclave{roots: roots, rootDER: rootDER, leafDER: leafDER, leafKey: leafKey}
}

// verifier trusts the test root and the embedded debug-mode PCRs
func (e *testEnclave) verifier(t *testing.T) *Verifier {
	t.Helper()
	knownPCRs, err := DefaultPCRs()
	assert.Nil(t, err)
	return &Verifier{KnownPCRs: knownPCRs, Roots: e.roots}
}

// attest signs userData the way the NSM does: an untagged COSE_Sign1 over a
// CBOR attestation document, ES384
func (e *testEnclave) attest(t *testing.T, userData any) auctionapi.AttestationCOSE {
	t.Helper()

	userDataJSON, err := json.Marshal(userData)
	assert.Nil(t, err)

	zeroPCR := make([]byte, 48)
	payload, err := cbor.Marshal(parsing.NitroAttestationDocument{
		ModuleID:    "i-test-enc0123456789",
		Digest:      "SHA384",
		Timestamp:   uint64(attestedAt.UnixMilli()),
		PCRs:        map[uint64][]byte{0: zeroPCR, 1: zeroPCR, 2: zeroPCR},
		Certificate: e.leafDER,
		CABundle:    [][]byte{e.rootDER},
		UserData:    userDataJSON,
	})
	assert.Nil(t, err)

	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	assert.Nil(t, err)

	sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	assert.Nil(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, e.leafKey)
	assert.Nil(t, err)
	signature, err := signer.Sign(rand.Reader, sigStructure)
	assert.Nil(t, err)

	coseBytes, err := cbor.Marshal([]any{protected, map[int]any{}, payload, signature})
	assert.Nil(t, err)
	return auctionapi.AttestationCOSE(coseBytes)
}

// testRequest: a wants {A,B} for 3, b wants {A} for 2, c wants {B} for 2.
// b and c win and each pays 1.
func testRequest() *auctionapi.VCGRequest {
	return &auctionapi.VCGRequest{
		Type:      auctionapi.TypeVCGRequest,
		AuctionID: "auction-val-1",
		Bidders: []auctionapi.BidderValuation{
			{Bidder: "a", Bids: []auctionapi.BundleBid{{Items: []string{"A", "B"}, Value: 3}}},
			{Bidder: "b", Bids: []auctionapi.BundleBid{{Items: []string{"A"}, Value: 2}}},
			{Bidder: "c", Bids: []auctionapi.BundleBid{{Items: []string{"B"}, Value: 2}}},
		},
	}
}

// outcomeUserData runs the mechanism on req and commits to it with fixed nonces
func outcomeUserData(t *testing.T, req *auctionapi.VCGRequest, excluded []auctionapi.ExcludedBid) *auctionapi.OutcomeAttestationUserData {
	t.Helper()

	bids, err := req.PlainBids(excluded)
	assert.Nil(t, err)
	result, err := core.RunMechanism(context.Background(), bids, req.BidderIDs(), req.AdjustmentFactors, req.Reserves(), core.VCGOptions{})
	assert.Nil(t, err)

	const (
		runID        = "5d1f3c0e-8a2b-4f6d-9c7e-1b2a3c4d5e6f"
		bidNonce     = "bid-nonce"
		requestNonce = "request-nonce"
		factorNonce  = "factor-nonce"
		reserveNonce = "reserve-nonce"
	)

	bidHashes := make([]string, 0, len(bids))
	for _, bid := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid.Bidder, bid.Bundle, bid.Value, bidNonce))
	}

	return &auctionapi.OutcomeAttestationUserData{
		AuctionID:              req.AuctionID,
		RunID:                  runID,
		BidHashes:              bidHashes,
		RequestHash:            core.ComputeRequestHash(req.AuctionID, runID, requestNonce),
		AdjustmentFactorsHash:  core.ComputeAdjustmentFactorsHash(req.AdjustmentFactors, factorNonce),
		ItemReservesHash:       core.ComputeItemReservesHash(req.Reserves(), reserveNonce),
		TieBreak:               core.TieBreakLatest.String(),
		Welfare:                result.VCG.Welfare,
		Awards:                 auctionapi.AttestAwards(auctionapi.AwardsFromResult(result.VCG), bidNonce),
		Excluded:               auctionapi.AttestExclusions(excluded, bidNonce),
		BidHashNonce:           bidNonce,
		RequestNonce:           requestNonce,
		AdjustmentFactorsNonce: factorNonce,
		ItemReservesNonce:      reserveNonce,
		Timestamp:              attestedAt,
	}
}
