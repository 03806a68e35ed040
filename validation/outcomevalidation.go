package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/core"
)

// OwnBid is one of the validating bidder's bids with its plaintext value
type OwnBid struct {
	Items []string `json:"items"`
	Value float64  `json:"value"`
}

// OutcomeValidationInput contains all inputs needed for outcome attestation validation
type OutcomeValidationInput struct {
	AttestationCOSEBase64 auctionapi.AttestationCOSEBase64
	AttestationCOSEGzip   auctionapi.AttestationCOSEGzip // Used when the base64 form is empty

	Bidder string
	Bids   []OwnBid

	// ExpectedAward is what the operator reported to this bidder; nil only checks the bidder was declared
	ExpectedAward *auctionapi.Award

	AdjustmentFactors map[string]float64 // Compute hash and validate (empty map = no adjustments)
	ItemReserves      map[string]float64 // Compute hash and validate (empty map = no reserves)

	// Request, when present, is the full plaintext request; the mechanism is rerun and compared
	Request *auctionapi.VCGRequest
}

// ValidateOutcomeAttestation validates a VCG outcome attestation against the default trust anchors
func ValidateOutcomeAttestation(ctx context.Context, input *OutcomeValidationInput) (*OutcomeValidationResult, error) {
	verifier, err := NewVerifier("")
	if err != nil {
		return nil, err
	}
	return verifier.ValidateOutcomeAttestation(ctx, input)
}

// ValidateOutcomeAttestation validates a VCG outcome attestation and verifies:
// - The bidder's bids were committed to (or reported as excluded)
// - The bidder's award and payment match what the operator reported
// - Adjustment factor and item reserve hashes match
// - When the full request is supplied, the whole outcome recomputes identically
//
// Returns an error only if validation cannot be performed (e.g., malformed input)
func (v *Verifier) ValidateOutcomeAttestation(ctx context.Context, input *OutcomeValidationInput) (*OutcomeValidationResult, error) {
	coseBytes, err := input.attestation()
	if err != nil {
		return nil, err
	}

	baseResult, parsed, err := v.validateCommonAttestation(coseBytes)
	if err != nil {
		return nil, err
	}

	result := &OutcomeValidationResult{
		BaseValidationResult: *baseResult,
	}

	if len(parsed.userData) == 0 {
		result.detail("Attestation user data missing")
		return result, nil
	}
	var userData auctionapi.OutcomeAttestationUserData
	if err := json.Unmarshal(parsed.userData, &userData); err != nil {
		return nil, fmt.Errorf("parse user data: %w", err)
	}

	adjustmentFactors, itemReserves := input.AdjustmentFactors, input.ItemReserves
	if input.Request != nil {
		if adjustmentFactors == nil {
			adjustmentFactors = input.Request.AdjustmentFactors
		}
		if itemReserves == nil {
			itemReserves = input.Request.ItemReserves
		}
	}

	result.BidHashValid = validateBidHashes(input, &userData, result)
	result.AwardValid = validateAward(input, &userData, result)
	result.AdjustmentHashValid = validateAdjustmentHash(adjustmentFactors, &userData, result)
	result.ReservesHashValid = validateReservesHash(itemReserves, &userData, result)

	if input.Request != nil {
		result.RecomputeChecked = true
		result.RecomputeValid = validateRecompute(ctx, input.Request, &userData, result)
	}

	return result, nil
}

func (input *OutcomeValidationInput) attestation() (auctionapi.AttestationCOSE, error) {
	if input.AttestationCOSEBase64 != "" {
		coseBytes, err := input.AttestationCOSEBase64.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode COSE bytes: %w", err)
		}
		return coseBytes, nil
	}
	if input.AttestationCOSEGzip != "" {
		coseBytes, err := input.AttestationCOSEGzip.Decompress()
		if err != nil {
			return nil, fmt.Errorf("decompress attestation: %w", err)
		}
		return coseBytes, nil
	}
	return nil, fmt.Errorf("no attestation supplied")
}

func sameAmount(a, b float64) bool {
	return fmt.Sprintf("%.6f", a) == fmt.Sprintf("%.6f", b)
}

func sameBundles(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if core.BundleOf(a[i]...).Key() != core.BundleOf(b[i]...).Key() {
			return false
		}
	}
	return true
}

func validateBidHashes(input *OutcomeValidationInput, userData *auctionapi.OutcomeAttestationUserData, result *OutcomeValidationResult) bool {
	nonce := userData.BidHashNonce
	if nonce == "" {
		result.detail("Bid hash nonce missing from attestation")
		return false
	}
	if len(input.Bids) == 0 {
		result.detail("No bids supplied for hash validation")
		return false
	}

	bidderHash := core.ComputeBidderHash(input.Bidder, nonce)
	valid := true
	for _, bid := range input.Bids {
		bundle := core.BundleOf(bid.Items...)
		computedHash := core.ComputeBidHash(input.Bidder, bundle, bid.Value, nonce)
		if slices.Contains(userData.BidHashes, computedHash) {
			result.detail("Bid hash for %s found in attestation: %s", bundle, computedHash)
			continue
		}

		excluded := slices.IndexFunc(userData.Excluded, func(e auctionapi.AttestedExclusion) bool {
			return e.BidderHash == bidderHash && core.BundleOf(e.Items...).Key() == bundle.Key()
		})
		if excluded >= 0 {
			result.detail("Bid for %s was excluded: %s", bundle, userData.Excluded[excluded].Reason)
			continue
		}

		result.detail("Bid hash for %s NOT found in attestation. Computed: %s", bundle, computedHash)
		valid = false
	}
	if !valid {
		result.detail("Total hashes in attestation: %d", len(userData.BidHashes))
	}
	return valid
}

func validateAward(input *OutcomeValidationInput, userData *auctionapi.OutcomeAttestationUserData, result *OutcomeValidationResult) bool {
	bidderHash := core.ComputeBidderHash(input.Bidder, userData.BidHashNonce)
	idx := slices.IndexFunc(userData.Awards, func(a auctionapi.AttestedAward) bool {
		return a.BidderHash == bidderHash
	})
	if idx < 0 {
		result.detail("Bidder %s not declared in attested outcome", input.Bidder)
		return false
	}
	attested := userData.Awards[idx]

	if input.ExpectedAward == nil {
		result.detail("Attested award: bundles=%v payment=%.6f", attested.Bundles, attested.Payment)
		return true
	}

	valid := true
	if !sameBundles(input.ExpectedAward.Bundles, attested.Bundles) {
		result.detail("Award mismatch: expected bundles %v, attestation has %v", input.ExpectedAward.Bundles, attested.Bundles)
		valid = false
	}
	if !sameAmount(input.ExpectedAward.Payment, attested.Payment) {
		result.detail("Payment mismatch: expected %.6f, attestation has %.6f", input.ExpectedAward.Payment, attested.Payment)
		valid = false
	}
	if valid {
		result.detail("Award validation passed: bundles=%v payment=%.6f", attested.Bundles, attested.Payment)
	}
	return valid
}

func validateAdjustmentHash(adjustmentFactors map[string]float64, userData *auctionapi.OutcomeAttestationUserData, result *OutcomeValidationResult) bool {
	nonce := userData.AdjustmentFactorsNonce
	if nonce == "" {
		result.detail("Adjustment factors nonce missing from attestation")
		return false
	}

	computedHash := core.ComputeAdjustmentFactorsHash(adjustmentFactors, nonce)
	if computedHash == userData.AdjustmentFactorsHash {
		result.detail("Adjustment factors hash validation passed: %s", computedHash)
		return true
	}

	result.detail("Adjustment factors hash mismatch: computed %s, attestation has %s", computedHash, userData.AdjustmentFactorsHash)
	return false
}

func validateReservesHash(itemReserves map[string]float64, userData *auctionapi.OutcomeAttestationUserData, result *OutcomeValidationResult) bool {
	nonce := userData.ItemReservesNonce
	if nonce == "" {
		result.detail("Item reserves nonce missing from attestation")
		return false
	}

	reserves := make(map[core.Item]float64, len(itemReserves))
	for item, reserve := range itemReserves {
		reserves[core.Item(item)] = reserve
	}

	computedHash := core.ComputeItemReservesHash(reserves, nonce)
	if computedHash == userData.ItemReservesHash {
		result.detail("Item reserves hash validation passed: %s", computedHash)
		return true
	}

	result.detail("Item reserves hash mismatch: computed %s, attestation has %s", computedHash, userData.ItemReservesHash)
	return false
}

// validateRecompute reruns the mechanism on the plaintext request and compares
// every commitment and award with the attestation
func validateRecompute(ctx context.Context, req *auctionapi.VCGRequest, userData *auctionapi.OutcomeAttestationUserData, result *OutcomeValidationResult) bool {
	// Step 1: The request must be the one the run committed to
	if req.AuctionID != userData.AuctionID ||
		core.ComputeRequestHash(req.AuctionID, userData.RunID, userData.RequestNonce) != userData.RequestHash {
		result.detail("Request hash mismatch: request is not the attested auction run")
		return false
	}

	// Step 2: Resolve attested exclusions back to bidders
	nonce := userData.BidHashNonce
	bidderByHash := make(map[string]string, len(req.Bidders))
	for _, bidder := range req.BidderIDs() {
		bidderByHash[core.ComputeBidderHash(bidder, nonce)] = bidder
	}
	skip := make([]auctionapi.ExcludedBid, 0, len(userData.Excluded))
	for _, excluded := range userData.Excluded {
		bidder, ok := bidderByHash[excluded.BidderHash]
		if !ok {
			result.detail("Attested exclusion names a bidder not in the request")
			return false
		}
		skip = append(skip, auctionapi.ExcludedBid{Bidder: bidder, Items: excluded.Items, Reason: excluded.Reason})
	}

	bids, err := req.PlainBids(skip)
	if err != nil {
		result.detail("Cannot recompute: %v", err)
		return false
	}

	// Step 3: Bid commitments in request order
	bidHashes := make([]string, 0, len(bids))
	for _, bid := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid.Bidder, bid.Bundle, bid.Value, nonce))
	}
	if !slices.Equal(bidHashes, userData.BidHashes) {
		result.detail("Recomputed bid hashes differ from attestation (%d vs %d)", len(bidHashes), len(userData.BidHashes))
		return false
	}

	// Step 4: Rerun the mechanism under the attested tie-break policy
	policy, err := core.ParseTieBreakPolicy(userData.TieBreak)
	if err != nil {
		result.detail("Attested tie break is invalid: %v", err)
		return false
	}
	opts := core.VCGOptions{Solver: core.ExhaustiveSolver{TieBreak: policy}}
	mechanism, err := core.RunMechanism(ctx, bids, req.BidderIDs(), req.AdjustmentFactors, req.Reserves(), opts)
	if err != nil {
		result.detail("Recomputation failed: %v", err)
		return false
	}

	if !sameAmount(mechanism.VCG.Welfare, userData.Welfare) {
		result.detail("Welfare mismatch: recomputed %.6f, attestation has %.6f", mechanism.VCG.Welfare, userData.Welfare)
		return false
	}

	recomputed := auctionapi.AttestAwards(auctionapi.AwardsFromResult(mechanism.VCG), nonce)
	if len(recomputed) != len(userData.Awards) {
		result.detail("Award count mismatch: recomputed %d, attestation has %d", len(recomputed), len(userData.Awards))
		return false
	}
	for i, award := range recomputed {
		attested := userData.Awards[i]
		if award.BidderHash != attested.BidderHash ||
			!sameBundles(award.Bundles, attested.Bundles) ||
			!sameAmount(award.Payment, attested.Payment) {
			result.detail("Award %d differs from recomputation", i)
			return false
		}
	}

	result.detail("Recomputed outcome matches attestation: welfare=%.6f, %d awards", mechanism.VCG.Welfare, len(recomputed))
	return true
}
