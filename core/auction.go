package core

import (
	"context"
	"fmt"
)

// RunMechanism executes the full mechanism: adjustment → reserve enforcement → VCG.
// This function provides a unified implementation used by both the sealed
// auctioneer and local processing (CLI, validators recomputing an outcome).
//
// Parameters:
//   - bids: Input bids (should already be decrypted if from the auctioneer)
//   - bidders: Declared bidders, including any whose bids were all excluded
//   - adjustmentFactors: Per-bidder value multipliers
//   - itemReserves: Per-item reserve prices
//   - opts: Solver and concurrency settings for the VCG computation
//
// Processing flow:
//  1. Reject the whole input if any bid, factor or reserve is malformed
//  2. Apply value adjustment factors (multipliers per bidder)
//  3. Enforce per-item reserve prices
//  4. Build the profile of eligible bids
//  5. Compute the efficient allocation and VCG payments
func RunMechanism(
	ctx context.Context,
	bids []Bid,
	bidders []string,
	adjustmentFactors map[string]float64,
	itemReserves map[Item]float64,
	opts VCGOptions,
) (*MechanismResult, error) {
	prepared, err := PrepareBids(bids, bidders, adjustmentFactors, itemReserves)
	if err != nil {
		return nil, err
	}

	// Step 5: Efficient allocation and payments
	vcg, err := ComputeVCGPayments(ctx, prepared.Profile, opts)
	if err != nil {
		return nil, err
	}

	return &MechanismResult{
		VCG:             vcg,
		EligibleBids:    prepared.Eligible,
		ReserveRejected: prepared.ReserveRejected,
	}, nil
}

// PreparedBids is the input to winner determination after validation,
// adjustment and reserve enforcement.
type PreparedBids struct {
	Profile         *Profile
	Eligible        []Bid
	ReserveRejected []RejectedBid
}

// PrepareBids runs steps 1 to 4 of the mechanism. Anything that only needs the
// efficient allocation uses it so malformed input fails the same way everywhere.
func PrepareBids(
	bids []Bid,
	bidders []string,
	adjustmentFactors map[string]float64,
	itemReserves map[Item]float64,
) (*PreparedBids, error) {
	// Step 1: Validate before anything can filter a malformed bid away
	if err := ValidateMarketParams(adjustmentFactors, itemReserves); err != nil {
		return nil, err
	}
	if _, err := NewProfile(bidders, bids); err != nil {
		return nil, fmt.Errorf("invalid bid profile: %w", err)
	}

	// Step 2: Apply value adjustment factors
	adjustedBids := bids
	if len(adjustmentFactors) > 0 {
		adjustedBids = ApplyValueAdjustmentFactors(bids, adjustmentFactors)
	}

	// Step 3: Enforce per-item reserve prices
	eligibleBids, rejectedBids := EnforceItemReserves(adjustedBids, itemReserves)
	reserveRejections.Add(float64(len(rejectedBids)))

	// Step 4: Build the profile over eligible bids; reserve-rejected bidders stay declared
	declared := make([]string, 0, len(bidders)+len(adjustedBids))
	declared = append(declared, bidders...)
	for _, bid := range adjustedBids {
		declared = append(declared, bid.Bidder)
	}
	profile, err := NewProfile(declared, eligibleBids)
	if err != nil {
		return nil, fmt.Errorf("invalid bid profile: %w", err)
	}

	return &PreparedBids{
		Profile:         profile,
		Eligible:        eligibleBids,
		ReserveRejected: rejectedBids,
	}, nil
}
