package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeBidHash computes the commitment hash of one bid.
// This is used by both the auctioneer (to generate hashes) and validation (to verify hashes).
//
// Formula: SHA256(bidder + "|" + bundle_key + "|" + sprintf("%.6f", value) + "|" + nonce)
//
// The bundle key is the canonical comma-joined item list, so item order in the
// request does not change the hash. The value is formatted to exactly 6 decimal
// places regardless of how the float is represented in memory.
func ComputeBidHash(bidder string, bundle Bundle, value float64, nonce string) string {
	data := fmt.Sprintf("%s|%s|%.6f|%s", bidder, bundle.Key(), value, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeBidderHash computes the salted bidder identity hash used in attested awards.
//
// Formula: SHA256(bidder + "|" + nonce)
func ComputeBidderHash(bidder string, nonce string) string {
	data := fmt.Sprintf("%s|%s", bidder, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeRequestHash computes the auction request hash.
//
// Formula: SHA256(auction_id + "|" + run_id + "|" + nonce)
func ComputeRequestHash(auctionID string, runID string, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s", auctionID, runID, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeAdjustmentFactorsHash computes the adjustment factors hash.
//
// Formula: SHA256(nonce + "|" + sorted_key_value_pairs)
// where sorted_key_value_pairs = "bidder1:factor1|bidder2:factor2|..." (sorted by bidder name)
//
// Factors are formatted to exactly 6 decimal places for consistent hashing.
func ComputeAdjustmentFactorsHash(adjustmentFactors map[string]float64, nonce string) string {
	data := nonce

	// Sort bidders to ensure deterministic hash calculation
	bidders := make([]string, 0, len(adjustmentFactors))
	for bidder := range adjustmentFactors {
		bidders = append(bidders, bidder)
	}
	sort.Strings(bidders)

	for _, bidder := range bidders {
		factor := adjustmentFactors[bidder]
		data += fmt.Sprintf("|%s:%.6f", bidder, factor)
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeItemReservesHash computes the item reserves hash, same layout as
// ComputeAdjustmentFactorsHash with items in place of bidders.
func ComputeItemReservesHash(itemReserves map[Item]float64, nonce string) string {
	data := nonce

	items := make([]string, 0, len(itemReserves))
	for item := range itemReserves {
		items = append(items, string(item))
	}
	sort.Strings(items)

	for _, item := range items {
		data += fmt.Sprintf("|%s:%.6f", item, itemReserves[Item(item)])
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
