package auctionapi

import (
	"fmt"

	"github.com/cloudx-io/vcgauction/core"
)

// Bundle returns the canonical bundle named by the bid.
func (b BundleBid) Bundle() core.Bundle {
	return core.BundleOf(b.Items...)
}

// BidderIDs returns the bidders in request order.
func (r *VCGRequest) BidderIDs() []string {
	ids := make([]string, 0, len(r.Bidders))
	for _, bidder := range r.Bidders {
		ids = append(ids, bidder.Bidder)
	}
	return ids
}

// Reserves converts the item reserve map to core items.
func (r *VCGRequest) Reserves() map[core.Item]float64 {
	if len(r.ItemReserves) == 0 {
		return nil
	}
	reserves := make(map[core.Item]float64, len(r.ItemReserves))
	for item, reserve := range r.ItemReserves {
		reserves[core.Item(item)] = reserve
	}
	return reserves
}

// PlainBids flattens a request whose values are all in the clear.
// Bids whose (bidder, bundle) appears in skip are left out.
func (r *VCGRequest) PlainBids(skip []ExcludedBid) ([]core.Bid, error) {
	skipped := make(map[string]bool, len(skip))
	for _, excluded := range skip {
		skipped[excluded.Bidder+"|"+core.BundleOf(excluded.Items...).Key()] = true
	}

	bids := make([]core.Bid, 0)
	for _, valuation := range r.Bidders {
		for _, bid := range valuation.Bids {
			bundle := bid.Bundle()
			if skipped[valuation.Bidder+"|"+bundle.Key()] {
				continue
			}
			if bid.EncryptedValue != nil {
				return nil, fmt.Errorf("bid of %s for %s is encrypted", valuation.Bidder, bundle)
			}
			bids = append(bids, core.Bid{Bidder: valuation.Bidder, Bundle: bundle, Value: bid.Value})
		}
	}
	return bids, nil
}

// AwardsFromResult converts a VCG result into wire awards, one per declared bidder.
func AwardsFromResult(result *core.VCGResult) []Award {
	awards := make([]Award, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		bundles := make([][]string, 0, len(outcome.Bundles))
		for _, bundle := range outcome.Bundles {
			bundles = append(bundles, bundle.Labels())
		}
		awards = append(awards, Award{
			Bidder:         outcome.Bidder,
			Bundles:        bundles,
			Value:          outcome.Value,
			Payment:        outcome.Payment,
			WelfareWithout: outcome.WelfareWithout,
		})
	}
	return awards
}

// AttestAwards strips bidder identity from awards using salted bidder hashes.
func AttestAwards(awards []Award, nonce string) []AttestedAward {
	attested := make([]AttestedAward, 0, len(awards))
	for _, award := range awards {
		attested = append(attested, AttestedAward{
			BidderHash: core.ComputeBidderHash(award.Bidder, nonce),
			Bundles:    award.Bundles,
			Payment:    award.Payment,
		})
	}
	return attested
}

// AttestExclusions strips bidder identity from excluded bids using salted bidder hashes.
func AttestExclusions(excluded []ExcludedBid, nonce string) []AttestedExclusion {
	attested := make([]AttestedExclusion, 0, len(excluded))
	for _, bid := range excluded {
		attested = append(attested, AttestedExclusion{
			BidderHash: core.ComputeBidderHash(bid.Bidder, nonce),
			Items:      bid.Items,
			Reason:     bid.Reason,
		})
	}
	return attested
}

// RejectedToExcluded converts reserve-rejected core bids to wire form.
func RejectedToExcluded(rejected []core.RejectedBid) []ExcludedBid {
	excluded := make([]ExcludedBid, 0, len(rejected))
	for _, r := range rejected {
		excluded = append(excluded, ExcludedBid{
			Bidder: r.Bid.Bidder,
			Items:  r.Bid.Bundle.Labels(),
			Reason: r.Reason,
		})
	}
	return excluded
}
