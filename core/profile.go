package core

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxBidValue bounds declared values so fixed-point sums cannot overflow.
const MaxBidValue = 1e12

// pricedBid carries a bid together with its fixed-point value.
type pricedBid struct {
	Bid
	units int64
}

// Profile is an immutable, ordered collection of bids plus the declared bidders.
// The bid order is the enumeration order used by winner determination.
type Profile struct {
	bidders []string
	bids    []pricedBid
}

// NewProfile validates bids and builds a profile.
// bidders lists bidders that take part even if they submitted no bids; any other
// bidder is added in order of first appearance in bids.
// A single malformed bid rejects the whole profile.
func NewProfile(bidders []string, bids []Bid) (*Profile, error) {
	profile := &Profile{
		bidders: make([]string, 0, len(bidders)),
		bids:    make([]pricedBid, 0, len(bids)),
	}

	seenBidders := make(map[string]bool, len(bidders))
	for _, bidder := range bidders {
		if bidder == "" {
			return nil, &BidError{Index: -1, Bidder: bidder, Err: ErrEmptyBidder}
		}
		if !seenBidders[bidder] {
			seenBidders[bidder] = true
			profile.bidders = append(profile.bidders, bidder)
		}
	}

	seenBundles := make(map[string]map[string]bool)
	for i, bid := range bids {
		if err := ValidateBid(bid); err != nil {
			return nil, &BidError{Index: i, Bidder: bid.Bidder, Err: err}
		}

		named := seenBundles[bid.Bidder]
		if named == nil {
			named = make(map[string]bool)
			seenBundles[bid.Bidder] = named
		}
		key := bid.Bundle.Key()
		if named[key] {
			return nil, &BidError{Index: i, Bidder: bid.Bidder, Err: ErrDuplicateBundle}
		}
		named[key] = true

		if !seenBidders[bid.Bidder] {
			seenBidders[bid.Bidder] = true
			profile.bidders = append(profile.bidders, bid.Bidder)
		}
		profile.bids = append(profile.bids, pricedBid{Bid: bid, units: toUnits(bid.Value)})
	}

	return profile, nil
}

// FromValuations flattens a bidder→bundles mapping into a profile.
// Bidders are ordered lexicographically and each bidder's bundles keep their given order,
// so the same mapping always yields the same enumeration order.
func FromValuations(valuations Valuations) (*Profile, error) {
	bidders := make([]string, 0, len(valuations))
	for bidder := range valuations {
		bidders = append(bidders, bidder)
	}
	sort.Strings(bidders)

	bids := make([]Bid, 0)
	for _, bidder := range bidders {
		for _, entry := range valuations[bidder] {
			bids = append(bids, Bid{Bidder: bidder, Bundle: entry.Bundle, Value: entry.Value})
		}
	}

	return NewProfile(bidders, bids)
}

// ValidateBid checks a single bid for the malformed-bid conditions.
func ValidateBid(bid Bid) error {
	if bid.Bidder == "" {
		return ErrEmptyBidder
	}
	if bid.Bundle.IsEmpty() {
		return ErrEmptyBundle
	}
	if math.IsNaN(bid.Value) || math.IsInf(bid.Value, 0) || bid.Value > MaxBidValue {
		return fmt.Errorf("%w: %v", ErrInvalidValue, bid.Value)
	}
	if bid.Value < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeValue, bid.Value)
	}
	if !representable(bid.Value) {
		return fmt.Errorf("%w: %v has more than %d decimal places", ErrInvalidValue, bid.Value, monetaryPrecision)
	}
	return nil
}

// representable reports whether value is exact at monetaryPrecision.
func representable(value float64) bool {
	d := decimal.NewFromFloat(value)
	return d.Equal(d.Round(monetaryPrecision))
}

// ValidateMarketParams checks adjustment factors and item reserves.
// Factors must be finite and non-negative, with at most one key per bidder
// under case folding. Reserves must be finite, non-negative and exact at
// monetary precision.
func ValidateMarketParams(adjustmentFactors map[string]float64, itemReserves map[Item]float64) error {
	folded := make(map[string]string, len(adjustmentFactors))
	for bidder, factor := range adjustmentFactors {
		if math.IsNaN(factor) || math.IsInf(factor, 0) {
			return fmt.Errorf("%w: %v for bidder %s", ErrInvalidFactor, factor, bidder)
		}
		if factor < 0 {
			return fmt.Errorf("%w: negative adjustment factor %.4f for bidder %s", ErrInvalidFactor, factor, bidder)
		}
		key := strings.ToLower(bidder)
		if other, ok := folded[key]; ok {
			return fmt.Errorf("%w: bidders %s and %s differ only in case", ErrInvalidFactor, other, bidder)
		}
		folded[key] = bidder
	}
	for item, reserve := range itemReserves {
		if math.IsNaN(reserve) || math.IsInf(reserve, 0) || reserve > MaxBidValue {
			return fmt.Errorf("%w: %v for item %s", ErrInvalidReserve, reserve, item)
		}
		if reserve < 0 {
			return fmt.Errorf("%w: negative reserve price %.4f for item %s", ErrInvalidReserve, reserve, item)
		}
		if !representable(reserve) {
			return fmt.Errorf("%w: %v for item %s has more than %d decimal places", ErrInvalidReserve, reserve, item, monetaryPrecision)
		}
	}
	return nil
}

// Len returns the number of bids.
func (p *Profile) Len() int {
	return len(p.bids)
}

// Bid returns the i-th bid in enumeration order.
func (p *Profile) Bid(i int) Bid {
	return p.bids[i].Bid
}

// Bids returns a copy of the bids in enumeration order.
func (p *Profile) Bids() []Bid {
	bids := make([]Bid, len(p.bids))
	for i, entry := range p.bids {
		bids[i] = entry.Bid
	}
	return bids
}

// Bidders returns the declared bidders in order.
func (p *Profile) Bidders() []string {
	return slices.Clone(p.bidders)
}

// BidsOf returns the bids submitted by bidder.
func (p *Profile) BidsOf(bidder string) []Bid {
	bids := make([]Bid, 0)
	for _, entry := range p.bids {
		if entry.Bidder == bidder {
			bids = append(bids, entry.Bid)
		}
	}
	return bids
}

// Items returns every item named by any bid, sorted.
func (p *Profile) Items() []Item {
	seen := make(map[Item]bool)
	items := make([]Item, 0)
	for _, entry := range p.bids {
		for _, item := range entry.Bundle.items {
			if !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}
	slices.Sort(items)
	return items
}

// Exclude returns a view of the profile without bidder and all of bidder's bids.
// Bid values and bundles are shared with the receiver, only the index is rebuilt.
func (p *Profile) Exclude(bidder string) *Profile {
	view := &Profile{
		bidders: make([]string, 0, len(p.bidders)),
		bids:    make([]pricedBid, 0, len(p.bids)),
	}
	for _, b := range p.bidders {
		if b != bidder {
			view.bidders = append(view.bidders, b)
		}
	}
	for _, entry := range p.bids {
		if entry.Bidder != bidder {
			view.bids = append(view.bids, entry)
		}
	}
	return view
}

// unitsOf returns the fixed-point value of the i-th bid.
func (p *Profile) unitsOf(i int) int64 {
	return p.bids[i].units
}
