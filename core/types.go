package core

import (
	"errors"
	"fmt"
)

// Item is an opaque label for one indivisible good.
type Item string

// Bid is a bidder's declared value for receiving exactly one bundle.
type Bid struct {
	Bidder string  `json:"bidder"`
	Bundle Bundle  `json:"bundle"`
	Value  float64 `json:"value"`
}

// String renders the bid as bidder:{items}=value.
func (b Bid) String() string {
	return fmt.Sprintf("%s:%s=%.4f", b.Bidder, b.Bundle, b.Value)
}

// BundleValue is one bundle→value entry of a bidder's valuation.
type BundleValue struct {
	Bundle Bundle  `json:"bundle"`
	Value  float64 `json:"value"`
}

// Valuations maps bidder identifier to the bundles that bidder names.
type Valuations map[string][]BundleValue

// Allocation is a set of bids, at most one per bidder, with pairwise-disjoint bundles.
type Allocation struct {
	// Bids in enumeration order (ascending profile index)
	Bids []Bid `json:"bids"`

	// Value is the sum of the values of Bids
	Value float64 `json:"value"`
}

// BundlesFor returns the bundles the allocation awards to bidder.
func (a Allocation) BundlesFor(bidder string) []Bundle {
	bundles := make([]Bundle, 0, 1)
	for _, bid := range a.Bids {
		if bid.Bidder == bidder {
			bundles = append(bundles, bid.Bundle)
		}
	}
	return bundles
}

// ValueFor returns the declared value of the bids awarded to bidder.
func (a Allocation) ValueFor(bidder string) float64 {
	var units int64
	for _, bid := range a.Bids {
		if bid.Bidder == bidder {
			units += toUnits(bid.Value)
		}
	}
	return fromUnits(units)
}

// Winners returns the bidders that receive a bundle, in allocation order.
func (a Allocation) Winners() []string {
	winners := make([]string, 0, len(a.Bids))
	for _, bid := range a.Bids {
		winners = append(winners, bid.Bidder)
	}
	return winners
}

// BidderOutcome is one bidder's share of a VCG run.
type BidderOutcome struct {
	Bidder string `json:"bidder"`

	// Bundles awarded by the efficient allocation (normally zero or one)
	Bundles []Bundle `json:"bundles"`

	// Value is the declared value of the awarded bundles
	Value float64 `json:"value"`

	// Payment is the externality the bidder imposes on everyone else
	Payment float64 `json:"payment"`

	// WelfareWithout is the optimal welfare of the profile with this bidder removed
	WelfareWithout float64 `json:"welfare_without"`
}

// VCGResult contains the efficient allocation and every declared bidder's payment.
type VCGResult struct {
	Allocation Allocation      `json:"allocation"`
	Welfare    float64         `json:"welfare"`
	Outcomes   []BidderOutcome `json:"outcomes"`
}

// Outcome returns the outcome recorded for bidder.
func (r *VCGResult) Outcome(bidder string) (BidderOutcome, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.Bidder == bidder {
			return outcome, true
		}
	}
	return BidderOutcome{}, false
}

// Payments returns the payment vector keyed by bidder.
func (r *VCGResult) Payments() map[string]float64 {
	payments := make(map[string]float64, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		payments[outcome.Bidder] = outcome.Payment
	}
	return payments
}

// TotalPayments sums all payments using fixed-point arithmetic.
func (r *VCGResult) TotalPayments() float64 {
	var units int64
	for _, outcome := range r.Outcomes {
		units += toUnits(outcome.Payment)
	}
	return fromUnits(units)
}

// RejectedBid is a bid excluded from the mechanism before winner determination.
type RejectedBid struct {
	Bid    Bid    `json:"bid"`
	Reason string `json:"reason"`
}

// MechanismResult contains the complete results of running the mechanism pipeline.
type MechanismResult struct {
	// VCG holds the efficient allocation and payments over eligible bids
	VCG *VCGResult

	// EligibleBids contains all bids that passed reserve enforcement, after adjustment
	EligibleBids []Bid

	// ReserveRejected contains bids whose value did not cover their items' reserve prices
	ReserveRejected []RejectedBid
}

var (
	ErrEmptyBundle     = errors.New("bundle is empty")
	ErrNegativeValue   = errors.New("value is negative")
	ErrInvalidValue    = errors.New("value is not a finite number within range")
	ErrEmptyBidder     = errors.New("bidder identifier is empty")
	ErrDuplicateBundle = errors.New("bidder names the same bundle twice")
	ErrTooManyBids     = errors.New("too many bids for exhaustive winner determination")
	ErrNegativePayment = errors.New("computed payment is negative")
	ErrInvalidFactor   = errors.New("invalid adjustment factor")
	ErrInvalidReserve  = errors.New("invalid reserve price")
)

// BidError reports a malformed bid and its position in the input.
type BidError struct {
	Index  int
	Bidder string
	Err    error
}

func (e *BidError) Error() string {
	return fmt.Sprintf("malformed bid %d (bidder %q): %v", e.Index, e.Bidder, e.Err)
}

func (e *BidError) Unwrap() error {
	return e.Err
}
