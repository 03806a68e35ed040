// Package profilefile loads auction profiles written as YAML documents.
package profilefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/vcgauction/auctionapi"
	"github.com/cloudx-io/vcgauction/core"
)

// File is one auction: its bidders, their bundle bids and the run settings.
//
//	auction_id: spectrum-7
//	tie_break: first
//	item_reserves: {A: 1.5}
//	adjustment_factors: {north: 0.9}
//	bidders:
//	  - bidder: north
//	    bids:
//	      - items: [A, B]
//	        value: 12
type File struct {
	AuctionID         string             `yaml:"auction_id"`
	TieBreak          string             `yaml:"tie_break,omitempty"`
	ItemReserves      map[string]float64 `yaml:"item_reserves,omitempty"`
	AdjustmentFactors map[string]float64 `yaml:"adjustment_factors,omitempty"`
	BidderList        []Bidder           `yaml:"bidders"`
}

// Bidder lists one bidder's bundle bids. A bidder with no bids is still
// declared and receives an outcome.
type Bidder struct {
	Bidder string      `yaml:"bidder"`
	Bids   []BundleBid `yaml:"bids,omitempty"`
}

type BundleBid struct {
	Items []string `yaml:"items"`
	Value float64  `yaml:"value"`
}

// Load reads and parses the profile at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a profile document. Unknown keys are rejected.
func Parse(raw []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty profile")
		}
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the document shape, factors and reserves. Bid values are checked by the mechanism.
func (f *File) Validate() error {
	if strings.TrimSpace(f.AuctionID) == "" {
		return fmt.Errorf("auction_id is required")
	}
	if len(f.BidderList) == 0 {
		return fmt.Errorf("at least one bidder is required")
	}
	seen := make(map[string]bool, len(f.BidderList))
	for i, b := range f.BidderList {
		if strings.TrimSpace(b.Bidder) == "" {
			return fmt.Errorf("bidders[%d]: bidder is required", i)
		}
		if seen[b.Bidder] {
			return fmt.Errorf("bidders[%d]: duplicate bidder %q", i, b.Bidder)
		}
		seen[b.Bidder] = true
	}
	if _, err := core.ParseTieBreakPolicy(f.TieBreak); err != nil {
		return err
	}
	return core.ValidateMarketParams(f.AdjustmentFactors, f.Reserves())
}

// Bidders returns the declared bidders in document order.
func (f *File) Bidders() []string {
	ids := make([]string, 0, len(f.BidderList))
	for _, b := range f.BidderList {
		ids = append(ids, b.Bidder)
	}
	return ids
}

// Bids flattens every bidder's bundle bids in document order.
func (f *File) Bids() []core.Bid {
	bids := make([]core.Bid, 0)
	for _, b := range f.BidderList {
		for _, bid := range b.Bids {
			bids = append(bids, core.Bid{
				Bidder: b.Bidder,
				Bundle: core.BundleOf(bid.Items...),
				Value:  bid.Value,
			})
		}
	}
	return bids
}

// Reserves converts the item reserves to core items.
func (f *File) Reserves() map[core.Item]float64 {
	if len(f.ItemReserves) == 0 {
		return nil
	}
	reserves := make(map[core.Item]float64, len(f.ItemReserves))
	for item, reserve := range f.ItemReserves {
		reserves[core.Item(item)] = reserve
	}
	return reserves
}

// Options returns solver options honouring the document's tie-break policy.
func (f *File) Options(maxBids, workers int) (core.VCGOptions, error) {
	policy, err := core.ParseTieBreakPolicy(f.TieBreak)
	if err != nil {
		return core.VCGOptions{}, err
	}
	return core.VCGOptions{
		Solver: core.ExhaustiveSolver{TieBreak: policy, MaxBids: maxBids, Workers: workers},
	}, nil
}

// Request builds the plaintext wire request for an auctioneer.
func (f *File) Request() auctionapi.VCGRequest {
	bidders := make([]auctionapi.BidderValuation, 0, len(f.BidderList))
	for _, b := range f.BidderList {
		bids := make([]auctionapi.BundleBid, 0, len(b.Bids))
		for _, bid := range b.Bids {
			bids = append(bids, auctionapi.BundleBid{Items: bid.Items, Value: bid.Value})
		}
		bidders = append(bidders, auctionapi.BidderValuation{Bidder: b.Bidder, Bids: bids})
	}
	return auctionapi.VCGRequest{
		Type:              auctionapi.TypeVCGRequest,
		AuctionID:         f.AuctionID,
		Bidders:           bidders,
		AdjustmentFactors: f.AdjustmentFactors,
		ItemReserves:      f.ItemReserves,
		TieBreak:          f.TieBreak,
		Timestamp:         time.Now().UTC(),
	}
}
