package core

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 4 // 4 decimal places for bid values (0.0001 precision)

// toUnits converts a value to fixed-point units of 10^-monetaryPrecision.
// Uses decimal arithmetic so that equal declared values always produce equal units.
func toUnits(value float64) int64 {
	return decimal.NewFromFloat(value).Round(monetaryPrecision).Shift(monetaryPrecision).IntPart()
}

// fromUnits converts fixed-point units back to a float value.
func fromUnits(units int64) float64 {
	value, _ := decimal.New(units, -monetaryPrecision).Float64()
	return value
}

// formatUnits renders fixed-point units with monetaryPrecision decimals.
func formatUnits(units int64) string {
	return decimal.New(units, -monetaryPrecision).StringFixed(monetaryPrecision)
}

// ReservePrice returns the sum of the reserve prices of the bundle's items.
// Items without a reserve contribute zero.
func ReservePrice(bundle Bundle, itemReserves map[Item]float64) float64 {
	return fromUnits(reserveUnits(bundle, itemReserves))
}

func reserveUnits(bundle Bundle, itemReserves map[Item]float64) int64 {
	var units int64
	for _, item := range bundle.items {
		if reserve, ok := itemReserves[item]; ok {
			units += toUnits(reserve)
		}
	}
	return units
}

// BidMeetsReserve returns true if the bid value meets or exceeds the reserve price of its bundle.
// Uses decimal arithmetic with monetaryPrecision to avoid floating-point errors.
func BidMeetsReserve(bid Bid, itemReserves map[Item]float64) bool {
	return toUnits(bid.Value) >= reserveUnits(bid.Bundle, itemReserves)
}

// EnforceItemReserves filters bids against per-item reserve prices.
// Returns eligible bids and the rejected ones.
// If no reserves are configured, every bid passes without enforcement.
func EnforceItemReserves(bids []Bid, itemReserves map[Item]float64) (eligible []Bid, rejected []RejectedBid) {
	eligibleBids := make([]Bid, 0, len(bids))
	rejectedBids := make([]RejectedBid, 0)

	if len(itemReserves) == 0 {
		return append(eligibleBids, bids...), rejectedBids
	}

	for _, bid := range bids {
		if BidMeetsReserve(bid, itemReserves) {
			eligibleBids = append(eligibleBids, bid)
		} else {
			rejectedBids = append(rejectedBids, RejectedBid{
				Bid:    bid,
				Reason: "below_reserve",
			})
		}
	}

	return eligibleBids, rejectedBids
}
