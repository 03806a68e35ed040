package core

// IsAdmissible reports whether bids can be granted together: no bidder appears
// more than once and no item is claimed by more than one bid.
// The empty set is admissible.
//
// Disjointness is checked against a running union of the items accumulated so
// far, so the cost is linear in the total bundle size.
func IsAdmissible(bids []Bid) bool {
	bidders := make(map[string]struct{}, len(bids))
	claimed := make(map[Item]struct{})

	for _, bid := range bids {
		if _, dup := bidders[bid.Bidder]; dup {
			return false
		}
		bidders[bid.Bidder] = struct{}{}

		for _, item := range bid.Bundle.items {
			if _, taken := claimed[item]; taken {
				return false
			}
		}
		for _, item := range bid.Bundle.items {
			claimed[item] = struct{}{}
		}
	}

	return true
}

// bitset is a fixed-width set of small non-negative integers.
type bitset []uint64

func newBitset(size int) bitset {
	return make(bitset, (size+63)/64)
}

func (s bitset) set(i int) {
	s[i/64] |= 1 << (uint(i) % 64)
}

func (s bitset) intersects(other bitset) bool {
	for w := range s {
		if s[w]&other[w] != 0 {
			return true
		}
	}
	return false
}

func (s bitset) union(other bitset) {
	for w := range s {
		s[w] |= other[w]
	}
}

func (s bitset) clear() {
	for w := range s {
		s[w] = 0
	}
}

// compiledProfile indexes bidders and items so candidates can be checked with bit operations.
type compiledProfile struct {
	n          int
	bidderIdx  []int    // bidder index per bid
	itemMasks  []bitset // items claimed per bid
	units      []int64  // fixed-point value per bid
	numItems   int
	numBidders int
}

func compileProfile(p *Profile) *compiledProfile {
	c := &compiledProfile{
		n:         p.Len(),
		bidderIdx: make([]int, p.Len()),
		itemMasks: make([]bitset, p.Len()),
		units:     make([]int64, p.Len()),
	}

	items := p.Items()
	itemIdx := make(map[Item]int, len(items))
	for i, item := range items {
		itemIdx[item] = i
	}
	c.numItems = len(items)

	bidderIdx := make(map[string]int)
	for i := 0; i < p.Len(); i++ {
		bid := p.Bid(i)
		idx, ok := bidderIdx[bid.Bidder]
		if !ok {
			idx = len(bidderIdx)
			bidderIdx[bid.Bidder] = idx
		}
		c.bidderIdx[i] = idx

		mask := newBitset(c.numItems)
		for _, item := range bid.Bundle.items {
			mask.set(itemIdx[item])
		}
		c.itemMasks[i] = mask
		c.units[i] = p.unitsOf(i)
	}
	c.numBidders = len(bidderIdx)

	return c
}

// candidate is the scratch state for evaluating one subset. Each worker owns one.
type candidate struct {
	items   bitset
	bidders bitset
}

func (c *compiledProfile) newCandidate() *candidate {
	return &candidate{
		items:   newBitset(c.numItems),
		bidders: newBitset(c.numBidders),
	}
}

// evaluate checks admissibility of the subset encoded by mask with the same
// running-union rule as IsAdmissible, returning its value in fixed-point units.
func (c *compiledProfile) evaluate(mask uint64, cand *candidate) (int64, bool) {
	cand.items.clear()
	cand.bidders.clear()

	var total int64
	for j := 0; j < c.n; j++ {
		if mask&(1<<uint(j)) == 0 {
			continue
		}
		b := c.bidderIdx[j]
		if cand.bidders[b/64]&(1<<(uint(b)%64)) != 0 {
			return 0, false
		}
		cand.bidders.set(b)

		if cand.items.intersects(c.itemMasks[j]) {
			return 0, false
		}
		cand.items.union(c.itemMasks[j])
		total += c.units[j]
	}
	return total, true
}
