package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// workedProfile is the five-bidder dataset over items A-D.
func workedProfile(t *testing.T) *Profile {
	t.Helper()
	profile, err := FromValuations(Valuations{
		"a": {{Bundle: BundleOf("A", "B"), Value: 10}, {Bundle: BundleOf("D"), Value: 7}},
		"b": {{Bundle: BundleOf("C"), Value: 10}},
		"c": {{Bundle: BundleOf("D"), Value: 10}},
		"d": {{Bundle: BundleOf("C"), Value: 5}, {Bundle: BundleOf("C", "D"), Value: 12}},
		"e": {{Bundle: BundleOf("A", "B"), Value: 11}},
	})
	assert.NoError(t, err)
	return profile
}

// randomProfile builds a reproducible profile of n bids over a small item universe.
func randomProfile(t *testing.T, seed uint64, n int) *Profile {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	items := []string{"A", "B", "C", "D", "E", "F"}

	bids := make([]Bid, 0, n)
	seen := make(map[string]bool)
	for len(bids) < n {
		bidder := fmt.Sprintf("bidder_%d", rng.IntN(n/2+1))
		labels := make([]string, 0, 3)
		for _, item := range items {
			if rng.IntN(3) == 0 {
				labels = append(labels, item)
			}
		}
		if len(labels) == 0 {
			labels = append(labels, items[rng.IntN(len(items))])
		}
		bundle := BundleOf(labels...)
		if seen[bidder+"|"+bundle.Key()] {
			continue
		}
		seen[bidder+"|"+bundle.Key()] = true
		bids = append(bids, Bid{Bidder: bidder, Bundle: bundle, Value: float64(rng.IntN(20))})
	}

	profile, err := NewProfile(nil, bids)
	assert.NoError(t, err)
	return profile
}

// bruteForceOptimum checks every subset with IsAdmissible and returns the best value in units.
func bruteForceOptimum(profile *Profile) int64 {
	var best int64
	for mask := uint64(0); mask < 1<<uint(profile.Len()); mask++ {
		subset := make([]Bid, 0)
		var units int64
		for j := 0; j < profile.Len(); j++ {
			if mask&(1<<uint(j)) != 0 {
				subset = append(subset, profile.Bid(j))
				units += toUnits(profile.Bid(j).Value)
			}
		}
		if IsAdmissible(subset) && units > best {
			best = units
		}
	}
	return best
}

func TestComputeWinner_WorkedProfile(t *testing.T) {
	allocation, err := ComputeWinner(context.Background(), workedProfile(t))
	assert.NoError(t, err)

	check.Equal(t, 31.0, allocation.Value)
	check.True(t, IsAdmissible(allocation.Bids))
	check.Equal(t, []string{"b", "c", "e"}, allocation.Winners())
	check.Equal(t, "A,B", allocation.BundlesFor("e")[0].Key())
	check.Equal(t, "C", allocation.BundlesFor("b")[0].Key())
	check.Equal(t, "D", allocation.BundlesFor("c")[0].Key())
	check.Equal(t, 0, len(allocation.BundlesFor("a")))
	check.Equal(t, 11.0, allocation.ValueFor("e"))
}

func TestComputeWinner_Degenerate(t *testing.T) {
	profile, err := NewProfile(nil, nil)
	assert.NoError(t, err)

	allocation, err := ComputeWinner(context.Background(), profile)
	assert.NoError(t, err)

	check.Equal(t, 0.0, allocation.Value)
	check.NotNil(t, allocation.Bids)
	check.Equal(t, 0, len(allocation.Bids))
}

func TestComputeWinner_ZeroValueBids(t *testing.T) {
	profile, err := NewProfile(nil, []Bid{{Bidder: "a", Bundle: BundleOf("A"), Value: 0}})
	assert.NoError(t, err)

	allocation, err := ComputeWinner(context.Background(), profile)
	assert.NoError(t, err)

	// The zero-value bid ties the empty allocation and is enumerated later
	check.Equal(t, 0.0, allocation.Value)
	check.Equal(t, []string{"a"}, allocation.Winners())
}

func TestExhaustiveSolver_MatchesBruteForce(t *testing.T) {
	for seed := uint64(1); seed <= 12; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			profile := randomProfile(t, seed, 10)

			allocation, err := ExhaustiveSolver{}.Solve(context.Background(), profile)
			assert.NoError(t, err)

			check.True(t, IsAdmissible(allocation.Bids))
			check.Equal(t, bruteForceOptimum(profile), toUnits(allocation.Value))
			check.Equal(t, allocation.Value, fromUnits(allocationUnits(allocation)))
		})
	}
}

func TestExhaustiveSolver_TieBreak(t *testing.T) {
	profile, err := NewProfile(nil, []Bid{
		{Bidder: "a", Bundle: BundleOf("A"), Value: 5},
		{Bidder: "b", Bundle: BundleOf("A"), Value: 5},
	})
	assert.NoError(t, err)

	tests := []struct {
		policy TieBreakPolicy
		winner string
	}{
		{TieBreakLatest, "b"},
		{TieBreakFirst, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			allocation, err := ExhaustiveSolver{TieBreak: tt.policy}.Solve(context.Background(), profile)
			assert.NoError(t, err)

			check.Equal(t, 5.0, allocation.Value)
			check.Equal(t, []string{tt.winner}, allocation.Winners())
		})
	}
}

func TestExhaustiveSolver_ParallelMatchesSequential(t *testing.T) {
	// Sixteen equal-value single-item bids produce many ties across chunks.
	bids := make([]Bid, 0, 16)
	for i := 0; i < 16; i++ {
		bids = append(bids, Bid{
			Bidder: fmt.Sprintf("bidder_%02d", i),
			Bundle: BundleOf(string(rune('A' + i%4))),
			Value:  3,
		})
	}
	profile, err := NewProfile(nil, bids)
	assert.NoError(t, err)

	for _, policy := range []TieBreakPolicy{TieBreakLatest, TieBreakFirst} {
		t.Run(policy.String(), func(t *testing.T) {
			sequential, err := ExhaustiveSolver{TieBreak: policy}.Solve(context.Background(), profile)
			assert.NoError(t, err)

			for _, workers := range []int{2, 3, 4} {
				parallel, err := ExhaustiveSolver{TieBreak: policy, Workers: workers}.Solve(context.Background(), profile)
				assert.NoError(t, err)

				check.Equal(t, sequential.Value, parallel.Value)
				check.Equal(t, sequential.Winners(), parallel.Winners())
			}
			check.Equal(t, 12.0, sequential.Value)
		})
	}
}

func TestExhaustiveSolver_WorkersClampedToSearchSize(t *testing.T) {
	profile := workedProfile(t)

	sequential, err := ExhaustiveSolver{}.Solve(context.Background(), profile)
	assert.NoError(t, err)

	for _, workers := range []int{math.MaxInt, math.MaxInt32, 1 << 20} {
		allocation, err := ExhaustiveSolver{Workers: workers}.Solve(context.Background(), profile)
		assert.NoError(t, err)
		check.Equal(t, sequential.Value, allocation.Value)
		check.Equal(t, sequential.Winners(), allocation.Winners())
	}
}

func TestExhaustiveSolver_TooManyBids(t *testing.T) {
	profile := randomProfile(t, 7, 5)

	_, err := ExhaustiveSolver{MaxBids: 4}.Solve(context.Background(), profile)
	check.True(t, errors.Is(err, ErrTooManyBids))

	_, err = ExhaustiveSolver{MaxBids: 5}.Solve(context.Background(), profile)
	check.NoError(t, err)

	bids := make([]Bid, 0, maxMaskWidth+1)
	for i := 0; i <= maxMaskWidth; i++ {
		bids = append(bids, Bid{Bidder: fmt.Sprintf("b%d", i), Bundle: BundleOf("A"), Value: 1})
	}
	wide, err := NewProfile(nil, bids)
	assert.NoError(t, err)

	_, err = ExhaustiveSolver{}.Solve(context.Background(), wide)
	check.True(t, errors.Is(err, ErrTooManyBids))
}

func TestExhaustiveSolver_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExhaustiveSolver{}.Solve(ctx, randomProfile(t, 3, 8))
	check.True(t, errors.Is(err, context.Canceled))

	_, err = ExhaustiveSolver{Workers: 4}.Solve(ctx, randomProfile(t, 3, 16))
	check.True(t, errors.Is(err, context.Canceled))
}

func TestParseTieBreakPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected TieBreakPolicy
		wantErr  bool
	}{
		{"", TieBreakLatest, false},
		{"latest", TieBreakLatest, false},
		{" First ", TieBreakFirst, false},
		{"lexicographic", TieBreakLatest, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			policy, err := ParseTieBreakPolicy(tt.input)
			if tt.wantErr {
				check.Error(t, err)
				return
			}
			check.NoError(t, err)
			check.Equal(t, tt.expected, policy)
		})
	}
}

func TestComputeWinner_SubUnitDifferencesRejected(t *testing.T) {
	bids := []Bid{
		{Bidder: "a", Bundle: BundleOf("A"), Value: 1.00004},
		{Bidder: "b", Bundle: BundleOf("A"), Value: 1.00001},
	}

	_, err := NewProfile(nil, bids)
	check.True(t, errors.Is(err, ErrInvalidValue))

	var bidErr *BidError
	assert.True(t, errors.As(err, &bidErr))
	check.Equal(t, 0, bidErr.Index)

	profile, err := NewProfile(nil, []Bid{
		{Bidder: "a", Bundle: BundleOf("A"), Value: 1.0001},
		{Bidder: "b", Bundle: BundleOf("A"), Value: 1.0000},
	})
	assert.NoError(t, err)
	allocation, err := ComputeWinner(context.Background(), profile)
	assert.NoError(t, err)
	check.Equal(t, []string{"a"}, allocation.Winners())
	check.Equal(t, 1.0001, allocation.Value)
}
