package core

import (
	"encoding/json"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestNewBundle_Canonical(t *testing.T) {
	bundle := BundleOf("C", "A", "B", "A")

	check.Equal(t, []string{"A", "B", "C"}, bundle.Labels())
	check.Equal(t, 3, bundle.Len())
	check.Equal(t, "A,B,C", bundle.Key())
	check.Equal(t, "{A,B,C}", bundle.String())
	check.True(t, bundle.Equal(BundleOf("B", "C", "A")))
	check.False(t, bundle.Equal(BundleOf("A", "B")))
}

func TestBundle_Empty(t *testing.T) {
	var zero Bundle

	check.True(t, zero.IsEmpty())
	check.True(t, NewBundle().IsEmpty())
	check.True(t, zero.Equal(NewBundle()))
	check.Equal(t, "{}", zero.String())
	check.False(t, zero.Intersects(BundleOf("A")))
}

func TestBundle_Contains(t *testing.T) {
	bundle := BundleOf("A", "C", "E")

	check.True(t, bundle.Contains("A"))
	check.True(t, bundle.Contains("E"))
	check.False(t, bundle.Contains("B"))
	check.False(t, bundle.Contains("F"))
}

func TestBundle_Intersects(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Bundle
		expected bool
	}{
		{"disjoint", BundleOf("A", "B"), BundleOf("C", "D"), false},
		{"interleaved disjoint", BundleOf("A", "C"), BundleOf("B", "D"), false},
		{"shared last item", BundleOf("A", "D"), BundleOf("B", "D"), true},
		{"identical", BundleOf("A"), BundleOf("A"), true},
		{"subset", BundleOf("A", "B", "C"), BundleOf("B"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, tt.a.Intersects(tt.b))
			check.Equal(t, tt.expected, tt.b.Intersects(tt.a))
		})
	}
}

func TestBundle_ItemsIsCopy(t *testing.T) {
	bundle := BundleOf("A", "B")

	items := bundle.Items()
	items[0] = "Z"

	check.Equal(t, "A,B", bundle.Key())
}

func TestBundle_JSON(t *testing.T) {
	data, err := json.Marshal(Bid{Bidder: "a", Bundle: BundleOf("B", "A"), Value: 3})
	assert.NoError(t, err)
	check.Equal(t, `{"bidder":"a","bundle":["A","B"],"value":3}`, string(data))

	var bid Bid
	assert.NoError(t, json.Unmarshal([]byte(`{"bidder":"b","bundle":["D","C","D"],"value":1.5}`), &bid))
	check.Equal(t, "b", bid.Bidder)
	check.Equal(t, "C,D", bid.Bundle.Key())
	check.Equal(t, 1.5, bid.Value)
}
