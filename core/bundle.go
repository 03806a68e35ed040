package core

import (
	"encoding/json"
	"slices"
	"strings"
)

// Bundle is an immutable set of items. The zero value is the empty bundle.
// Items are kept sorted and de-duplicated so equal sets have equal representations.
type Bundle struct {
	items []Item
}

// NewBundle builds a bundle from items, dropping duplicates.
func NewBundle(items ...Item) Bundle {
	if len(items) == 0 {
		return Bundle{}
	}
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	return Bundle{items: slices.Compact(sorted)}
}

// BundleOf builds a bundle from string labels.
func BundleOf(labels ...string) Bundle {
	items := make([]Item, len(labels))
	for i, label := range labels {
		items[i] = Item(label)
	}
	return NewBundle(items...)
}

// Items returns a copy of the bundle's items in canonical order.
func (b Bundle) Items() []Item {
	return slices.Clone(b.items)
}

// Labels returns the bundle's items as strings in canonical order.
func (b Bundle) Labels() []string {
	labels := make([]string, len(b.items))
	for i, item := range b.items {
		labels[i] = string(item)
	}
	return labels
}

func (b Bundle) Len() int {
	return len(b.items)
}

func (b Bundle) IsEmpty() bool {
	return len(b.items) == 0
}

// Contains reports whether item is in the bundle.
func (b Bundle) Contains(item Item) bool {
	_, found := slices.BinarySearch(b.items, item)
	return found
}

// Intersects reports whether the two bundles share at least one item.
func (b Bundle) Intersects(other Bundle) bool {
	i, j := 0, 0
	for i < len(b.items) && j < len(other.items) {
		switch {
		case b.items[i] == other.items[j]:
			return true
		case b.items[i] < other.items[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Equal reports whether both bundles contain the same items.
func (b Bundle) Equal(other Bundle) bool {
	return slices.Equal(b.items, other.items)
}

// Key returns the canonical comma-joined form, usable as a map key.
func (b Bundle) Key() string {
	return strings.Join(b.Labels(), ",")
}

func (b Bundle) String() string {
	return "{" + b.Key() + "}"
}

// MarshalJSON encodes the bundle as a sorted array of item labels.
func (b Bundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Labels())
}

// UnmarshalJSON decodes an array of item labels.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*b = BundleOf(labels...)
	return nil
}
