// Package catalog implements the metaphor catalog domain: snapshot ordering,
// the embedded fallback catalog, access resolution, and bundle pricing.
//
// Everything here except the Store is a pure function over immutable inputs,
// so the decision logic of the storefront is independently testable without
// any network or database.
package catalog

import (
	"math"
	"sort"

	"psyche/internal/types"
)

// orderKey returns the sort key for a catalog item. An absent order_index
// sorts after every present one.
func orderKey(m types.Metaphor) int {
	if m.OrderIndex == nil {
		return math.MaxInt
	}
	return *m.OrderIndex
}

// SortItems returns a copy of items ordered by order_index ascending.
// Absent values sort last; ties keep the original fetch order (the sort is
// stable, not merely sorted).
func SortItems(items []types.Metaphor) []types.Metaphor {
	out := make([]types.Metaphor, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return orderKey(out[i]) < orderKey(out[j])
	})
	return out
}

// Find returns the item with the given ID from the snapshot, or false if no
// such item is present.
func Find(items []types.Metaphor, id string) (types.Metaphor, bool) {
	for _, m := range items {
		if m.ID == id {
			return m, true
		}
	}
	return types.Metaphor{}, false
}
