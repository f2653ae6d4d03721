package catalog

import "psyche/internal/types"

// defaultBundles is the authoritative bundle registry, content-managed in
// code the same way the catalog snapshot is. The all-access entry has an
// empty item set on purpose: that is the subscription sentinel.
var defaultBundles = []types.Bundle{
	{
		ID:              "core-trio",
		Name:            "📚 Core Trio",
		Description:     "The three foundation metaphors: Poker, Chess and Choir in one purchase.",
		Price:           12.00,
		DiscountPercent: 20,
		MetaphorIDs:     []string{"poker", "chess", "choir"},
	},
	{
		ID:              "all-access",
		Name:            "🎵 All Access",
		Description:     "Every metaphor, current and future, for as long as you stay subscribed.",
		Price:           9.00,
		DiscountPercent: 0,
		MetaphorIDs:     []string{},
	},
}

// DefaultBundles returns a fresh copy of the bundle registry.
func DefaultBundles() []types.Bundle {
	out := make([]types.Bundle, len(defaultBundles))
	copy(out, defaultBundles)
	return out
}

// FindBundle returns the bundle with the given ID, or false if unknown.
func FindBundle(bundles []types.Bundle, id string) (types.Bundle, bool) {
	for _, b := range bundles {
		if b.ID == id {
			return b, true
		}
	}
	return types.Bundle{}, false
}
