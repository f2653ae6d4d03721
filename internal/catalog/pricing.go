package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"psyche/internal/types"
)

// DefaultBundleIcon is the glyph shown for bundles whose name carries no
// leading glyph token of its own.
const DefaultBundleIcon = "✦"

// BundlePricing is the derived pricing view for one bundle over a catalog
// snapshot.
type BundlePricing struct {
	IsSubscription  bool    `json:"is_subscription"`
	OriginalPrice   float64 `json:"original_price"`
	FinalPrice      float64 `json:"final_price"`
	DiscountPercent int     `json:"discount_percent"`
	// SavingsShown controls whether a struck-through original price is
	// displayed alongside the bundle price.
	SavingsShown bool `json:"savings_shown"`
}

// ComputePricing derives a bundle's pricing from the current catalog snapshot.
//
// A bundle with an empty item set is a subscription: its original price is
// always zero and no savings are shown. For one-time bundles the original
// price is the sum of the referenced items' prices looked up against the
// snapshot. Referenced IDs missing from the snapshot contribute zero rather
// than erroring; this lenient sum silently under-counts when a bundle
// references a removed item, a deliberate policy, not a defect to fix here.
func ComputePricing(b types.Bundle, snapshot []types.Metaphor) BundlePricing {
	p := BundlePricing{
		IsSubscription:  b.IsSubscription(),
		FinalPrice:      b.Price,
		DiscountPercent: b.DiscountPercent,
	}
	if p.IsSubscription {
		return p
	}

	for _, id := range b.MetaphorIDs {
		if item, ok := Find(snapshot, id); ok {
			p.OriginalPrice += item.Price
		}
	}
	p.SavingsShown = p.OriginalPrice > b.Price
	return p
}

// ParseBundleName splits a raw bundle name into a display glyph and a clean
// name. A name that begins with a single glyph rune followed by separator
// characters and remaining text yields (glyph, remainder); anything else —
// including names with no leading glyph, a glyph with no separator, or a
// glyph with nothing after it — yields the default icon and the name
// unchanged. Malformed names are tolerated, never fatal.
func ParseBundleName(name string) (icon, displayName string) {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return DefaultBundleIcon, name
	}

	rest := name[size:]
	trimmed := strings.TrimLeft(rest, " \t·.")
	if trimmed == "" || trimmed == rest {
		// No separator after the glyph, or nothing left to display.
		return DefaultBundleIcon, name
	}
	return string(r), trimmed
}
