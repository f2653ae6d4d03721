package catalog

import "psyche/internal/types"

// FallbackVersion identifies the embedded catalog snapshot. Bump it whenever
// the snapshot below is edited so degraded-mode clients can be told apart in
// logs.
const FallbackVersion = "2026-02"

// intp is a convenience for the optional order_index fields below.
func intp(v int) *int { return &v }

// fallbackCatalog is the embedded snapshot of the metaphor catalog, used by
// the client engine when the authoritative source is unreachable and by the
// server as the content-managed source of truth. Items here must keep their
// IDs forever; IDs are the join key for entitlements.
var fallbackCatalog = []types.Metaphor{
	{
		ID:       "poker",
		Title:    "Poker",
		Symbol:   "♠",
		Keywords: []string{"Uncertainty", "State", "Mastery"},
		Doctrine: "Trust without proof.",
		PreviewContent: "Poker is one of the cleanest metaphors for the Psyche concept, " +
			"because it mirrors how the universe works in 3D life: uncertainty by design, " +
			"incomplete information, and emotional triggers. You don't control the cards—you control the self.",
		FullContent: "[Full Poker metaphor content - all 6 sections will go here]",
		Price:       5.00,
		Status:      types.ItemAvailable,
		OrderIndex:  intp(1),
	},
	{
		ID:       "chess",
		Title:    "Chess",
		Symbol:   "♛",
		Keywords: []string{"Clarity", "Intention", "Strategy"},
		Doctrine: "Mastery inside.",
		PreviewContent: "Chess represents perfect information and strategic thinking. " +
			"Every piece visible, every move calculated. It teaches clarity of intention " +
			"and the power of foresight.",
		FullContent: "[Full Chess metaphor content will go here]",
		Price:       5.00,
		Status:      types.ItemAvailable,
		OrderIndex:  intp(2),
	},
	{
		ID:       "choir",
		Title:    "Choir",
		Symbol:   "♫",
		Keywords: []string{"Resonance", "Unity", "Harmony"},
		Doctrine: "Many voices, one tone.",
		PreviewContent: "A choir demonstrates how individual voices create collective beauty. " +
			"Each voice unique, yet harmonizing into something greater than the sum of its parts.",
		FullContent: "[Full Choir metaphor content will go here]",
		Price:       5.00,
		Status:      types.ItemAvailable,
		OrderIndex:  intp(3),
	},
	{
		ID:       "orchestra",
		Title:    "Orchestra",
		Symbol:   "🎻",
		Keywords: []string{"Structure", "Timing", "Flow"},
		Doctrine: "Order becomes music.",
		PreviewContent: "An orchestra shows how structure and timing create harmony. " +
			"Different instruments, different roles, unified by rhythm and intention.",
		FullContent: "[Full Orchestra metaphor content will go here]",
		Price:       5.00,
		Status:      types.ItemComingSoon,
		OrderIndex:  intp(4),
	},
	{
		ID:       "zodiac",
		Title:    "Zodiac",
		Symbol:   "✶",
		Keywords: []string{"Cycles", "Archetypes", "Timing"},
		Doctrine: "Timing reveals law.",
		PreviewContent: "The zodiac represents cyclical patterns and archetypal energies. " +
			"Twelve faces of one truth, moving through time in eternal rhythm.",
		FullContent: "[Full Zodiac metaphor content will go here]",
		Price:       5.00,
		Status:      types.ItemComingSoon,
		OrderIndex:  intp(5),
	},
}

// DefaultCatalog returns a fresh copy of the embedded catalog snapshot so
// callers cannot mutate the package-level data.
func DefaultCatalog() []types.Metaphor {
	out := make([]types.Metaphor, len(fallbackCatalog))
	copy(out, fallbackCatalog)
	return out
}
