package catalog

import "psyche/internal/types"

// Resolve computes the access decision for a single catalog item given the
// viewer's entitlement set. The cases are exhaustive and mutually exclusive:
//
//   - status coming_soon     -> AccessComingSoon (entitlement irrelevant)
//   - id in entitlement set  -> AccessOwned
//   - otherwise              -> AccessLocked
//
// No other inputs affect the decision; the function is deterministic and
// side-effect-free.
func Resolve(item types.Metaphor, owned types.EntitlementSet) types.AccessDecision {
	if item.Status == types.ItemComingSoon {
		return types.AccessComingSoon
	}
	if owned.Has(item.ID) {
		return types.AccessOwned
	}
	return types.AccessLocked
}
