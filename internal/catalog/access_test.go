package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"psyche/internal/types"
)

func TestResolve(t *testing.T) {
	owned := types.NewEntitlementSet("poker")

	tests := []struct {
		name  string
		item  types.Metaphor
		owned types.EntitlementSet
		want  types.AccessDecision
	}{
		{
			name:  "coming soon wins regardless of entitlement",
			item:  types.Metaphor{ID: "poker", Status: types.ItemComingSoon},
			owned: owned,
			want:  types.AccessComingSoon,
		},
		{
			name:  "owned available item",
			item:  types.Metaphor{ID: "poker", Status: types.ItemAvailable},
			owned: owned,
			want:  types.AccessOwned,
		},
		{
			name:  "unowned available item",
			item:  types.Metaphor{ID: "chess", Status: types.ItemAvailable},
			owned: owned,
			want:  types.AccessLocked,
		},
		{
			name:  "empty entitlement set locks everything available",
			item:  types.Metaphor{ID: "poker", Status: types.ItemAvailable},
			owned: types.NewEntitlementSet(),
			want:  types.AccessLocked,
		},
		{
			name:  "nil entitlement set behaves as empty",
			item:  types.Metaphor{ID: "poker", Status: types.ItemAvailable},
			owned: nil,
			want:  types.AccessLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.item, tt.owned))
		})
	}
}

// TestResolve_Exhaustive walks every status/ownership combination to verify
// the three decisions are exhaustive and mutually exclusive.
func TestResolve_Exhaustive(t *testing.T) {
	statuses := []types.ItemStatus{types.ItemAvailable, types.ItemComingSoon}
	ownership := []bool{true, false}

	for _, status := range statuses {
		for _, owns := range ownership {
			item := types.Metaphor{ID: "it", Status: status}
			set := types.NewEntitlementSet()
			if owns {
				set = types.NewEntitlementSet("it")
			}

			got := Resolve(item, set)

			switch {
			case status == types.ItemComingSoon:
				assert.Equal(t, types.AccessComingSoon, got)
			case owns:
				assert.Equal(t, types.AccessOwned, got)
			default:
				assert.Equal(t, types.AccessLocked, got)
			}
		}
	}
}
