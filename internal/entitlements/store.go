// Package entitlements holds the current user's owned-item set and the
// fail-closed refresh logic that keeps it honest: a transient network
// failure must never grant unintended access, so every error path collapses
// to the empty set.
package entitlements

import (
	"context"
	"log/slog"
	"sync"

	"psyche/internal/types"
)

// Source fetches the authenticated user's owned item identifiers.
type Source interface {
	FetchOwnedIDs(ctx context.Context) ([]string, error)
}

// Store holds the entitlement set for the current user. The set is empty
// when logged out and fully replaced, never incrementally merged, on each
// refresh.
type Store struct {
	source Source
	logger *slog.Logger

	mu    sync.RWMutex
	owned types.EntitlementSet
}

// NewStore creates an entitlement Store over the given source.
func NewStore(source Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		source: source,
		logger: logger,
		owned:  types.NewEntitlementSet(),
	}
}

// Refresh replaces the entitlement set.
//
// If the viewer is not authenticated, no request is issued and the empty set
// is stored. If the fetch fails for any reason the empty set is stored too:
// fail closed, never assume ownership on error. The previous non-empty set
// is discarded rather than kept stale.
func (s *Store) Refresh(ctx context.Context, authenticated bool) types.EntitlementSet {
	set := types.NewEntitlementSet()

	if authenticated {
		ids, err := s.source.FetchOwnedIDs(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "entitlement fetch failed, treating as unowned",
				"error", err,
			)
		} else {
			set = types.NewEntitlementSet(ids...)
		}
	}

	s.mu.Lock()
	s.owned = set
	s.mu.Unlock()

	return set
}

// Owned returns the current entitlement set. The returned map is shared;
// callers must not mutate it.
func (s *Store) Owned() types.EntitlementSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned
}

// Clear resets the set to empty, used when the session is purged.
func (s *Store) Clear() {
	s.mu.Lock()
	s.owned = types.NewEntitlementSet()
	s.mu.Unlock()
}
