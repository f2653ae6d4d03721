package catalog

import (
	"context"
	"log/slog"
	"sync"

	"psyche/internal/types"
)

// Source fetches the authoritative item catalog. Implementations may fail;
// the Store is what guarantees its callers never see that failure.
type Source interface {
	FetchCatalog(ctx context.Context) ([]types.Metaphor, error)
}

// Store merges the remote catalog source with the embedded fallback into a
// stable, ordered in-memory snapshot.
//
// Refresh never returns an error: on any source failure the embedded
// snapshot is substituted. Each refresh fully replaces the prior snapshot —
// no partial merge, no diffing. Overlapping refreshes are tolerated with
// last-write-wins semantics: whichever response completes later becomes the
// snapshot, regardless of which was issued first. The snapshot swap is the
// only critical section.
type Store struct {
	source   Source
	fallback []types.Metaphor
	logger   *slog.Logger

	mu    sync.RWMutex
	items []types.Metaphor
}

// NewStore creates a catalog Store over the given source. A nil fallback
// uses the embedded default catalog.
func NewStore(source Source, fallback []types.Metaphor, logger *slog.Logger) *Store {
	if fallback == nil {
		fallback = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		source:   source,
		fallback: fallback,
		logger:   logger,
	}
}

// Refresh fetches the catalog, substituting the fallback snapshot on any
// failure, applies the stable order_index sort, swaps the snapshot, and
// returns it. Callers own rendering and persistence; Refresh has no other
// side effects.
func (s *Store) Refresh(ctx context.Context) []types.Metaphor {
	items, err := s.source.FetchCatalog(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog fetch failed, using embedded snapshot",
			"fallback_version", FallbackVersion,
			"error", err,
		)
		items = s.fallback
	}

	sorted := SortItems(items)

	s.mu.Lock()
	s.items = sorted
	s.mu.Unlock()

	return sorted
}

// Snapshot returns the current catalog snapshot. It is empty until the first
// Refresh completes. The returned slice is shared; callers must not mutate it.
func (s *Store) Snapshot() []types.Metaphor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}
