package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"psyche/internal/catalog"
	"psyche/internal/core"
	"psyche/internal/types"
)

// --- Service Interfaces ---

// EntitlementReader answers ownership questions for the catalog endpoints.
type EntitlementReader interface {
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	Exists(ctx context.Context, userID, metaphorID string) (bool, error)
}

// --- Handler ---

// CatalogHandler serves the content-managed catalog and bundle registries
// plus the entitlement-aware content endpoint.
//
// The registries are authoritative and immutable for the process lifetime;
// editing the catalog is a deploy, the same way the original content was
// managed in code.
type CatalogHandler struct {
	items     []types.Metaphor
	bundles   []types.Bundle
	purchases EntitlementReader
	logger    *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler over the given registries.
// Nil registries use the embedded defaults.
func NewCatalogHandler(items []types.Metaphor, bundles []types.Bundle, purchases EntitlementReader, l *slog.Logger) *CatalogHandler {
	if items == nil {
		items = catalog.DefaultCatalog()
	}
	if bundles == nil {
		bundles = catalog.DefaultBundles()
	}
	if l == nil {
		l = slog.Default()
	}
	return &CatalogHandler{
		items:     catalog.SortItems(items),
		bundles:   bundles,
		purchases: purchases,
		logger:    l,
	}
}

// RegisterRoutes mounts the catalog endpoints.
//
// Public:
//   - GET /catalog              - item listing (full content stripped)
//   - GET /bundles              - bundle listing
//   - GET /catalog/{id}/content - entitlement-aware content (bearer optional)
//
// Protected (requireAuth guard):
//   - GET /user/purchases - owned item IDs
func (h *CatalogHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/catalog", h.HandleCatalog)
	r.Get("/bundles", h.HandleBundles)
	r.Get("/catalog/{id}/content", h.HandleContent)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/user/purchases", h.HandlePurchases)
	})
}

// HandleCatalog handles GET /catalog.
// The listing never carries full content; that is only ever released by the
// content endpoint after an entitlement check.
func (h *CatalogHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	listing := make([]types.Metaphor, len(h.items))
	copy(listing, h.items)
	for i := range listing {
		listing[i].FullContent = ""
	}
	core.JSON(w, r, http.StatusOK, listing)
}

// HandleBundles handles GET /bundles.
func (h *CatalogHandler) HandleBundles(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.bundles)
}

// HandleContent handles GET /catalog/{id}/content.
// Anonymous callers and callers without the entitlement get the preview with
// has_access=false. Coming-soon items are previewable but never owned.
func (h *CatalogHandler) HandleContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := catalog.Find(h.items, id)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundMetaphor, "unknown catalog item", nil))
		return
	}

	hasAccess := false
	if actor, authed := types.GetActor(r.Context()); authed && item.Status == types.ItemAvailable {
		hasAccess = h.resolveAccess(r.Context(), actor, item.ID)
	}

	result := types.ContentResult{
		ID:        item.ID,
		Title:     item.Title,
		Content:   item.PreviewContent,
		HasAccess: hasAccess,
	}
	if hasAccess {
		result.Content = item.FullContent
	}
	core.JSON(w, r, http.StatusOK, result)
}

// HandlePurchases handles GET /user/purchases.
// VIP members hold a standing entitlement to the whole available catalog, so
// their listing is the union of the catalog and their recorded grants.
func (h *CatalogHandler) HandlePurchases(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	ids, err := h.purchases.ListIDsByUser(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if actor.VIPLevel == types.VIPVip {
		ids = h.withAvailableCatalog(ids)
	}
	core.JSON(w, r, http.StatusOK, ids)
}

// resolveAccess reports whether the actor may read an item's full content:
// either a recorded grant or a VIP membership.
func (h *CatalogHandler) resolveAccess(ctx context.Context, actor types.Actor, itemID string) bool {
	if actor.VIPLevel == types.VIPVip {
		return true
	}
	owned, err := h.purchases.Exists(ctx, actor.UserID, itemID)
	if err != nil {
		// Fail closed: an entitlement lookup error never releases content.
		h.logger.WarnContext(ctx, "entitlement lookup failed",
			"user_id", actor.UserID,
			"item_id", itemID,
			"error", err,
		)
		return false
	}
	return owned
}

// withAvailableCatalog unions the recorded grant IDs with every available
// catalog item, preserving grant order first.
func (h *CatalogHandler) withAvailableCatalog(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids)+len(h.items))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, item := range h.items {
		if item.Status != types.ItemAvailable {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item.ID)
	}
	return out
}
