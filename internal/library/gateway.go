package library

import (
	"context"
	"errors"
	"log/slog"

	"psyche/internal/catalog"
	"psyche/internal/entitlements"
	"psyche/internal/types"
)

// ContentFetcher retrieves item content from the storefront. Satisfied by
// external.StorefrontClient.
type ContentFetcher interface {
	FetchContent(ctx context.Context, itemID string) (*types.ContentResult, error)
}

// ContentGateway serves item content with a strict degradation order: the
// storefront's content endpoint is authoritative; on transient failure the
// local catalog snapshot substitutes. Fallback data never claims more access
// than the locally known entitlement set justifies, so a network blip can
// hide owned content for a moment but can never unlock unowned content.
type ContentGateway struct {
	fetcher      ContentFetcher
	catalog      *catalog.Store
	entitlements *entitlements.Store
	logger       *slog.Logger
}

// NewContentGateway creates a ContentGateway.
func NewContentGateway(fetcher ContentFetcher, cat *catalog.Store, ent *entitlements.Store, logger *slog.Logger) *ContentGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentGateway{
		fetcher:      fetcher,
		catalog:      cat,
		entitlements: ent,
		logger:       logger,
	}
}

// FetchContent returns the content for an item. full requests the owned
// content; false always yields the preview.
//
// A session-expired error is returned as-is so the caller can purge the
// session. Any other fetch failure falls back to the local snapshot; an item
// absent from the snapshot too is a not-found error.
func (g *ContentGateway) FetchContent(ctx context.Context, itemID string, full bool) (*types.ContentResult, error) {
	result, err := g.fetcher.FetchContent(ctx, itemID)
	if err == nil {
		if !full && result.HasAccess {
			// Preview was asked for; the server sent what the caller is
			// entitled to, but the preview request is honored.
			return g.fromSnapshot(itemID, false)
		}
		return result, nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthSessionExpired {
		return nil, err
	}

	g.logger.WarnContext(ctx, "content fetch failed, serving local snapshot",
		"item_id", itemID,
		"error", err,
	)
	return g.fromSnapshot(itemID, full)
}

// fromSnapshot builds a ContentResult from the local catalog snapshot.
// Access is granted only when the request asked for full content and the
// current entitlement set holds the item.
func (g *ContentGateway) fromSnapshot(itemID string, full bool) (*types.ContentResult, error) {
	item, ok := catalog.Find(g.catalog.Snapshot(), itemID)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundMetaphor, "unknown catalog item", nil)
	}

	owned := full && item.Status == types.ItemAvailable && g.entitlements.Owned().Has(item.ID)
	result := &types.ContentResult{
		ID:        item.ID,
		Title:     item.Title,
		Content:   item.PreviewContent,
		HasAccess: owned,
	}
	if owned {
		result.Content = item.FullContent
	}
	return result, nil
}
