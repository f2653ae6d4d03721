package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"psyche/internal/catalog"
	"psyche/internal/core"
	"psyche/internal/external"
	"psyche/internal/types"
)

// --- Service Interfaces ---

// PurchaseStore records entitlement grants.
type PurchaseStore interface {
	Create(ctx context.Context, p *types.Purchase) error
	CreateAll(ctx context.Context, purchases []types.Purchase) ([]string, error)
}

// VIPUpdater upgrades a user's membership tier. Satisfied by
// db.UserRepository.
type VIPUpdater interface {
	SetVIPLevel(ctx context.Context, userID string, level types.VIPLevel) error
}

// CheckoutCreator creates hosted checkout sessions. Satisfied by
// external.StripeClient.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, userID, itemID, itemTitle string, amountCents int64, successURL, cancelURL string) (*external.CheckoutSession, error)
}

// --- Request/Response Models ---

// PurchaseResponse is the success payload of the purchase endpoints.
type PurchaseResponse struct {
	GrantedIDs []string `json:"granted_ids"`
	Message    string   `json:"message,omitempty"`
}

// CheckoutResponse is the success payload of the checkout endpoint. The URL
// points at the hosted payment page; fulfillment lands via webhook.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// --- Handler ---

// PurchaseHandler serves the first-party purchase endpoints and hosted
// checkout session creation.
type PurchaseHandler struct {
	items     []types.Metaphor
	bundles   []types.Bundle
	purchases PurchaseStore
	users     VIPUpdater
	checkout  CheckoutCreator
	webAppURL string
	clock     types.Clock
	logger    *slog.Logger
}

// PurchaseHandlerConfig holds the dependencies for creating a PurchaseHandler.
type PurchaseHandlerConfig struct {
	Items     []types.Metaphor // nil uses the embedded catalog
	Bundles   []types.Bundle   // nil uses the embedded bundle registry
	Purchases PurchaseStore
	Users     VIPUpdater
	Checkout  CheckoutCreator
	WebAppURL string // base for checkout success/cancel redirects
	Clock     types.Clock
	Logger    *slog.Logger
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(cfg PurchaseHandlerConfig) *PurchaseHandler {
	items := cfg.Items
	if items == nil {
		items = catalog.DefaultCatalog()
	}
	bundles := cfg.Bundles
	if bundles == nil {
		bundles = catalog.DefaultBundles()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseHandler{
		items:     catalog.SortItems(items),
		bundles:   bundles,
		purchases: cfg.Purchases,
		users:     cfg.Users,
		checkout:  cfg.Checkout,
		webAppURL: cfg.WebAppURL,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes mounts the purchase endpoints, all behind the auth guard.
//
//   - POST /purchase/{id}           - direct item purchase
//   - POST /purchase/bundle/{id}    - bundle purchase (or subscription)
//   - POST /purchase/{id}/checkout  - hosted checkout session
func (h *PurchaseHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/purchase/{id}", h.HandlePurchaseItem)
		r.Post("/purchase/bundle/{id}", h.HandlePurchaseBundle)
		r.Post("/purchase/{id}/checkout", h.HandleCreateCheckout)
	})
}

// HandlePurchaseItem handles POST /purchase/{id}.
// Unknown items, coming-soon items, and duplicate grants are all rejected
// before anything is written.
func (h *PurchaseHandler) HandlePurchaseItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	item, found := catalog.Find(h.items, chi.URLParam(r, "id"))
	if !found {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundMetaphor, "unknown catalog item", nil))
		return
	}
	if item.Status == types.ItemComingSoon {
		core.Error(w, r, types.NewAppError(types.ErrCodePurchaseUnavailable, item.Title+" is not yet available", nil))
		return
	}

	purchase := &types.Purchase{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		MetaphorID: item.ID,
		Source:     types.PurchaseSourceDirect,
		CreatedAt:  h.clock.Now(),
	}
	if err := h.purchases.Create(r.Context(), purchase); err != nil {
		if appErr, isApp := err.(*types.AppError); isApp && appErr.Code == types.ErrCodeConflictDuplicatePurchase {
			core.Error(w, r, types.NewAppError(types.ErrCodeConflictAlreadyOwned, "You already own "+item.Title, err))
			return
		}
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "purchase recorded",
		"user_id", actor.UserID,
		"item_id", item.ID,
	)
	core.JSON(w, r, http.StatusOK, PurchaseResponse{
		GrantedIDs: []string{item.ID},
		Message:    item.Title + " unlocked",
	})
}

// HandlePurchaseBundle handles POST /purchase/bundle/{id}.
// An item bundle grants every referenced metaphor, skipping ones already
// owned. A subscription bundle (empty item set) instead upgrades the user's
// membership tier.
func (h *PurchaseHandler) HandlePurchaseBundle(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	bundle, found := catalog.FindBundle(h.bundles, chi.URLParam(r, "id"))
	if !found {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundBundle, "unknown bundle", nil))
		return
	}

	if bundle.IsSubscription() {
		if err := h.users.SetVIPLevel(r.Context(), actor.UserID, types.VIPVip); err != nil {
			core.Error(w, r, err)
			return
		}
		h.logger.InfoContext(r.Context(), "subscription activated",
			"user_id", actor.UserID,
			"bundle_id", bundle.ID,
		)
		core.JSON(w, r, http.StatusOK, PurchaseResponse{
			GrantedIDs: []string{},
			Message:    "Subscription activated",
		})
		return
	}

	now := h.clock.Now()
	grants := make([]types.Purchase, 0, len(bundle.MetaphorIDs))
	for _, metaphorID := range bundle.MetaphorIDs {
		grants = append(grants, types.Purchase{
			ID:         uuid.NewString(),
			UserID:     actor.UserID,
			MetaphorID: metaphorID,
			Source:     types.PurchaseSourceBundle,
			BundleID:   bundle.ID,
			CreatedAt:  now,
		})
	}

	granted, err := h.purchases.CreateAll(r.Context(), grants)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "bundle purchase recorded",
		"user_id", actor.UserID,
		"bundle_id", bundle.ID,
		"granted", len(granted),
	)
	core.JSON(w, r, http.StatusOK, PurchaseResponse{
		GrantedIDs: granted,
		Message:    "Bundle unlocked",
	})
}

// HandleCreateCheckout handles POST /purchase/{id}/checkout.
// Creates a hosted checkout session whose client reference ID carries the
// user and item so the completed-payment webhook can attribute the grant.
func (h *PurchaseHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	item, found := catalog.Find(h.items, chi.URLParam(r, "id"))
	if !found {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundMetaphor, "unknown catalog item", nil))
		return
	}
	if item.Status == types.ItemComingSoon {
		core.Error(w, r, types.NewAppError(types.ErrCodePurchaseUnavailable, item.Title+" is not yet available", nil))
		return
	}

	session, err := h.checkout.CreateCheckoutSession(
		r.Context(),
		actor.UserID,
		item.ID,
		item.Title,
		int64(math.Round(item.Price*100)),
		h.webAppURL+"/library?checkout=success",
		h.webAppURL+"/library?checkout=cancelled",
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}
