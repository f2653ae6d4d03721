package library

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"psyche/internal/catalog"
	"psyche/internal/entitlements"
	"psyche/internal/external"
	"psyche/internal/types"
)

// coreShelfSize is the number of available items shown on the Core shelf;
// remaining available items land on More.
const coreShelfSize = 3

// keywordSeparator joins an item's keywords for display.
const keywordSeparator = " · "

// BundleFetcher retrieves the bundle registry. Satisfied by
// external.StorefrontClient.
type BundleFetcher interface {
	FetchBundles(ctx context.Context) ([]types.Bundle, error)
}

// Purchaser issues first-party purchases. Satisfied by
// external.StorefrontClient.
type Purchaser interface {
	PurchaseItem(ctx context.Context, itemID string) (*external.PurchaseResult, error)
	PurchaseBundle(ctx context.Context, bundleID string) (*external.PurchaseResult, error)
}

// AccountClient drives the sign-in and logout endpoints. Satisfied by
// external.StorefrontClient.
type AccountClient interface {
	SignIn(ctx context.Context, provider, idToken string) (*external.SignInResult, error)
	Logout(ctx context.Context)
}

// ItemCard is the render-ready projection of one catalog item.
type ItemCard struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Icon     string               `json:"icon"`
	Keywords string               `json:"keywords"`
	Price    float64              `json:"price"`
	Access   types.AccessDecision `json:"access"`
}

// BundleCard is the render-ready projection of one bundle.
type BundleCard struct {
	ID          string                `json:"id"`
	Icon        string                `json:"icon"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Pricing     catalog.BundlePricing `json:"pricing"`
}

// View is the assembled library state after a refresh: the three shelves,
// the bundle cards, and the session the view was computed for.
type View struct {
	Core      []ItemCard   `json:"core"`
	More      []ItemCard   `json:"more"`
	Expanding []ItemCard   `json:"expanding"`
	Bundles   []BundleCard `json:"bundles"`
	SignedIn  bool         `json:"signed_in"`
	User      *types.User  `json:"user,omitempty"`
}

// Engine reconciles local state against the storefront and assembles the
// library view. Refresh fetches the catalog and the entitlement set in
// parallel and assembles only after both have settled; overlapping refreshes
// are tolerated, with whichever completes later winning each store.
type Engine struct {
	catalog      *catalog.Store
	entitlements *entitlements.Store
	session      *SessionState
	bundles      BundleFetcher
	purchaser    Purchaser
	account      AccountClient
	logger       *slog.Logger

	mu          sync.RWMutex
	bundleCache []types.Bundle
}

// EngineConfig holds the dependencies for creating an Engine.
type EngineConfig struct {
	Catalog      *catalog.Store
	Entitlements *entitlements.Store
	Session      *SessionState
	Bundles      BundleFetcher
	Purchaser    Purchaser
	Account      AccountClient
	Logger       *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:      cfg.Catalog,
		entitlements: cfg.Entitlements,
		session:      cfg.Session,
		bundles:      cfg.Bundles,
		purchaser:    cfg.Purchaser,
		account:      cfg.Account,
		logger:       logger,
		bundleCache:  catalog.DefaultBundles(),
	}
}

// Refresh reconciles the catalog, entitlement, and bundle state and returns
// the assembled view. It never fails: every fetch degrades to its fallback
// (embedded catalog, empty entitlement set, cached bundles).
func (e *Engine) Refresh(ctx context.Context) *View {
	var (
		items []types.Metaphor
		owned types.EntitlementSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items = e.catalog.Refresh(gctx)
		return nil
	})
	g.Go(func() error {
		owned = e.entitlements.Refresh(gctx, e.session.Authenticated())
		return nil
	})
	g.Go(func() error {
		e.refreshBundles(gctx)
		return nil
	})
	// The fetches swallow their own failures; Wait only orders assembly
	// after both stores have settled.
	_ = g.Wait()

	return e.assemble(items, owned)
}

// View assembles the view from current state without fetching.
func (e *Engine) View() *View {
	return e.assemble(e.catalog.Snapshot(), e.entitlements.Owned())
}

// refreshBundles updates the cached bundle registry; failures keep the
// previous registry, seeded with the embedded default.
func (e *Engine) refreshBundles(ctx context.Context) {
	bundles, err := e.bundles.FetchBundles(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "bundle fetch failed, keeping cached registry", "error", err)
		return
	}
	e.mu.Lock()
	e.bundleCache = bundles
	e.mu.Unlock()
}

func (e *Engine) assemble(items []types.Metaphor, owned types.EntitlementSet) *View {
	view := &View{
		Core:      []ItemCard{},
		More:      []ItemCard{},
		Expanding: []ItemCard{},
		SignedIn:  e.session.Authenticated(),
		User:      e.session.User(),
	}

	available := 0
	for _, item := range items {
		card := newItemCard(item, catalog.Resolve(item, owned))
		switch {
		case card.Access == types.AccessComingSoon:
			view.Expanding = append(view.Expanding, card)
		case available < coreShelfSize:
			view.Core = append(view.Core, card)
			available++
		default:
			view.More = append(view.More, card)
			available++
		}
	}

	e.mu.RLock()
	bundles := e.bundleCache
	e.mu.RUnlock()
	view.Bundles = make([]BundleCard, 0, len(bundles))
	for _, b := range bundles {
		icon, name := catalog.ParseBundleName(b.Name)
		view.Bundles = append(view.Bundles, BundleCard{
			ID:          b.ID,
			Icon:        icon,
			Name:        name,
			Description: b.Description,
			Pricing:     catalog.ComputePricing(b, items),
		})
	}
	return view
}

func newItemCard(item types.Metaphor, access types.AccessDecision) ItemCard {
	icon := item.Symbol
	if icon == "" {
		icon = catalog.DefaultBundleIcon
	}
	return ItemCard{
		ID:       item.ID,
		Title:    item.Title,
		Icon:     icon,
		Keywords: strings.Join(item.Keywords, keywordSeparator),
		Price:    item.Price,
		Access:   access,
	}
}

// PurchaseItem buys a single item. On success the whole state is refreshed;
// there is no optimistic local patching. A rejection is returned verbatim
// with no state change; a session-expired error purges the session first.
func (e *Engine) PurchaseItem(ctx context.Context, itemID string) (*View, *external.PurchaseResult, error) {
	result, err := e.purchaser.PurchaseItem(ctx, itemID)
	if err != nil {
		return nil, nil, e.handleAuthError(err)
	}
	return e.Refresh(ctx), result, nil
}

// PurchaseBundle buys a bundle, with the same semantics as PurchaseItem.
func (e *Engine) PurchaseBundle(ctx context.Context, bundleID string) (*View, *external.PurchaseResult, error) {
	result, err := e.purchaser.PurchaseBundle(ctx, bundleID)
	if err != nil {
		return nil, nil, e.handleAuthError(err)
	}
	return e.Refresh(ctx), result, nil
}

// SignIn exchanges a provider ID token for a storefront session, installs
// it, and refreshes.
func (e *Engine) SignIn(ctx context.Context, provider, idToken string) (*View, error) {
	result, err := e.account.SignIn(ctx, provider, idToken)
	if err != nil {
		return nil, err
	}
	e.session.Set(result.User, result.Session)
	return e.Refresh(ctx), nil
}

// Logout notifies the storefront best-effort, purges the session, clears
// the entitlement set, and returns the logged-out view.
func (e *Engine) Logout(ctx context.Context) *View {
	e.account.Logout(ctx)
	e.session.Purge()
	e.entitlements.Clear()
	return e.View()
}

// handleAuthError purges local session state when the storefront reports
// the session is no longer valid, then returns the error unchanged.
func (e *Engine) handleAuthError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthSessionExpired {
		e.logger.Info("storefront rejected session, purging")
		e.session.Purge()
		e.entitlements.Clear()
	}
	return err
}
