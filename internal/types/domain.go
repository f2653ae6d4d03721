// Package types defines the shared domain model for the Psyche metaphor
// library: catalog items, bundles, users, sessions, purchases, and the
// application error taxonomy. It has no dependencies on other internal
// packages so that every layer (engine, server, repositories) can share it.
package types

import "time"

// Metaphor is a single purchasable content unit in the catalog.
//
// ID is a stable string key, unique across the catalog's lifetime and
// immutable once fetched. Symbol and OrderIndex are optional; an absent
// OrderIndex sorts after every present one.
type Metaphor struct {
	ID             string     `json:"id" db:"id"`
	Title          string     `json:"title" db:"title"`
	Symbol         string     `json:"symbol,omitempty" db:"symbol"`
	Keywords       []string   `json:"keywords,omitempty" db:"keywords"`
	Doctrine       string     `json:"doctrine,omitempty" db:"doctrine"`
	PreviewContent string     `json:"preview_content,omitempty" db:"preview_content"`
	FullContent    string     `json:"full_content,omitempty" db:"full_content"`
	Price          float64    `json:"price" db:"price"`
	Status         ItemStatus `json:"status" db:"status"`
	OrderIndex     *int       `json:"order_index,omitempty" db:"order_index"`
}

// Bundle is a priced grouping of catalog items.
//
// Name is the raw display string and may embed a leading glyph token followed
// by the human-readable name; catalog.ParseBundleName splits the two.
//
// An empty MetaphorIDs set is the sentinel for a subscription bundle, not an
// empty bundle: subscriptions have no per-item composition and their original
// price is always zero.
type Bundle struct {
	ID              string   `json:"id" db:"id"`
	Name            string   `json:"name" db:"name"`
	Description     string   `json:"description,omitempty" db:"description"`
	Price           float64  `json:"price" db:"price"`
	DiscountPercent int      `json:"discount_percent" db:"discount_percent"`
	MetaphorIDs     []string `json:"metaphor_ids" db:"metaphor_ids"`
}

// IsSubscription reports whether the bundle is a recurring subscription
// rather than a one-time purchase of its referenced items.
func (b Bundle) IsSubscription() bool {
	return len(b.MetaphorIDs) == 0
}

// User is the profile consumed from the identity provider and persisted
// locally. The engine reads it; only the auth service writes it.
type User struct {
	ID             string       `json:"id" db:"id"`
	Email          string       `json:"email" db:"email"`
	Name           string       `json:"name,omitempty" db:"name"`
	VIPLevel       VIPLevel     `json:"vip_level" db:"vip_level"`
	AuthProvider   AuthProvider `json:"-" db:"auth_provider"`
	AuthProviderID string       `json:"-" db:"auth_provider_id"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	LastLoginAt    *time.Time   `json:"last_login_at,omitempty" db:"last_login_at"`
}

// Session is the server-side record of an issued bearer credential.
// The raw token is returned to the client exactly once at sign-in; only its
// SHA-256 hash is stored.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Credential is the client-held half of a session: the bearer token and its
// expiry. It is what the reconciliation engine persists between runs and
// purges once expired.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the credential is past its expiry at the given time.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Purchase is a granted entitlement: proof that a user owns one catalog item.
// Purchases are append-only and never revoked client-side.
type Purchase struct {
	ID         string         `json:"id" db:"id"`
	UserID     string         `json:"user_id" db:"user_id"`
	MetaphorID string         `json:"metaphor_id" db:"metaphor_id"`
	Source     PurchaseSource `json:"source" db:"source"`
	BundleID   string         `json:"bundle_id,omitempty" db:"bundle_id"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// EntitlementSet is the set of catalog item IDs the current user owns.
// It is empty when unauthenticated and fully replaced, never incrementally
// merged, on each refresh.
type EntitlementSet map[string]struct{}

// NewEntitlementSet builds a set from a list of owned item IDs.
func NewEntitlementSet(ids ...string) EntitlementSet {
	set := make(EntitlementSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the given item ID.
func (s EntitlementSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the owned item IDs in unspecified order.
func (s EntitlementSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// ContentResult is the payload of a content fetch, either from the
// authoritative content endpoint or from the local fallback path.
// HasAccess reflects what the server asserted (or, on fallback, what the
// locally known entitlement set justifies), never an optimistic upgrade.
type ContentResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	HasAccess bool   `json:"has_access"`
}
