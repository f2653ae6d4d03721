package types

// ItemStatus represents the publication state of a catalog item.
type ItemStatus string

const (
	// ItemAvailable means the item can be previewed and purchased.
	ItemAvailable ItemStatus = "available"
	// ItemComingSoon means the item is announced but not yet purchasable,
	// regardless of entitlement.
	ItemComingSoon ItemStatus = "coming_soon"
)

// AccessDecision is the resolved affordance for a catalog item given its
// status and the viewer's entitlements. It is derived per render, never stored.
type AccessDecision string

const (
	AccessLocked     AccessDecision = "locked"
	AccessOwned      AccessDecision = "owned"
	AccessComingSoon AccessDecision = "coming_soon"
)

// VIPLevel is the membership tier of a user. Subscription bundle purchases
// upgrade a user from free to vip.
type VIPLevel string

const (
	VIPFree VIPLevel = "free"
	VIPVip  VIPLevel = "vip"
)

// PurchaseSource records how an entitlement was granted.
type PurchaseSource string

const (
	// PurchaseSourceDirect is a first-party purchase endpoint grant.
	PurchaseSourceDirect PurchaseSource = "direct"
	// PurchaseSourceBundle is a grant produced by a bundle purchase.
	PurchaseSourceBundle PurchaseSource = "bundle"
	// PurchaseSourceCheckout is a grant fulfilled asynchronously from a
	// hosted checkout webhook.
	PurchaseSourceCheckout PurchaseSource = "checkout"
)

// AuthProvider identifies the external identity provider that vouched for
// a user. Only Google is wired today; the column exists so additional
// providers slot in without a migration.
type AuthProvider string

const (
	ProviderGoogle AuthProvider = "google"
)
