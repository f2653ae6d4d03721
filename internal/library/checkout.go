package library

import "net/url"

// BuildCheckoutLink decorates a hosted checkout base URL with the client
// reference that lets the completed-payment webhook attribute the purchase:
// "{userID}_{itemID}". When either half is unknown the base URL is returned
// unchanged; an anonymous buyer still reaches checkout, the payment just
// cannot be auto-fulfilled.
func BuildCheckoutLink(base, userID, itemID string) string {
	if userID == "" || itemID == "" {
		return base
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("client_reference_id", userID+"_"+itemID)
	u.RawQuery = q.Encode()
	return u.String()
}

// CheckoutLinkBuilder builds attributed checkout links for the current
// session.
type CheckoutLinkBuilder struct {
	session *SessionState
}

// NewCheckoutLinkBuilder creates a CheckoutLinkBuilder over the session.
func NewCheckoutLinkBuilder(session *SessionState) *CheckoutLinkBuilder {
	return &CheckoutLinkBuilder{session: session}
}

// Build returns the checkout link for an item, attributed to the signed-in
// user when there is one.
func (b *CheckoutLinkBuilder) Build(base, itemID string) string {
	return BuildCheckoutLink(base, b.session.UserID(), itemID)
}
