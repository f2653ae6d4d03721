package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"psyche/internal/external"
	"psyche/internal/types"
)

const webhookTestSecret = "whsec_test_secret"

// =============================================================================
// Mocks
// =============================================================================

type mockPurchaseGranter struct {
	createFn func(ctx context.Context, p *types.Purchase) error
	created  []*types.Purchase
}

func (m *mockPurchaseGranter) Create(ctx context.Context, p *types.Purchase) error {
	m.created = append(m.created, p)
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func newWebhookHandler(grants *mockPurchaseGranter) *StripeWebhookHandler {
	return NewStripeWebhookHandler(
		&external.StripeVerifier{},
		grants,
		types.SecretString(webhookTestSecret),
		fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		nil,
	)
}

func signedWebhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	sp := stripe.GenerateTestSignedPayload(&stripe.UnsignedPayload{
		Payload: payload,
		Secret:  webhookTestSecret,
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sp.Header)
	return req
}

func checkoutCompletedEvent(clientRef string) []byte {
	return []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "` + clientRef + `",
			"payment_status": "paid"
		}}
	}`)
}

// =============================================================================
// Tests
// =============================================================================

func TestStripeWebhook_CheckoutCompleted_GrantsPurchase(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, checkoutCompletedEvent("u1_poker")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, grants.created, 1)
	p := grants.created[0]
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "poker", p.MetaphorID)
	assert.Equal(t, types.PurchaseSourceCheckout, p.Source)
}

func TestStripeWebhook_ItemIDKeepsItsOwnUnderscores(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, checkoutCompletedEvent("u1_deep_sea")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, grants.created, 1)
	assert.Equal(t, "deep_sea", grants.created[0].MetaphorID)
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		bytes.NewReader(checkoutCompletedEvent("u1_poker")))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, grants.created)
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		bytes.NewReader(checkoutCompletedEvent("u1_poker")))
	req.Header.Set("Stripe-Signature", "t=12345,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, grants.created)
}

func TestStripeWebhook_UnattributableSessionAcknowledged(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	for _, ref := range []string{"", "noseparator", "_poker", "u1_"} {
		rec := httptest.NewRecorder()
		h.Handle(rec, signedWebhookRequest(t, checkoutCompletedEvent(ref)))
		assert.Equal(t, http.StatusOK, rec.Code, "ref %q", ref)
	}
	assert.Empty(t, grants.created)
}

func TestStripeWebhook_DuplicateGrantAcknowledged(t *testing.T) {
	grants := &mockPurchaseGranter{
		createFn: func(ctx context.Context, p *types.Purchase) error {
			return types.NewAppError(types.ErrCodeConflictDuplicatePurchase, "item already owned", nil)
		},
	}
	h := newWebhookHandler(grants)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, checkoutCompletedEvent("u1_poker")))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhook_GrantFailureStillAcknowledged(t *testing.T) {
	grants := &mockPurchaseGranter{
		createFn: func(ctx context.Context, p *types.Purchase) error {
			return errors.New("db down")
		},
	}
	h := newWebhookHandler(grants)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, checkoutCompletedEvent("u1_poker")))

	// Processing failures are logged, not retried by Stripe.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeWebhook_IgnoresOtherEventTypes(t *testing.T) {
	grants := &mockPurchaseGranter{}
	h := newWebhookHandler(grants)

	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)
	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, grants.created)
}

func TestStripeWebhook_RegisterRoutes(t *testing.T) {
	h := newWebhookHandler(&mockPurchaseGranter{})
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, signedWebhookRequest(t, checkoutCompletedEvent("u1_poker")))
	assert.Equal(t, http.StatusOK, rec.Code)
}
