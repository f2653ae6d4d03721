package external

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"psyche/internal/types"
)

func newTestStripeClient(t *testing.T, handler http.Handler) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"stripe-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"Psyche-Test/1.0",
		WithSleepFunc(noSleep),
	)
	return NewStripeClientWithBase(base, StripeClientConfig{
		SecretKey: types.SecretString("sk_test_xyz"),
		BaseURL:   srv.URL,
	})
}

func TestCreateCheckoutSession_BuildsClientReferenceID(t *testing.T) {
	client := newTestStripeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_xyz", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "u1_poker", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "Poker", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "https://app.example.com/success", r.PostForm.Get("success_url"))

		json.NewEncoder(w).Encode(CheckoutSession{
			ID:  "cs_test_1",
			URL: "https://checkout.stripe.com/pay/cs_test_1",
		})
	}))

	session, err := client.CreateCheckoutSession(
		context.Background(),
		"u1", "poker", "Poker", 500,
		"https://app.example.com/success",
		"https://app.example.com/cancel",
	)

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Contains(t, session.URL, "checkout.stripe.com")
}

func TestCreateCheckoutSession_StripeErrorMapsToUpstream(t *testing.T) {
	client := newTestStripeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Invalid param: line_items"},
		})
	}))

	_, err := client.CreateCheckoutSession(
		context.Background(),
		"u1", "poker", "Poker", 500,
		"https://app.example.com/success",
		"https://app.example.com/cancel",
	)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamStripe, appErr.Code)
}

// ---------------------------------------------------------------------------
// StripeVerifier Tests
// ---------------------------------------------------------------------------

func TestStripeVerifier_ValidSignature(t *testing.T) {
	verifier := &StripeVerifier{}
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_test","type":"checkout.session.completed"}`)

	sp := stripe.GenerateTestSignedPayload(&stripe.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	})

	assert.NoError(t, verifier.Verify(payload, sp.Header, secret))
}

func TestStripeVerifier_InvalidSignature(t *testing.T) {
	verifier := &StripeVerifier{}
	payload := []byte(`{"id":"evt_test"}`)
	header := "t=1234567890,v1=badbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbadbad"

	assert.Error(t, verifier.Verify(payload, header, "whsec_test_secret"))
}

func TestStripeVerifier_MissingHeader(t *testing.T) {
	verifier := &StripeVerifier{}
	assert.Error(t, verifier.Verify([]byte(`{"id":"evt_test"}`), "", "whsec_test_secret"))
}

func TestStripeVerifier_ExpiredTimestamp(t *testing.T) {
	verifier := &StripeVerifier{}
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_test"}`)

	oldTime := time.Now().Add(-10 * time.Minute)
	sig := stripe.ComputeSignature(oldTime, payload, secret)
	header := fmt.Sprintf("t=%d,v1=%s", oldTime.Unix(), hex.EncodeToString(sig))

	assert.Error(t, verifier.Verify(payload, header, secret))
}
