// This file implements the Stripe fulfillment webhook.
//
// The handler is NOT behind the auth guard -- it is called directly by
// Stripe. Security is provided by verifying the Stripe-Signature header
// using HMAC-SHA256.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"psyche/internal/core"
	"psyche/internal/external"
	"psyche/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook
// payload (64 KB). Checkout session events are small; the limit protects
// against abuse.
const maxWebhookBodySize = 64 * 1024

// eventCheckoutCompleted is the only event type this storefront fulfills.
const eventCheckoutCompleted = "checkout.session.completed"

// PurchaseGranter records a single fulfilled grant.
type PurchaseGranter interface {
	Create(ctx context.Context, p *types.Purchase) error
}

// stripeWebhookEvent is the subset of a Stripe event we consume.
type stripeWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSessionObject is the subset of a checkout session carried in a
// checkout.session.completed event.
type checkoutSessionObject struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	PaymentStatus     string `json:"payment_status"`
}

// StripeWebhookHandler fulfills purchases from asynchronous Stripe events.
type StripeWebhookHandler struct {
	verifier external.WebhookVerifier
	grants   PurchaseGranter
	secret   types.SecretString
	clock    types.Clock
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	grants PurchaseGranter,
	secret types.SecretString,
	clock types.Clock,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		grants:   grants,
		secret:   secret,
		clock:    clock,
		logger:   logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint. Registered separately
// from the purchase routes because webhook routes carry no bearer auth.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes incoming Stripe webhook events.
//
//  1. Reads the body and the Stripe-Signature header.
//  2. Verifies the signature against the signing secret.
//  3. Parses the event and fulfills checkout.session.completed.
//  4. Returns 200 even when internal processing fails: the failure is
//     logged for investigation, and acknowledging receipt stops Stripe
//     from retrying into the same error forever.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "failed to read request body", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing Stripe-Signature header", nil))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "webhook signature verification failed", err))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid webhook event JSON", err))
		return
	}

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case eventCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted grants the purchase attributed by the session's
// client reference ID, formatted "{userID}_{itemID}" at session creation.
// A session without a parsable reference cannot be attributed to a user;
// it is logged and acknowledged, a known limitation of checkout carrying
// no first-party session.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return fmt.Errorf("%s: decoding session object: %w", eventCheckoutCompleted, err)
	}

	userID, itemID, ok := splitClientReference(session.ClientReferenceID)
	if !ok {
		h.logger.WarnContext(ctx, "checkout session is unattributable",
			"event_id", event.ID,
			"session_id", session.ID,
			"client_reference_id", session.ClientReferenceID,
		)
		return nil
	}

	purchase := &types.Purchase{
		ID:         uuid.NewString(),
		UserID:     userID,
		MetaphorID: itemID,
		Source:     types.PurchaseSourceCheckout,
		CreatedAt:  h.clock.Now(),
	}
	if err := h.grants.Create(ctx, purchase); err != nil {
		if appErr, isApp := err.(*types.AppError); isApp && appErr.Code == types.ErrCodeConflictDuplicatePurchase {
			// Stripe retries and duplicate events both land here.
			h.logger.InfoContext(ctx, "grant already recorded",
				"event_id", event.ID,
				"user_id", userID,
				"item_id", itemID,
			)
			return nil
		}
		return fmt.Errorf("%s: recording grant: %w", eventCheckoutCompleted, err)
	}

	h.logger.InfoContext(ctx, "checkout fulfilled",
		"event_id", event.ID,
		"user_id", userID,
		"item_id", itemID,
	)
	return nil
}

// splitClientReference parses "{userID}_{itemID}". User IDs are UUIDs and
// never contain underscores, so the first underscore is the separator; the
// item ID keeps any underscores of its own.
func splitClientReference(ref string) (userID, itemID string, ok bool) {
	userID, itemID, found := strings.Cut(ref, "_")
	if !found || userID == "" || itemID == "" {
		return "", "", false
	}
	return userID, itemID, true
}
