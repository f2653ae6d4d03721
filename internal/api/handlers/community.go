package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"psyche/internal/core"
	"psyche/internal/types"
)

// --- Service Interfaces ---

// CommunityStore persists newsletter subscriptions and metaphor suggestions.
// Satisfied by db.CommunityRepository.
type CommunityStore interface {
	AddSubscriber(ctx context.Context, id, email string, now time.Time) error
	AddSuggestion(ctx context.Context, id, userID, text string, now time.Time) error
}

// --- Request Models ---

// SubscribeRequest is the request body for POST /subscribe.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SuggestionRequest is the request body for POST /metaphor-suggestions.
type SuggestionRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// --- Handler ---

// CommunityHandler serves the newsletter and suggestion endpoints. Both are
// public; a suggestion from a signed-in visitor is attributed to them.
type CommunityHandler struct {
	store     CommunityStore
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewCommunityHandler creates a new CommunityHandler.
func NewCommunityHandler(store CommunityStore, v *core.Validator, clock types.Clock, l *slog.Logger) *CommunityHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &CommunityHandler{
		store:     store,
		validator: v,
		clock:     clock,
		logger:    l,
	}
}

// RegisterRoutes mounts the community endpoints.
func (h *CommunityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscribe", h.HandleSubscribe)
	r.Post("/metaphor-suggestions", h.HandleSuggestion)
}

// HandleSubscribe handles POST /subscribe.
// A duplicate email returns a conflict so the caller can tell the visitor
// they are already on the list.
func (h *CommunityHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.AddSubscriber(r.Context(), uuid.NewString(), req.Email, h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "newsletter subscription recorded")
	core.JSON(w, r, http.StatusOK, map[string]string{"status": "subscribed"})
}

// HandleSuggestion handles POST /metaphor-suggestions.
func (h *CommunityHandler) HandleSuggestion(w http.ResponseWriter, r *http.Request) {
	var req SuggestionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	var userID string
	if actor, ok := types.GetActor(r.Context()); ok {
		userID = actor.UserID
	}

	if err := h.store.AddSuggestion(r.Context(), uuid.NewString(), userID, req.Text, h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]string{"status": "received"})
}
