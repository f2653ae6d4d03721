// Package handlers contains the HTTP handler implementations for the psyche
// storefront API: auth, catalog, purchases, Stripe fulfillment, and the
// community endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"psyche/internal/auth"
	"psyche/internal/core"
	"psyche/internal/types"
)

// --- Service Interfaces ---

// SignInService exchanges a provider ID token for a local user and session.
// Satisfied by auth.SignInService.
type SignInService interface {
	SignIn(ctx context.Context, idToken string) (*auth.SignInResult, error)
}

// SessionInvalidator revokes the session behind a raw bearer token.
// Satisfied by auth.SessionService.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

// ProfileReader loads the authenticated user's profile.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// --- Request/Response Models ---

// GoogleSignInRequest is the request body for POST /auth/google.
type GoogleSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// SignInResponse is the success payload of POST /auth/google. The session
// key carries the raw bearer token, handed out exactly once.
type SignInResponse struct {
	User    *types.User      `json:"user"`
	Session types.Credential `json:"session"`
}

// --- Handler ---

// AuthHandler serves the sign-in, profile, and logout endpoints.
type AuthHandler struct {
	signIn    SignInService
	sessions  SessionInvalidator
	users     ProfileReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(signIn SignInService, sessions SessionInvalidator, users ProfileReader, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		signIn:    signIn,
		sessions:  sessions,
		users:     users,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the auth endpoints.
//
// Public:
//   - POST /auth/google - ID-token sign-in
//
// Protected (requireAuth guard):
//   - GET  /auth/me     - Authenticated profile
//   - POST /auth/logout - Session revocation
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/auth/google", h.HandleGoogleSignIn)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/auth/me", h.HandleMe)
		r.Post("/auth/logout", h.HandleLogout)
	})
}

// HandleGoogleSignIn handles POST /auth/google.
// Verifies the Google ID token, upserts the user, and issues a session.
func (h *AuthHandler) HandleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.signIn.SignIn(r.Context(), req.IDToken)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, SignInResponse{
		User:    result.User,
		Session: result.Credential,
	})
}

// HandleMe handles GET /auth/me.
// Returns the full profile for the resolved actor.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	user, err := h.users.GetByID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, user)
}

// HandleLogout handles POST /auth/logout.
// Revocation failures other than an unknown token are surfaced; clients
// treat logout as best-effort regardless.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	if err := h.sessions.Invalidate(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]string{"status": "signed_out"})
}

// bearerToken extracts the credential from an Authorization header value.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
