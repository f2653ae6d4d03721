package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psyche/internal/auth"
	"psyche/internal/core"
	"psyche/internal/types"
)

// =============================================================================
// Shared test helpers
// =============================================================================

// passthroughAuth is a requireAuth stand-in used when a test injects the
// actor itself.
func passthroughAuth(next http.Handler) http.Handler {
	return next
}

// denyAuth rejects every request, for asserting guard placement.
func denyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

// withActor wraps a request with an authenticated actor context.
func withActor(r *http.Request, actor types.Actor) *http.Request {
	return r.WithContext(types.WithActor(r.Context(), actor))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

// =============================================================================
// Mocks
// =============================================================================

type mockSignInService struct {
	signInFn func(ctx context.Context, idToken string) (*auth.SignInResult, error)
}

func (m *mockSignInService) SignIn(ctx context.Context, idToken string) (*auth.SignInResult, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, idToken)
	}
	return nil, types.NewAppError(types.ErrCodeAuthProviderDenied, "denied", nil)
}

type mockSessionInvalidator struct {
	invalidateFn func(ctx context.Context, token string) error
	invalidated  []string
}

func (m *mockSessionInvalidator) Invalidate(ctx context.Context, token string) error {
	m.invalidated = append(m.invalidated, token)
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, token)
	}
	return nil
}

type mockProfileReader struct {
	getByIDFn func(ctx context.Context, id string) (*types.User, error)
}

func (m *mockProfileReader) GetByID(ctx context.Context, id string) (*types.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundUser, "not found", nil)
}

// =============================================================================
// Tests
// =============================================================================

func newAuthHandler(signIn *mockSignInService, sessions *mockSessionInvalidator, users *mockProfileReader) *AuthHandler {
	return NewAuthHandler(signIn, sessions, users, core.NewValidator(nil), nil)
}

func TestAuthHandler_GoogleSignIn_Success(t *testing.T) {
	expires := time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)
	signIn := &mockSignInService{
		signInFn: func(ctx context.Context, idToken string) (*auth.SignInResult, error) {
			assert.Equal(t, "google-token", idToken)
			return &auth.SignInResult{
				User: &types.User{ID: "u1", Email: "ada@example.com", VIPLevel: types.VIPFree},
				Credential: types.Credential{
					Token:     "rawtoken123",
					ExpiresAt: expires,
				},
			}, nil
		},
	}
	h := newAuthHandler(signIn, &mockSessionInvalidator{}, &mockProfileReader{})

	body, _ := json.Marshal(GoogleSignInRequest{IDToken: "google-token"})
	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleGoogleSignIn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User    types.User       `json:"user"`
		Session types.Credential `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "rawtoken123", resp.Session.Token)
	assert.True(t, resp.Session.ExpiresAt.Equal(expires))
}

func TestAuthHandler_GoogleSignIn_MissingToken(t *testing.T) {
	h := newAuthHandler(&mockSignInService{}, &mockSessionInvalidator{}, &mockProfileReader{})

	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.HandleGoogleSignIn(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_GoogleSignIn_ProviderDenied(t *testing.T) {
	h := newAuthHandler(&mockSignInService{}, &mockSessionInvalidator{}, &mockProfileReader{})

	body, _ := json.Marshal(GoogleSignInRequest{IDToken: "bad"})
	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleGoogleSignIn(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthProviderDenied), decodeErrorCode(t, rec))
}

func TestAuthHandler_Me_Success(t *testing.T) {
	users := &mockProfileReader{
		getByIDFn: func(ctx context.Context, id string) (*types.User, error) {
			require.Equal(t, "u1", id)
			return &types.User{ID: "u1", Email: "ada@example.com", VIPLevel: types.VIPVip}, nil
		},
	}
	h := newAuthHandler(&mockSignInService{}, &mockSessionInvalidator{}, users)

	req := withActor(httptest.NewRequest(http.MethodGet, "/auth/me", nil), types.Actor{UserID: "u1"})
	rec := httptest.NewRecorder()
	h.HandleMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, types.VIPVip, user.VIPLevel)
}

func TestAuthHandler_Me_NoActor(t *testing.T) {
	h := newAuthHandler(&mockSignInService{}, &mockSessionInvalidator{}, &mockProfileReader{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.HandleMe(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_RevokesPresentedToken(t *testing.T) {
	sessions := &mockSessionInvalidator{}
	h := newAuthHandler(&mockSignInService{}, sessions, &mockProfileReader{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer rawtoken123")
	rec := httptest.NewRecorder()
	h.HandleLogout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"rawtoken123"}, sessions.invalidated)
}

func TestAuthHandler_Logout_NoHeader(t *testing.T) {
	sessions := &mockSessionInvalidator{}
	h := newAuthHandler(&mockSignInService{}, sessions, &mockProfileReader{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.HandleLogout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sessions.invalidated)
}

func TestAuthHandler_RegisterRoutes_GuardsProtectedEndpoints(t *testing.T) {
	h := newAuthHandler(&mockSignInService{}, &mockSessionInvalidator{}, &mockProfileReader{})
	r := chi.NewRouter()
	h.RegisterRoutes(r, denyAuth)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Sign-in stays public even with a denying guard.
	body, _ := json.Marshal(GoogleSignInRequest{IDToken: "tok"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewReader(body)))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"empty", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"bare scheme", "Bearer ", ""},
		{"padded token", "Bearer  abc123 ", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bearerToken(tt.header))
		})
	}
}
