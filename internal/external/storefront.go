package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"psyche/internal/types"
)

// CredentialProvider supplies the Authorization header for authenticated
// storefront calls. The engine's session state implements it; ok is false
// when no live credential exists.
type CredentialProvider interface {
	AuthHeader() (value string, ok bool)
}

// StorefrontConfig holds the configuration for creating a StorefrontClient.
type StorefrontConfig struct {
	BaseURL     string        // no trailing slash
	Timeout     time.Duration // bounded per-request timeout; defaults to 10s
	Credentials CredentialProvider
	Logger      *slog.Logger
}

// StorefrontClient talks to the storefront API on behalf of the client
// engine. It implements catalog.Source and entitlements.Source, and carries
// the content, purchase, and auth operations.
//
// All failures come back as *types.AppError. 401 on an authenticated call is
// mapped to ErrCodeAuthSessionExpired so the engine can purge its session;
// everything transport-shaped maps to an upstream code the engine treats as
// transient.
type StorefrontClient struct {
	base    *BaseClient
	baseURL string
	creds   CredentialProvider
	logger  *slog.Logger
}

// NewStorefrontClient creates a StorefrontClient with its own BaseClient.
func NewStorefrontClient(cfg StorefrontConfig) *StorefrontClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		&http.Client{Timeout: timeout},
		"storefront",
		DefaultRetryPolicy(),
		"Psyche/1.0",
	)

	return &StorefrontClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		logger:  logger,
	}
}

// NewStorefrontClientWithBase creates a StorefrontClient over a pre-built
// BaseClient. Used by tests to control retry and breaker behavior.
func NewStorefrontClientWithBase(base *BaseClient, cfg StorefrontConfig) *StorefrontClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StorefrontClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Catalog + bundles
// ---------------------------------------------------------------------------

// FetchCatalog implements catalog.Source against GET /catalog.
func (c *StorefrontClient) FetchCatalog(ctx context.Context) ([]types.Metaphor, error) {
	var items []types.Metaphor
	if err := c.getJSON(ctx, "/catalog", false, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchBundles retrieves the bundle list from GET /bundles.
func (c *StorefrontClient) FetchBundles(ctx context.Context) ([]types.Bundle, error) {
	var bundles []types.Bundle
	if err := c.getJSON(ctx, "/bundles", false, &bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

// ---------------------------------------------------------------------------
// Entitlements
// ---------------------------------------------------------------------------

// FetchOwnedIDs implements entitlements.Source against GET /user/purchases.
func (c *StorefrontClient) FetchOwnedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/user/purchases", true, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

// FetchContent retrieves item content from GET /catalog/{id}/content.
// The bearer credential is attached when present; the server decides what
// content the caller is entitled to and asserts has_access.
func (c *StorefrontClient) FetchContent(ctx context.Context, itemID string) (*types.ContentResult, error) {
	var result types.ContentResult
	if err := c.getJSON(ctx, "/catalog/"+itemID+"/content", true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ---------------------------------------------------------------------------
// Purchases
// ---------------------------------------------------------------------------

// PurchaseResult is the success payload of a first-party purchase endpoint.
type PurchaseResult struct {
	GrantedIDs []string `json:"granted_ids"`
	Message    string   `json:"message,omitempty"`
}

// PurchaseItem issues POST /purchase/{id}. A non-success response surfaces
// as ErrCodePurchaseRejected carrying the server's message verbatim.
func (c *StorefrontClient) PurchaseItem(ctx context.Context, itemID string) (*PurchaseResult, error) {
	return c.purchase(ctx, "/purchase/"+itemID)
}

// PurchaseBundle issues POST /purchase/bundle/{id}.
func (c *StorefrontClient) PurchaseBundle(ctx context.Context, bundleID string) (*PurchaseResult, error) {
	return c.purchase(ctx, "/purchase/bundle/"+bundleID)
}

func (c *StorefrontClient) purchase(ctx context.Context, path string) (*PurchaseResult, error) {
	resp, err := c.do(ctx, http.MethodPost, path, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session no longer valid", nil)
	}
	if resp.StatusCode != http.StatusOK {
		// Surfaced verbatim to the user-facing layer: no retry, no state change.
		return nil, types.NewAppError(
			types.ErrCodePurchaseRejected,
			extractErrorMessage(resp.Body),
			nil,
		)
	}

	var result PurchaseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode purchase response", err)
	}
	return &result, nil
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// SignInResult is the payload of POST /auth/{provider}.
type SignInResult struct {
	User    *types.User      `json:"user"`
	Session types.Credential `json:"session"`
}

// SignIn exchanges an identity-provider token for a storefront session.
func (c *StorefrontClient) SignIn(ctx context.Context, provider, idToken string) (*SignInResult, error) {
	body, err := json.Marshal(map[string]string{"id_token": idToken})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode sign-in request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/"+provider, strings.NewReader(string(body)))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sign-in request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeAuthProviderDenied,
			extractErrorMessage(resp.Body),
			nil,
		)
	}

	var result SignInResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode sign-in response", err)
	}
	return &result, nil
}

// Me fetches the authenticated profile from GET /auth/me.
func (c *StorefrontClient) Me(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.getJSON(ctx, "/auth/me", true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout issues POST /auth/logout. Best effort: all errors are swallowed
// after logging, since the local purge is what actually ends the session.
func (c *StorefrontClient) Logout(ctx context.Context) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", true)
	if err != nil {
		c.logger.DebugContext(ctx, "logout request failed", "error", err)
		return
	}
	resp.Body.Close()
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// do builds and executes a request, attaching the bearer credential when
// authed is true and a credential is available.
func (c *StorefrontClient) do(ctx context.Context, method, path string, authed bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	if authed && c.creds != nil {
		if header, ok := c.creds.AuthHeader(); ok {
			req.Header.Set("Authorization", header)
		}
	}
	return c.base.Do(req)
}

// getJSON performs a GET and decodes a 200 response into dst. 401 maps to
// session expiry; any other non-200 maps to an upstream error the engine
// resolves by fallback.
func (c *StorefrontClient) getJSON(ctx context.Context, path string, authed bool, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, authed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("failed to decode response from %s", path), err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(types.ErrCodeAuthSessionExpired, "session no longer valid", nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	}
}

// extractErrorMessage pulls a human-readable message out of an error body.
// The storefront speaks the envelope form {"error":{"code","message"}}, but
// older deployments replied with a bare {"error":"..."} string; both are
// tolerated, and an unreadable body degrades to a generic message.
func extractErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 8*1024))
	if err != nil || len(raw) == 0 {
		return "request rejected"
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return "request rejected"
	}

	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
		return plain
	}

	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}

	return "request rejected"
}
