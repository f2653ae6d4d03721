package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"psyche/internal/types"
)

// googleTokenInfoURL is the Google endpoint that validates an ID token and
// returns its claims. Overridable in tests via GoogleVerifierConfig.
const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleProfile is the subset of ID-token claims the auth service consumes.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifierConfig holds the configuration for creating a GoogleVerifier.
type GoogleVerifierConfig struct {
	ClientID string // the audience every accepted token must carry
	BaseURL  string // override for testing; defaults to googleTokenInfoURL
	Logger   *slog.Logger
}

// GoogleVerifier validates Google ID tokens by calling Google's tokeninfo
// endpoint through the BaseClient. The endpoint checks the signature and
// expiry; the verifier additionally pins the audience to our client ID so a
// token minted for another app is rejected.
type GoogleVerifier struct {
	base     *BaseClient
	clientID string
	baseURL  string
	logger   *slog.Logger
	clock    types.Clock
}

// NewGoogleVerifier creates a GoogleVerifier with its own BaseClient.
func NewGoogleVerifier(httpClient *http.Client, cfg GoogleVerifierConfig) *GoogleVerifier {
	base := NewBaseClient(
		httpClient,
		"google-tokeninfo",
		RetryPolicy{MaxRetries: 1, MinWait: 200 * time.Millisecond, MaxWait: 2 * time.Second},
		"Psyche/1.0",
	)
	return newGoogleVerifier(base, cfg)
}

// NewGoogleVerifierWithBase creates a GoogleVerifier over a pre-built
// BaseClient, for tests.
func NewGoogleVerifierWithBase(base *BaseClient, cfg GoogleVerifierConfig) *GoogleVerifier {
	return newGoogleVerifier(base, cfg)
}

func newGoogleVerifier(base *BaseClient, cfg GoogleVerifierConfig) *GoogleVerifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleTokenInfoURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleVerifier{
		base:     base,
		clientID: cfg.ClientID,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
		clock:    types.RealClock{},
	}
}

// tokenInfoResponse mirrors the fields of Google's tokeninfo payload we use.
// Numeric claims arrive as strings.
type tokenInfoResponse struct {
	Aud   string `json:"aud"`
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   string `json:"exp"`
}

// Verify validates the ID token and returns the asserted profile.
// A token Google rejects, an audience mismatch, or an expired token all
// return ErrCodeAuthProviderDenied; transport failures return upstream codes.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleProfile, error) {
	if idToken == "" {
		return nil, types.NewAppError(types.ErrCodeAuthProviderDenied, "id token is required", nil)
	}

	params := url.Values{}
	params.Set("id_token", idToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		v.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build tokeninfo request", err)
	}

	resp, err := v.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGoogle, "tokeninfo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Google replies 400 for malformed, expired, or revoked tokens.
		return nil, types.NewAppError(types.ErrCodeAuthProviderDenied, "identity provider rejected the token", nil)
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode tokeninfo response", err)
	}

	if info.Aud != v.clientID {
		v.logger.WarnContext(ctx, "id token audience mismatch", "aud", info.Aud)
		return nil, types.NewAppError(types.ErrCodeAuthProviderDenied, "token was not issued for this application", nil)
	}

	// tokeninfo rejects expired tokens with a 400; the exp claim is still
	// checked here so a cached or replayed 200 cannot slip through.
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err == nil {
		if time.Unix(exp, 0).Before(v.clock.Now()) {
			return nil, types.NewAppError(types.ErrCodeAuthProviderDenied, "token has expired", nil)
		}
	}

	if info.Sub == "" || info.Email == "" {
		return nil, types.NewAppError(types.ErrCodeAuthProviderDenied,
			fmt.Sprintf("token is missing required claims (sub=%q)", info.Sub), nil)
	}

	return &GoogleProfile{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}
