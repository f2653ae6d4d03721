package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"psyche/internal/external"
	"psyche/internal/types"
)

// IdentityVerifier validates a provider-issued ID token and returns the
// asserted profile. Satisfied by external.GoogleVerifier.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*external.GoogleProfile, error)
}

// UserRepo defines the user write access needed by the sign-in flow.
type UserRepo interface {
	UpsertFromProvider(ctx context.Context, id string, provider types.AuthProvider, providerID, email, name string, now time.Time) (*types.User, error)
}

// SignInResult is everything a client needs after a successful sign-in:
// the resolved profile and the credential it must present on later requests.
type SignInResult struct {
	User       *types.User      `json:"user"`
	Credential types.Credential `json:"credential"`
}

// SignInService exchanges a Google ID token for a local user and a fresh
// session credential.
type SignInService struct {
	verifier IdentityVerifier
	users    UserRepo
	sessions *SessionService
	clock    types.Clock
	logger   *slog.Logger
}

// SignInServiceConfig holds the dependencies for creating a SignInService.
type SignInServiceConfig struct {
	Verifier IdentityVerifier
	Users    UserRepo
	Sessions *SessionService
	Clock    types.Clock  // nil uses RealClock
	Logger   *slog.Logger // nil uses slog.Default()
}

// NewSignInService creates a new SignInService.
func NewSignInService(cfg SignInServiceConfig) *SignInService {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SignInService{
		verifier: cfg.Verifier,
		users:    cfg.Users,
		sessions: cfg.Sessions,
		clock:    clock,
		logger:   logger,
	}
}

// SignIn verifies the ID token with the identity provider, upserts the local
// user record, and issues a session. A rejected token surfaces as
// ErrCodeAuthProviderDenied; the provider being unreachable surfaces as an
// upstream error so clients can retry.
func (s *SignInService) SignIn(ctx context.Context, idToken string) (*SignInResult, error) {
	profile, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpsertFromProvider(ctx,
		uuid.NewString(),
		types.ProviderGoogle,
		profile.Subject,
		profile.Email,
		profile.Name,
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}

	session, token, err := s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed in",
		"user_id", user.ID,
		"provider", types.ProviderGoogle,
	)
	return &SignInResult{
		User: user,
		Credential: types.Credential{
			Token:     token,
			ExpiresAt: session.ExpiresAt,
		},
	}, nil
}
