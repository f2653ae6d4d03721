// Package auth implements session issuance, bearer token resolution, and
// the Google sign-in flow for the psyche API.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"psyche/internal/types"
)

// rawTokenBytes is the entropy of a freshly issued bearer token.
const rawTokenBytes = 32

// TokenGenerator abstracts random token generation for testability.
type TokenGenerator interface {
	Generate() (string, error)
}

// randomTokenGenerator is the production TokenGenerator backed by crypto/rand.
type randomTokenGenerator struct{}

func (randomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken produces the hex-encoded SHA-256 hash of a raw bearer token.
// Only the hash is persisted, so a database leak never exposes live tokens,
// while lookups by token stay a single indexed equality query.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepo defines the data access methods needed by the SessionService.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserStore defines the user lookup needed to turn a session into an Actor.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// SessionService issues bearer sessions and resolves presented tokens back
// to an authenticated Actor. It implements core.Authenticator.
type SessionService struct {
	sessions SessionRepo
	users    UserStore
	tokenGen TokenGenerator
	duration time.Duration
	clock    types.Clock
	logger   *slog.Logger
}

// SessionServiceConfig holds the dependencies for creating a SessionService.
type SessionServiceConfig struct {
	Sessions SessionRepo
	Users    UserStore
	TokenGen TokenGenerator // nil uses crypto/rand
	Duration time.Duration  // lifetime of issued sessions
	Clock    types.Clock    // nil uses RealClock
	Logger   *slog.Logger   // nil uses slog.Default()
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg SessionServiceConfig) *SessionService {
	tokenGen := cfg.TokenGen
	if tokenGen == nil {
		tokenGen = randomTokenGenerator{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions: cfg.Sessions,
		users:    cfg.Users,
		tokenGen: tokenGen,
		duration: cfg.Duration,
		clock:    clock,
		logger:   logger,
	}
}

// CreateSession mints a new session for the user and returns the stored
// record along with the raw bearer token. The raw token is handed to the
// caller exactly once and never persisted.
func (s *SessionService) CreateSession(ctx context.Context, userID string) (*types.Session, string, error) {
	token, err := s.tokenGen.Generate()
	if err != nil {
		return nil, "", err
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}

	// Lazy cleanup: each sign-in sweeps sessions that have already lapsed.
	if purged, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		s.logger.WarnContext(ctx, "expired session sweep failed", "error", err)
	} else if purged > 0 {
		s.logger.InfoContext(ctx, "expired sessions purged", "count", purged)
	}

	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID,
		"user_id", userID,
		"expires_at", session.ExpiresAt,
	)
	return session, token, nil
}

// ResolveToken validates a presented bearer token and returns the Actor it
// represents. An unknown token returns ErrCodeAuthTokenInvalid; a token whose
// session has lapsed returns ErrCodeAuthSessionExpired and deletes the stale
// row so the token can never be replayed.
func (s *SessionService) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	if s.clock.Now().After(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session",
				"session_id", session.ID, "error", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return &types.Actor{
		UserID:   user.ID,
		Email:    user.Email,
		VIPLevel: user.VIPLevel,
	}, nil
}

// Invalidate revokes the session behind a raw bearer token. Logout is
// idempotent: an unknown or already revoked token is not an error.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeAuthTokenInvalid {
			return nil
		}
		return err
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session invalidated", "session_id", session.ID)
	return nil
}
