// Package library is the client-side reconciliation engine: it keeps the
// catalog snapshot, the entitlement set, and the session credential in sync
// with the storefront and assembles the render-ready library view.
package library

import (
	"log/slog"
	"sync"

	"psyche/internal/types"
)

// SessionState is the client-held half of a session: the signed-in user and
// the bearer credential the storefront issued. It implements
// external.CredentialProvider so outbound calls attach the token while it is
// live and silently drop it once expired.
//
// Expiry and server-side 401s both end the session the same way: a local
// purge. There is no token refresh.
type SessionState struct {
	clock  types.Clock
	logger *slog.Logger

	mu   sync.RWMutex
	user *types.User
	cred types.Credential
}

// NewSessionState creates an empty SessionState.
func NewSessionState(clock types.Clock, logger *slog.Logger) *SessionState {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionState{clock: clock, logger: logger}
}

// Set installs a fresh session after sign-in.
func (s *SessionState) Set(user *types.User, cred types.Credential) {
	s.mu.Lock()
	s.user = user
	s.cred = cred
	s.mu.Unlock()
}

// Purge drops the credential and user. Called on expiry, on a server 401,
// and on logout. Idempotent.
func (s *SessionState) Purge() {
	s.mu.Lock()
	s.user = nil
	s.cred = types.Credential{}
	s.mu.Unlock()
}

// Authenticated reports whether a live, unexpired credential is held.
// An expired credential is purged on observation.
func (s *SessionState) Authenticated() bool {
	_, ok := s.AuthHeader()
	return ok
}

// User returns the signed-in user, or nil. The user is only meaningful
// while Authenticated() holds.
func (s *SessionState) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live() {
		return nil
	}
	return s.user
}

// UserID returns the signed-in user's ID, or the empty string.
func (s *SessionState) UserID() string {
	if u := s.User(); u != nil {
		return u.ID
	}
	return ""
}

// AuthHeader implements external.CredentialProvider. A held credential past
// its expiry is treated as absent and purged, so no request ever carries a
// token the server is guaranteed to reject.
func (s *SessionState) AuthHeader() (string, bool) {
	s.mu.RLock()
	token := s.cred.Token
	alive := s.live()
	expired := token != "" && !alive
	s.mu.RUnlock()

	if expired {
		s.logger.Info("session credential expired, purging")
		s.Purge()
	}
	if !alive {
		return "", false
	}
	return "Bearer " + token, true
}

// live reports whether the held credential exists and is unexpired.
// Callers must hold at least the read lock.
func (s *SessionState) live() bool {
	return s.cred.Token != "" && !s.cred.Expired(s.clock.Now())
}
