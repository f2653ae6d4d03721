package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psyche/internal/types"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var testEpoch = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func liveSession(clock *fakeClock) *SessionState {
	s := NewSessionState(clock, nil)
	s.Set(
		&types.User{ID: "u1", Email: "ada@example.com"},
		types.Credential{Token: "rawtoken123", ExpiresAt: clock.now.Add(time.Hour)},
	)
	return s
}

func TestSessionState_EmptyIsAnonymous(t *testing.T) {
	s := NewSessionState(&fakeClock{now: testEpoch}, nil)

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	assert.Empty(t, s.UserID())

	header, ok := s.AuthHeader()
	assert.False(t, ok)
	assert.Empty(t, header)
}

func TestSessionState_LiveCredential(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	s := liveSession(clock)

	require.True(t, s.Authenticated())
	assert.Equal(t, "u1", s.UserID())

	header, ok := s.AuthHeader()
	require.True(t, ok)
	assert.Equal(t, "Bearer rawtoken123", header)
}

func TestSessionState_ExpiryPurges(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	s := liveSession(clock)

	clock.now = testEpoch.Add(2 * time.Hour)

	_, ok := s.AuthHeader()
	assert.False(t, ok)
	assert.Nil(t, s.User())
	assert.False(t, s.Authenticated())

	// Rewinding the clock must not resurrect the purged credential.
	clock.now = testEpoch
	assert.False(t, s.Authenticated())
}

func TestSessionState_ExpiresExactlyNowIsExpired(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	s := NewSessionState(clock, nil)
	s.Set(&types.User{ID: "u1"}, types.Credential{Token: "tok", ExpiresAt: testEpoch})

	assert.False(t, s.Authenticated())
}

func TestSessionState_PurgeIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	s := liveSession(clock)

	s.Purge()
	s.Purge()

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
}

func TestSessionState_SetReplacesPriorSession(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	s := liveSession(clock)

	s.Set(
		&types.User{ID: "u2"},
		types.Credential{Token: "other", ExpiresAt: testEpoch.Add(time.Hour)},
	)

	assert.Equal(t, "u2", s.UserID())
	header, _ := s.AuthHeader()
	assert.Equal(t, "Bearer other", header)
}
