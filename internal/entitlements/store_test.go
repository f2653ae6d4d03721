package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"psyche/internal/types"
)

type mockSource struct {
	fetchFn func(ctx context.Context) ([]string, error)
	calls   int
}

func (m *mockSource) FetchOwnedIDs(ctx context.Context) ([]string, error) {
	m.calls++
	return m.fetchFn(ctx)
}

func TestRefresh_Unauthenticated_NoRequest(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		return []string{"poker"}, nil
	}}
	store := NewStore(src, slog.Default())

	set := store.Refresh(context.Background(), false)

	assert.Empty(t, set)
	assert.Zero(t, src.calls, "logged-out refresh must not hit the network")
}

func TestRefresh_Authenticated_Success(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		return []string{"poker", "chess"}, nil
	}}
	store := NewStore(src, slog.Default())

	set := store.Refresh(context.Background(), true)

	assert.True(t, set.Has("poker"))
	assert.True(t, set.Has("chess"))
	assert.False(t, set.Has("choir"))
	assert.Equal(t, set, store.Owned())
}

func TestRefresh_FailClosed_NeverStale(t *testing.T) {
	// First refresh succeeds, second fails. The failed refresh must yield
	// the empty set, not the previous non-empty one.
	calls := 0
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"poker"}, nil
		}
		return nil, errors.New("network unreachable")
	}}
	store := NewStore(src, slog.Default())

	first := store.Refresh(context.Background(), true)
	assert.True(t, first.Has("poker"))

	second := store.Refresh(context.Background(), true)
	assert.Empty(t, second)
	assert.Empty(t, store.Owned(), "stale set discarded on failure")
}

func TestRefresh_FailClosed_AppError(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "purchases endpoint 500", nil)
	}}
	store := NewStore(src, nil)

	set := store.Refresh(context.Background(), true)

	assert.Empty(t, set)
}

func TestRefresh_FullReplacement(t *testing.T) {
	calls := 0
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"poker"}, nil
		}
		return []string{"chess"}, nil
	}}
	store := NewStore(src, slog.Default())

	store.Refresh(context.Background(), true)
	set := store.Refresh(context.Background(), true)

	assert.False(t, set.Has("poker"), "refresh replaces, never merges")
	assert.True(t, set.Has("chess"))
}

func TestClear(t *testing.T) {
	src := &mockSource{fetchFn: func(ctx context.Context) ([]string, error) {
		return []string{"poker"}, nil
	}}
	store := NewStore(src, slog.Default())
	store.Refresh(context.Background(), true)

	store.Clear()

	assert.Empty(t, store.Owned())
}
