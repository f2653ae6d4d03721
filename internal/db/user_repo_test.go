package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"psyche/internal/types"
)

// Note: mockDBTX and mockRow are defined in session_repo_test.go and reused here.

func userScanFn(id, email, name string, vip types.VIPLevel) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		*dest[0].(*string) = id
		*dest[1].(*string) = email
		n := name
		*dest[2].(**string) = &n
		*dest[3].(*types.VIPLevel) = vip
		*dest[4].(*types.AuthProvider) = types.ProviderGoogle
		*dest[5].(*string) = "google-sub-42"
		*dest[6].(*time.Time) = now
		*dest[7].(**time.Time) = &now
		return nil
	}
}

func TestUserRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	row := &mockRow{scanFn: userScanFn("u1", "u1@example.com", "Uma", types.VIPVip)}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"u1"}).Return(row)

	user, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Uma", user.Name)
	assert.Equal(t, types.VIPVip, user.VIPLevel)
	assert.Equal(t, types.ProviderGoogle, user.AuthProvider)

	db.AssertExpectations(t)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetByID(context.Background(), "u_missing")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_UpsertFromProvider_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := &mockRow{scanFn: userScanFn("u_new", "new@example.com", "New User", types.VIPFree)}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		[]any{"u_new", "new@example.com", "New User", types.VIPFree, types.ProviderGoogle, "google-sub-42", now}).
		Return(row)

	user, err := repo.UpsertFromProvider(context.Background(),
		"u_new", types.ProviderGoogle, "google-sub-42", "new@example.com", "New User", now)
	require.NoError(t, err)
	assert.Equal(t, "u_new", user.ID)
	assert.Equal(t, types.VIPFree, user.VIPLevel)

	db.AssertExpectations(t)
}

func TestUserRepository_UpsertFromProvider_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	row := &mockRow{scanErr: errors.New("deadlock detected")}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.UpsertFromProvider(context.Background(),
		"u1", types.ProviderGoogle, "sub", "a@b.c", "A", time.Now())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestUserRepository_SetVIPLevel_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"u1", types.VIPVip}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.SetVIPLevel(context.Background(), "u1", types.VIPVip))
}

func TestUserRepository_SetVIPLevel_UnknownUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.SetVIPLevel(context.Background(), "u_missing", types.VIPVip)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}
