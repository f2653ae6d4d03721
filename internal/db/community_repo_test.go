package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"psyche/internal/types"
)

func TestCommunityRepository_AddSubscriber_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCommunityRepository(db)

	now := time.Now().UTC()
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"sub_1", "a@b.example", now}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.AddSubscriber(context.Background(), "sub_1", "a@b.example", now))
	db.AssertExpectations(t)
}

func TestCommunityRepository_AddSubscriber_Duplicate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCommunityRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: pgUniqueViolation})

	err := repo.AddSubscriber(context.Background(), "sub_1", "a@b.example", time.Now())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictEmailSubscribed, appErr.Code)
}

func TestCommunityRepository_AddSuggestion_AnonymousUsesNullUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCommunityRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			uid, ok := args[1].(*string)
			return ok && uid == nil
		})).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.AddSuggestion(context.Background(), "sug_1", "", "a metaphor about tides", time.Now())
	require.NoError(t, err)
}

func TestCommunityRepository_AddSuggestion_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCommunityRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.AddSuggestion(context.Background(), "sug_1", "u1", "text", time.Now())

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
