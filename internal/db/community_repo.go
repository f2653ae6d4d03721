package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"psyche/internal/types"
)

// CommunityRepository provides data access for the community tables:
// mailing-list subscribers and metaphor suggestions.
type CommunityRepository struct {
	db DBTX
}

// NewCommunityRepository creates a new CommunityRepository.
func NewCommunityRepository(db DBTX) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// AddSubscriber records a mailing-list signup. Emails are unique;
// re-subscribing an existing address returns
// ErrCodeConflictEmailSubscribed.
func (r *CommunityRepository) AddSubscriber(ctx context.Context, id, email string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscribers (id, email, created_at) VALUES ($1, $2, $3)`,
		id, email, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return types.NewAppError(types.ErrCodeConflictEmailSubscribed, "email is already subscribed", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add subscriber", err)
	}
	return nil
}

// AddSuggestion records a visitor's metaphor suggestion. UserID is empty for
// anonymous suggestions.
func (r *CommunityRepository) AddSuggestion(ctx context.Context, id, userID, text string, now time.Time) error {
	var uid *string
	if userID != "" {
		uid = &userID
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO suggestions (id, user_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		id, uid, text, now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add suggestion", err)
	}
	return nil
}
