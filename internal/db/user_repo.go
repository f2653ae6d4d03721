package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"psyche/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.email, u.name, u.vip_level, u.auth_provider, u.auth_provider_id,
	u.created_at, u.last_login_at`

// userColumnsBare is the same column list without the table alias, for use
// in RETURNING clauses where no alias is in scope.
const userColumnsBare = `id, email, name, vip_level, auth_provider, auth_provider_id,
	created_at, last_login_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var name *string
	err := row.Scan(
		&u.ID,
		&u.Email,
		&name,
		&u.VIPLevel,
		&u.AuthProvider,
		&u.AuthProviderID,
		&u.CreatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	return &u, nil
}

// GetByID retrieves a user by ID. Returns ErrCodeNotFoundUser when absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// UpsertFromProvider finds or creates the user identified by the external
// identity provider. On first sign-in a row is inserted; on subsequent
// sign-ins the email and name are refreshed from the asserted profile
// and last_login_at is advanced. The user's ID and VIP level are never
// touched by the upsert.
func (r *UserRepository) UpsertFromProvider(
	ctx context.Context,
	id string,
	provider types.AuthProvider,
	providerID, email, name string,
	now time.Time,
) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, name, vip_level, auth_provider, auth_provider_id, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (auth_provider, auth_provider_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     name = EXCLUDED.name,
		     last_login_at = EXCLUDED.last_login_at
		 RETURNING `+userColumnsBare,
		id, email, name, types.VIPFree, provider, providerID, now,
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert user", err)
	}
	return u, nil
}

// SetVIPLevel updates a user's VIP level. Used by subscription fulfillment.
func (r *UserRepository) SetVIPLevel(ctx context.Context, userID string, level types.VIPLevel) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET vip_level = $2 WHERE id = $1`,
		userID, level,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update vip level", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}
