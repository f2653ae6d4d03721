package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"psyche/internal/types"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations (23505).
const pgUniqueViolation = "23505"

// PurchaseRepository provides data access for the purchases table.
// Purchases are append-only grants; rows are never updated or deleted.
type PurchaseRepository struct {
	db DBTX
}

// NewPurchaseRepository creates a new PurchaseRepository.
func NewPurchaseRepository(db DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts a purchase row. The (user_id, metaphor_id) pair is unique;
// inserting a grant the user already holds returns
// ErrCodeConflictDuplicatePurchase.
func (r *PurchaseRepository) Create(ctx context.Context, p *types.Purchase) error {
	var bundleID *string
	if p.BundleID != "" {
		bundleID = &p.BundleID
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO purchases (id, user_id, metaphor_id, source, bundle_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.MetaphorID, p.Source, bundleID, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return types.NewAppError(types.ErrCodeConflictDuplicatePurchase, "item already owned", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record purchase", err)
	}
	return nil
}

// CreateAll inserts a batch of purchase rows, skipping any the user already
// holds. Bundle fulfillment uses this so re-granting an overlapping bundle
// never fails midway. Returns the metaphor IDs actually granted.
func (r *PurchaseRepository) CreateAll(ctx context.Context, purchases []types.Purchase) ([]string, error) {
	granted := make([]string, 0, len(purchases))
	for i := range purchases {
		p := &purchases[i]
		var bundleID *string
		if p.BundleID != "" {
			bundleID = &p.BundleID
		}

		tag, err := r.db.Exec(ctx,
			`INSERT INTO purchases (id, user_id, metaphor_id, source, bundle_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, metaphor_id) DO NOTHING`,
			p.ID, p.UserID, p.MetaphorID, p.Source, bundleID, p.CreatedAt,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to record bundle grant", err)
		}
		if tag.RowsAffected() > 0 {
			granted = append(granted, p.MetaphorID)
		}
	}
	return granted, nil
}

// ListIDsByUser returns the metaphor IDs the user owns, oldest grant first.
func (r *PurchaseRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT metaphor_id FROM purchases WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list purchases", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan purchase row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate purchases", err)
	}
	return ids, nil
}

// Exists reports whether the user already owns the given metaphor.
func (r *PurchaseRepository) Exists(ctx context.Context, userID, metaphorID string) (bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT 1 FROM purchases WHERE user_id = $1 AND metaphor_id = $2`,
		userID, metaphorID,
	)

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check ownership", err)
	}
	return true, nil
}
