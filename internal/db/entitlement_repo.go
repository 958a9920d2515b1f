package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// EntitlementRepository provides data access for the entitlements table.
//
// The table carries a partial unique index on (profile_id, source_id) WHERE
// status = 'active'. That index, not application-level locking, is what makes
// concurrent activation triggers safe: Insert uses ON CONFLICT DO NOTHING and
// reports whether the row was actually created, so the second of two racing
// writers observes inserted=false instead of creating a duplicate.
type EntitlementRepository struct {
	db DBTX
}

// NewEntitlementRepository creates a new EntitlementRepository backed by the
// given database connection (pool or transaction).
func NewEntitlementRepository(db DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

const entitlementColumns = `e.id, e.profile_id, e.product_id, e.source_type, e.source_id,
	e.status, e.expires_at, e.created_at`

func scanEntitlement(row pgx.Row) (*types.Entitlement, error) {
	var e types.Entitlement
	err := row.Scan(
		&e.ID,
		&e.ProfileID,
		&e.ProductID,
		&e.SourceType,
		&e.SourceID,
		&e.Status,
		&e.ExpiresAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ActiveBySource returns the active entitlement for the (profile, source)
// pair, or nil when none exists.
func (r *EntitlementRepository) ActiveBySource(ctx context.Context, profileID, sourceID string) (*types.Entitlement, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entitlementColumns+`
		 FROM entitlements e
		 WHERE e.profile_id = $1 AND e.source_id = $2 AND e.status = 'active'
		 LIMIT 1`,
		profileID, sourceID,
	)

	e, err := scanEntitlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query entitlement", err)
	}
	return e, nil
}

// Insert creates an entitlement row. When a concurrent writer already created
// the active entitlement for the same (profile_id, source_id) pair, the
// partial unique index rejects the row, ON CONFLICT DO NOTHING swallows the
// rejection, and inserted comes back false.
func (r *EntitlementRepository) Insert(ctx context.Context, e *types.Entitlement) (inserted bool, err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx,
		`INSERT INTO entitlements (id, profile_id, product_id, source_type, source_id,
		   status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (profile_id, source_id) WHERE status = 'active' DO NOTHING`,
		e.ID, e.ProfileID, e.ProductID, e.SourceType, e.SourceID,
		e.Status, e.ExpiresAt, e.CreatedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert entitlement", err)
	}
	return tag.RowsAffected() == 1, nil
}
