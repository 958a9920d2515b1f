package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// PlanRepository provides data access for the plans table. Plan rows are
// written exclusively by the catalog synchronizer; everything else reads.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given database
// connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// planColumns defines the standard set of columns selected for plan queries.
const planColumns = `pl.id, pl.name, pl.price_cents, pl.interval, pl.gateway_plan_id,
	pl.kind, pl.active, pl.created_at, pl.updated_at`

// scanPlan scans a single plan row into a types.Plan struct.
// The columns must match the order defined in planColumns.
func scanPlan(row pgx.Row) (*types.Plan, error) {
	var p types.Plan
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PriceCents,
		&p.Interval,
		&p.GatewayPlanID,
		&p.Kind,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a plan by its local identifier.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*types.Plan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+`
		 FROM plans pl
		 WHERE pl.id = $1`,
		id,
	)

	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan", err)
	}
	return p, nil
}

// ListActiveByKind returns the active plans of the given kind ordered by
// price, cheapest first.
func (r *PlanRepository) ListActiveByKind(ctx context.Context, kind types.PlanKind) ([]*types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM plans pl
		 WHERE pl.kind = $1 AND pl.active = TRUE
		 ORDER BY pl.price_cents ASC`,
		kind,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query plans", err)
	}
	defer rows.Close()

	return collectPlans(rows)
}

// ListAll returns up to limit plans regardless of active flag, for the
// catalog synchronizer's local-side mapping.
func (r *PlanRepository) ListAll(ctx context.Context, limit int) ([]*types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM plans pl
		 ORDER BY pl.created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query plans", err)
	}
	defer rows.Close()

	return collectPlans(rows)
}

func collectPlans(rows pgx.Rows) ([]*types.Plan, error) {
	var plans []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read plans", err)
	}
	return plans, nil
}

// Insert creates a plan row from a gateway catalog entry.
func (r *PlanRepository) Insert(ctx context.Context, p *types.Plan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO plans (id, name, price_cents, interval, gateway_plan_id, kind, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		p.ID, p.Name, p.PriceCents, p.Interval, p.GatewayPlanID, p.Kind, p.Active, now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert plan", err)
	}
	return nil
}

// UpdateFromGateway patches name, price, interval and reactivates the row to
// match the gateway catalog entry.
func (r *PlanRepository) UpdateFromGateway(ctx context.Context, id string, name string, priceCents int64, interval types.BillingInterval) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE plans
		 SET name = $2, price_cents = $3, interval = $4, active = TRUE, updated_at = $5
		 WHERE id = $1`,
		id, name, priceCents, interval, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
	}
	return nil
}

// SetActive flips the active flag on a plan row.
func (r *PlanRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE plans
		 SET active = $2, updated_at = $3
		 WHERE id = $1`,
		id, active, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update plan active flag", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
	}
	return nil
}
