package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// MembershipWithOrganization is a membership row with its parent organization
// inlined, fetched in a single round trip.
type MembershipWithOrganization struct {
	Membership   types.Membership
	Organization types.Organization
}

// EligibilityRepository answers the relationship-chain queries behind
// negotiated-plan eligibility: profile -> membership -> organization ->
// contract -> plans.
type EligibilityRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewEligibilityRepository creates a new EligibilityRepository backed by the
// given database connection (pool or transaction).
func NewEligibilityRepository(db DBTX, logger *slog.Logger) *EligibilityRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &EligibilityRepository{db: db, logger: logger}
}

// LatestActiveMembership returns the most recently created active membership
// for the profile with its organization embedded, or nil when the profile has
// none. Ties on created_at resolve to the one inserted last.
//
// The embedded join is a single round trip; if the join ever fails in a way
// the plain membership query would not (e.g., a partially migrated schema),
// the repository degrades to two sequential reads.
func (r *EligibilityRepository) LatestActiveMembership(ctx context.Context, profileID string) (*MembershipWithOrganization, error) {
	row := r.db.QueryRow(ctx,
		`SELECT m.id, m.profile_id, m.organization_id, m.status, m.created_at,
		        o.id, o.name, o.created_at
		 FROM memberships m
		 JOIN organizations o ON o.id = m.organization_id
		 WHERE m.profile_id = $1 AND m.status = 'active'
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT 1`,
		profileID,
	)

	var out MembershipWithOrganization
	err := row.Scan(
		&out.Membership.ID,
		&out.Membership.ProfileID,
		&out.Membership.OrganizationID,
		&out.Membership.Status,
		&out.Membership.CreatedAt,
		&out.Organization.ID,
		&out.Organization.Name,
		&out.Organization.CreatedAt,
	)
	if err == nil {
		return &out, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	r.logger.WarnContext(ctx, "embedded membership lookup failed, degrading to two reads",
		"profile_id", profileID,
		"error", err,
	)
	return r.latestActiveMembershipSplit(ctx, profileID)
}

// latestActiveMembershipSplit is the two-round-trip fallback: membership
// first, then its organization.
func (r *EligibilityRepository) latestActiveMembershipSplit(ctx context.Context, profileID string) (*MembershipWithOrganization, error) {
	var out MembershipWithOrganization
	err := r.db.QueryRow(ctx,
		`SELECT m.id, m.profile_id, m.organization_id, m.status, m.created_at
		 FROM memberships m
		 WHERE m.profile_id = $1 AND m.status = 'active'
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT 1`,
		profileID,
	).Scan(
		&out.Membership.ID,
		&out.Membership.ProfileID,
		&out.Membership.OrganizationID,
		&out.Membership.Status,
		&out.Membership.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query memberships", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT o.id, o.name, o.created_at
		 FROM organizations o
		 WHERE o.id = $1`,
		out.Membership.OrganizationID,
	).Scan(
		&out.Organization.ID,
		&out.Organization.Name,
		&out.Organization.CreatedAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query organization", err)
	}

	return &out, nil
}

// ActiveContractPlans returns the active plans negotiated under the
// organization's active contracts. An empty slice means the organization has
// no usable negotiated price list and callers should fall back to the
// direct-consumer catalog.
func (r *EligibilityRepository) ActiveContractPlans(ctx context.Context, orgID string) ([]*types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM plans pl
		 JOIN contract_plans cp ON cp.plan_id = pl.id
		 JOIN contracts c ON c.id = cp.contract_id
		 WHERE c.organization_id = $1 AND c.status = 'active' AND pl.active = TRUE
		 ORDER BY pl.price_cents ASC`,
		orgID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query contract plans", err)
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan contract plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read contract plans", err)
	}
	return plans, nil
}
