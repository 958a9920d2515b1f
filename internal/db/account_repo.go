package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// AccountRepository provides find-or-create access to billing accounts.
// A subscription always attaches to exactly one account: the consumer
// account keyed by profile, or the organization-linked account keyed by
// (profile, organization).
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository backed by the given
// database connection (pool or transaction).
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `a.id, a.profile_id, a.type, a.organization_id, a.created_at`

func scanAccount(row pgx.Row) (*types.Account, error) {
	var a types.Account
	var orgID *string
	err := row.Scan(&a.ID, &a.ProfileID, &a.Type, &orgID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if orgID != nil {
		a.OrganizationID = *orgID
	}
	return &a, nil
}

// EnsureConsumerAccount returns the direct-consumer account for the profile,
// creating it when absent.
func (r *AccountRepository) EnsureConsumerAccount(ctx context.Context, profileID string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.profile_id = $1 AND a.type = 'consumer'
		 LIMIT 1`,
		profileID,
	)

	a, err := scanAccount(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query consumer account", err)
	}

	return r.insert(ctx, &types.Account{
		ProfileID: profileID,
		Type:      types.AccountTypeConsumer,
	})
}

// EnsureOrganizationAccount returns the organization-linked account for the
// (profile, organization) pair, creating it when absent.
func (r *AccountRepository) EnsureOrganizationAccount(ctx context.Context, profileID, orgID string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.profile_id = $1 AND a.type = 'organization' AND a.organization_id = $2
		 LIMIT 1`,
		profileID, orgID,
	)

	a, err := scanAccount(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query organization account", err)
	}

	return r.insert(ctx, &types.Account{
		ProfileID:      profileID,
		Type:           types.AccountTypeOrganization,
		OrganizationID: orgID,
	})
}

func (r *AccountRepository) insert(ctx context.Context, a *types.Account) (*types.Account, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	var orgID *string
	if a.OrganizationID != "" {
		orgID = &a.OrganizationID
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (id, profile_id, type, organization_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ProfileID, a.Type, orgID, a.CreatedAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to insert account", err)
	}
	return a, nil
}
