package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// ProfileRepository provides data access for the buyer_profiles table.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// profileColumns defines the standard set of columns selected for profile
// queries. Used consistently across all query methods to avoid column drift.
const profileColumns = `p.id, p.tax_id, p.full_name, p.email, p.phone, p.birth_date,
	p.created_at, p.updated_at`

// scanProfile scans a single profile row into a types.BuyerProfile struct.
// The columns must match the order defined in profileColumns.
func scanProfile(row pgx.Row) (*types.BuyerProfile, error) {
	var p types.BuyerProfile
	err := row.Scan(
		&p.ID,
		&p.TaxID,
		&p.FullName,
		&p.Email,
		&p.Phone,
		&p.BirthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a profile by its identifier.
// Returns ErrCodeNotFoundProfile when no row matches.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*types.BuyerProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+`
		 FROM buyer_profiles p
		 WHERE p.id = $1`,
		id,
	)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "buyer profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve buyer profile", err)
	}
	return p, nil
}

// GetByTaxID retrieves a profile by its digits-only tax id, falling back to
// the masked legacy format (000.000.000-00) when the exact digit match finds
// nothing. Returns ErrCodeNotFoundProfile when neither form matches; store
// failures surface as ErrCodeInternalDB so callers never confuse an outage
// with "not found".
func (r *ProfileRepository) GetByTaxID(ctx context.Context, taxID string) (*types.BuyerProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+`
		 FROM buyer_profiles p
		 WHERE p.tax_id = $1`,
		taxID,
	)

	p, err := scanProfile(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve buyer profile", err)
	}

	// Legacy rows predate tax id normalization and store the masked format.
	row = r.db.QueryRow(ctx,
		`SELECT `+profileColumns+`
		 FROM buyer_profiles p
		 WHERE p.tax_id = $1`,
		types.FormatTaxID(taxID),
	)

	p, err = scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "buyer profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve buyer profile", err)
	}
	return p, nil
}

// Insert creates a new buyer profile with a generated identifier and returns
// the stored row.
func (r *ProfileRepository) Insert(ctx context.Context, p *types.BuyerProfile) (*types.BuyerProfile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	row := r.db.QueryRow(ctx,
		`INSERT INTO buyer_profiles (id, tax_id, full_name, email, phone, birth_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 RETURNING id, tax_id, full_name, email, phone, birth_date, created_at, updated_at`,
		p.ID, p.TaxID, p.FullName, p.Email, p.Phone, p.BirthDate, now,
	)

	stored, err := scanProfile(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to insert buyer profile", err)
	}
	return stored, nil
}

// Update patches name, email, phone, and birth date on an existing profile.
// The tax id is immutable once stored.
func (r *ProfileRepository) Update(ctx context.Context, p *types.BuyerProfile) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE buyer_profiles
		 SET full_name = $2, email = $3, phone = $4, birth_date = $5, updated_at = $6
		 WHERE id = $1`,
		p.ID, p.FullName, p.Email, p.Phone, p.BirthDate, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update buyer profile", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProfile, "buyer profile not found", nil)
	}
	return nil
}
