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

	"beneplan/internal/types"
)

func TestEntitlementRepository_ActiveBySource_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "ent_1"
			*dest[1].(*string) = "prof_1"
			*dest[2].(*string) = "plan_1"
			*dest[3].(*string) = types.EntitlementSourceSubscription
			*dest[4].(*string) = "sub_1"
			*dest[5].(*types.EntitlementStatus) = types.EntitlementStatusActive
			*dest[6].(*time.Time) = now.AddDate(0, 1, 0)
			*dest[7].(*time.Time) = now
			return nil
		},
	}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"prof_1", "sub_1"}).
		Return(row)

	e, err := repo.ActiveBySource(context.Background(), "prof_1", "sub_1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "ent_1", e.ID)
	assert.Equal(t, types.EntitlementStatusActive, e.Status)
}

func TestEntitlementRepository_ActiveBySource_NoneIsNilNil(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	e, err := repo.ActiveBySource(context.Background(), "prof_1", "sub_1")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestEntitlementRepository_ActiveBySource_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	row := &mockRow{scanErr: errors.New("connection refused")}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.ActiveBySource(context.Background(), "prof_1", "sub_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestEntitlementRepository_Insert_Created(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	e := &types.Entitlement{
		ProfileID:  "prof_1",
		ProductID:  "plan_1",
		SourceType: types.EntitlementSourceSubscription,
		SourceID:   "sub_1",
		Status:     types.EntitlementStatusActive,
		ExpiresAt:  time.Now().UTC().AddDate(0, 1, 0),
	}
	inserted, err := repo.Insert(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, e.ID)
}

func TestEntitlementRepository_Insert_ConflictSwallowed(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	e := &types.Entitlement{
		ProfileID:  "prof_1",
		ProductID:  "plan_1",
		SourceType: types.EntitlementSourceSubscription,
		SourceID:   "sub_1",
		Status:     types.EntitlementStatusActive,
	}
	inserted, err := repo.Insert(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestEntitlementRepository_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEntitlementRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.Insert(context.Background(), &types.Entitlement{ProfileID: "prof_1", SourceID: "sub_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
