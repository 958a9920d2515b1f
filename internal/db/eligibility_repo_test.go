package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beneplan/internal/types"
)

func TestEligibilityRepository_LatestActiveMembership_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEligibilityRepository(db, nil)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "mem_1"
			*dest[1].(*string) = "prof_1"
			*dest[2].(*string) = "org_1"
			*dest[3].(*types.MembershipStatus) = types.MembershipActive
			*dest[4].(*time.Time) = now
			*dest[5].(*string) = "org_1"
			*dest[6].(*string) = "Acme Benefícios"
			*dest[7].(*time.Time) = now
			return nil
		},
	}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"prof_1"}).Return(row)

	out, err := repo.LatestActiveMembership(context.Background(), "prof_1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "mem_1", out.Membership.ID)
	assert.Equal(t, "org_1", out.Organization.ID)
	assert.Equal(t, "Acme Benefícios", out.Organization.Name)
}

func TestEligibilityRepository_LatestActiveMembership_NoneIsNilNil(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEligibilityRepository(db, nil)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	out, err := repo.LatestActiveMembership(context.Background(), "prof_1")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEligibilityRepository_LatestActiveMembership_SplitFallback(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEligibilityRepository(db, nil)

	now := time.Now().UTC()
	joinRow := &mockRow{scanErr: errors.New("missing column")}
	memRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "mem_1"
			*dest[1].(*string) = "prof_1"
			*dest[2].(*string) = "org_1"
			*dest[3].(*types.MembershipStatus) = types.MembershipActive
			*dest[4].(*time.Time) = now
			return nil
		},
	}
	orgRow := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "org_1"
			*dest[1].(*string) = "Acme Benefícios"
			*dest[2].(*time.Time) = now
			return nil
		},
	}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"prof_1"}).
		Return(joinRow).Once()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"prof_1"}).
		Return(memRow).Once()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"org_1"}).
		Return(orgRow).Once()

	out, err := repo.LatestActiveMembership(context.Background(), "prof_1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "mem_1", out.Membership.ID)
	assert.Equal(t, "Acme Benefícios", out.Organization.Name)
	db.AssertExpectations(t)
}

func TestEligibilityRepository_ActiveContractPlans(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEligibilityRepository(db, nil)

	now := time.Now().UTC()
	rows := newMockRows([][]any{
		{"plan_1", "Convênio Essencial", int64(9900), types.IntervalMonthly, "gw_plan_1",
			types.PlanKindNegotiated, true, now, now},
		{"plan_2", "Convênio Completo", int64(19900), types.IntervalMonthly, "gw_plan_2",
			types.PlanKindNegotiated, true, now, now},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"org_1"}).
		Return(rows, nil)

	plans, err := repo.ActiveContractPlans(context.Background(), "org_1")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "plan_1", plans[0].ID)
	assert.Equal(t, int64(9900), plans[0].PriceCents)
	assert.Equal(t, types.PlanKindNegotiated, plans[1].Kind)
}

func TestEligibilityRepository_ActiveContractPlans_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewEligibilityRepository(db, nil)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	plans, err := repo.ActiveContractPlans(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Empty(t, plans)
}
