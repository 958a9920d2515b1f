package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beneplan/internal/db"
	"beneplan/internal/types"
)

type mockProfileReader struct {
	mock.Mock
}

func (m *mockProfileReader) GetByTaxID(ctx context.Context, taxID string) (*types.BuyerProfile, error) {
	args := m.Called(ctx, taxID)
	if p := args.Get(0); p != nil {
		return p.(*types.BuyerProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMembershipReader struct {
	mock.Mock
}

func (m *mockMembershipReader) LatestActiveMembership(ctx context.Context, profileID string) (*db.MembershipWithOrganization, error) {
	args := m.Called(ctx, profileID)
	if v := args.Get(0); v != nil {
		return v.(*db.MembershipWithOrganization), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestResolve_InvalidChecksumRejected(t *testing.T) {
	resolver := NewResolver(new(mockProfileReader), new(mockMembershipReader), nil)

	_, err := resolver.Resolve(context.Background(), "52998224726")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidTaxID, appErr.Code)
}

func TestResolve_AllRepeatedDigitsRejected(t *testing.T) {
	resolver := NewResolver(new(mockProfileReader), new(mockMembershipReader), nil)

	_, err := resolver.Resolve(context.Background(), "00000000000")
	require.Error(t, err)
}

func TestResolve_UnknownBuyerIsNewConsumer(t *testing.T) {
	profiles := new(mockProfileReader)
	memberships := new(mockMembershipReader)
	resolver := NewResolver(profiles, memberships, nil)

	profiles.On("GetByTaxID", mock.Anything, "52998224725").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundProfile, "buyer profile not found", nil))

	result, err := resolver.Resolve(context.Background(), "529.982.247-25")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.True(t, result.IsNewBuyer)
	assert.Equal(t, types.PlanKindConsumer, result.PlanKind)
	memberships.AssertNotCalled(t, "LatestActiveMembership", mock.Anything, mock.Anything)
}

func TestResolve_NoMembershipIsConsumer(t *testing.T) {
	profiles := new(mockProfileReader)
	memberships := new(mockMembershipReader)
	resolver := NewResolver(profiles, memberships, nil)

	profiles.On("GetByTaxID", mock.Anything, "52998224725").
		Return(&types.BuyerProfile{ID: "prof_1", TaxID: "52998224725"}, nil)
	memberships.On("LatestActiveMembership", mock.Anything, "prof_1").
		Return(nil, nil)

	result, err := resolver.Resolve(context.Background(), "52998224725")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.False(t, result.IsNewBuyer)
	assert.Equal(t, "prof_1", result.ProfileID)
	assert.Equal(t, types.PlanKindConsumer, result.PlanKind)
	assert.Empty(t, result.OrganizationID)
}

func TestResolve_ActiveMembershipIsNegotiated(t *testing.T) {
	profiles := new(mockProfileReader)
	memberships := new(mockMembershipReader)
	resolver := NewResolver(profiles, memberships, nil)

	profiles.On("GetByTaxID", mock.Anything, "52998224725").
		Return(&types.BuyerProfile{ID: "prof_1"}, nil)
	memberships.On("LatestActiveMembership", mock.Anything, "prof_1").
		Return(&db.MembershipWithOrganization{
			Membership: types.Membership{
				ID:             "mem_1",
				ProfileID:      "prof_1",
				OrganizationID: "org_1",
				Status:         types.MembershipActive,
				CreatedAt:      time.Now().UTC(),
			},
			Organization: types.Organization{ID: "org_1", Name: "Acme Benefícios"},
		}, nil)

	result, err := resolver.Resolve(context.Background(), "52998224725")
	require.NoError(t, err)
	assert.Equal(t, types.PlanKindNegotiated, result.PlanKind)
	assert.Equal(t, "org_1", result.OrganizationID)
	assert.Equal(t, "Acme Benefícios", result.OrganizationName)
}

func TestResolve_StoreErrorIsNotNotFound(t *testing.T) {
	profiles := new(mockProfileReader)
	resolver := NewResolver(profiles, new(mockMembershipReader), nil)

	profiles.On("GetByTaxID", mock.Anything, "52998224725").
		Return(nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve buyer profile", errors.New("timeout")))

	_, err := resolver.Resolve(context.Background(), "52998224725")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
