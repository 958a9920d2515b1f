package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beneplan/internal/external"
	"beneplan/internal/types"
)

type mockPlanStore struct {
	mock.Mock
}

func (m *mockPlanStore) ListAll(ctx context.Context, limit int) ([]*types.Plan, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*types.Plan), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlanStore) Insert(ctx context.Context, p *types.Plan) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPlanStore) UpdateFromGateway(ctx context.Context, id string, name string, priceCents int64, interval types.BillingInterval) error {
	return m.Called(ctx, id, name, priceCents, interval).Error(0)
}

func (m *mockPlanStore) SetActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

type mockPlanLister struct {
	mock.Mock
}

func (m *mockPlanLister) ListPlans(ctx context.Context, limit int) ([]*external.GatewayPlan, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*external.GatewayPlan), args.Error(1)
	}
	return nil, args.Error(1)
}

func localPlan(id, gatewayID, name string, price int64, active bool) *types.Plan {
	return &types.Plan{
		ID:            id,
		Name:          name,
		PriceCents:    price,
		Interval:      types.IntervalMonthly,
		GatewayPlanID: gatewayID,
		Kind:          types.PlanKindConsumer,
		Active:        active,
	}
}

func TestSync_InsertsNewGatewayPlans(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{
		{Identifier: "gw_new", Name: "Essencial", PriceCents: 4990, Interval: types.IntervalMonthly},
	}, nil)
	store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{}, nil)
	store.On("Insert", mock.Anything, mock.MatchedBy(func(p *types.Plan) bool {
		return p.GatewayPlanID == "gw_new" && p.Active && p.Kind == types.PlanKindConsumer
	})).Return(nil)

	report, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Errors)
	store.AssertExpectations(t)
}

func TestSync_UnchangedUpstreamProducesZeroWrites(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{
		{Identifier: "gw_1", Name: "Essencial", PriceCents: 4990, Interval: types.IntervalMonthly},
	}, nil)
	store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{
		localPlan("plan_1", "gw_1", "Essencial", 4990, true),
	}, nil)

	report, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpdateFromGateway", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestSync_PriceToleranceBoundary(t *testing.T) {
	cases := []struct {
		name          string
		gatewayPrice  int64
		expectsUpdate bool
	}{
		{"one cent delta ignored", 4991, false},
		{"two cent delta updates", 4992, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockPlanStore)
			gateway := new(mockPlanLister)
			sync := NewSynchronizer(store, gateway, 100, nil)

			gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{
				{Identifier: "gw_1", Name: "Essencial", PriceCents: tc.gatewayPrice, Interval: types.IntervalMonthly},
			}, nil)
			store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{
				localPlan("plan_1", "gw_1", "Essencial", 4990, true),
			}, nil)
			if tc.expectsUpdate {
				store.On("UpdateFromGateway", mock.Anything, "plan_1", "Essencial", tc.gatewayPrice, types.IntervalMonthly).
					Return(nil)
			}

			report, err := sync.Sync(context.Background())
			require.NoError(t, err)
			if tc.expectsUpdate {
				assert.Equal(t, 1, report.Updated)
			} else {
				assert.Equal(t, 1, report.Unchanged)
				store.AssertNotCalled(t, "UpdateFromGateway", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSync_DeactivatesPlansGoneUpstream(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{}, nil)
	store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{
		localPlan("plan_1", "gw_gone", "Essencial", 4990, true),
		localPlan("plan_2", "gw_already_off", "Antigo", 1990, false),
	}, nil)
	store.On("SetActive", mock.Anything, "plan_1", false).Return(nil)

	report, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	store.AssertNotCalled(t, "SetActive", mock.Anything, "plan_2", mock.Anything)
}

func TestSync_ReactivatesReappearedPlan(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{
		{Identifier: "gw_1", Name: "Essencial", PriceCents: 4990, Interval: types.IntervalMonthly},
	}, nil)
	store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{
		localPlan("plan_1", "gw_1", "Essencial", 4990, false),
	}, nil)
	store.On("UpdateFromGateway", mock.Anything, "plan_1", "Essencial", int64(4990), types.IntervalMonthly).
		Return(nil)

	report, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	store.AssertExpectations(t)
}

func TestSync_PerPlanErrorDoesNotAbortBatch(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).Return([]*external.GatewayPlan{
		{Identifier: "gw_bad", Name: "Quebrado", PriceCents: 100, Interval: types.IntervalMonthly},
		{Identifier: "gw_good", Name: "Essencial", PriceCents: 4990, Interval: types.IntervalMonthly},
	}, nil)
	store.On("ListAll", mock.Anything, 100).Return([]*types.Plan{}, nil)
	store.On("Insert", mock.Anything, mock.MatchedBy(func(p *types.Plan) bool {
		return p.GatewayPlanID == "gw_bad"
	})).Return(errors.New("constraint violation"))
	store.On("Insert", mock.Anything, mock.MatchedBy(func(p *types.Plan) bool {
		return p.GatewayPlanID == "gw_good"
	})).Return(nil)

	report, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Errors)
}

func TestSync_GatewayReadFailureIsFatal(t *testing.T) {
	store := new(mockPlanStore)
	gateway := new(mockPlanLister)
	sync := NewSynchronizer(store, gateway, 100, nil)

	gateway.On("ListPlans", mock.Anything, 100).
		Return(nil, types.NewAppError(types.ErrCodeUpstreamGateway, "gateway error", nil))

	_, err := sync.Sync(context.Background())
	require.Error(t, err)
	store.AssertNotCalled(t, "ListAll", mock.Anything, mock.Anything)
}
