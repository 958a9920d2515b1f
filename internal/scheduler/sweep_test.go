package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"beneplan/internal/checkout"
	"beneplan/internal/external"
	"beneplan/internal/types"
)

type mockSubscriptionSource struct {
	mock.Mock
}

func (m *mockSubscriptionSource) ListPendingSince(ctx context.Context, since time.Time, limit int) ([]*types.Subscription, error) {
	args := m.Called(ctx, since, limit)
	if v := args.Get(0); v != nil {
		return v.([]*types.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSubscriptionSource) UpdateStatus(ctx context.Context, id string, status types.SubscriptionStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type mockProfileReader struct {
	mock.Mock
}

func (m *mockProfileReader) GetByID(ctx context.Context, id string) (*types.BuyerProfile, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*types.BuyerProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) EnsureCustomer(ctx context.Context, email, name, taxID string) (string, error) {
	args := m.Called(ctx, email, name, taxID)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePaymentMethod(ctx context.Context, customerID, token string) (string, error) {
	args := m.Called(ctx, customerID, token)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, params external.CreateSubscriptionParams) (*external.GatewaySubscription, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*external.GatewaySubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*external.GatewaySubscription, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*external.GatewaySubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetInvoice(ctx context.Context, id string) (*external.GatewayInvoice, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*external.GatewayInvoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) ChargeInvoice(ctx context.Context, invoiceID, paymentMethodID string) error {
	return m.Called(ctx, invoiceID, paymentMethodID).Error(0)
}

func (m *mockGateway) ListPlans(ctx context.Context, limit int) ([]*external.GatewayPlan, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*external.GatewayPlan), args.Error(1)
	}
	return nil, args.Error(1)
}

var _ external.GatewayService = (*mockGateway)(nil)

type mockActivator struct {
	mock.Mock
}

func (m *mockActivator) Activate(ctx context.Context, in checkout.ActivationInput) *types.ActivationResult {
	return m.Called(ctx, in).Get(0).(*types.ActivationResult)
}

type sweepFixture struct {
	subs    *mockSubscriptionSource
	prof    *mockProfileReader
	gateway *mockGateway
	act     *mockActivator
	sweeper *Sweeper
}

func newSweepFixture() *sweepFixture {
	f := &sweepFixture{
		subs:    new(mockSubscriptionSource),
		prof:    new(mockProfileReader),
		gateway: new(mockGateway),
		act:     new(mockActivator),
	}
	f.sweeper = NewSweeper(f.subs, f.prof, f.gateway, f.act, SweeperConfig{Parallelism: 1}, nil)
	return f
}

func pendingSub(id string) *types.Subscription {
	return &types.Subscription{
		ID:                    id,
		ProfileID:             "prof_" + id,
		PlanID:                "plan_1",
		GatewaySubscriptionID: "gw_" + id,
		Status:                types.SubStatusPendingPayment,
	}
}

func TestSweep_EmptyBacklog(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{}, nil)

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Found)
	assert.Equal(t, 0, report.Processed)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestSweep_ActivatesPaidSubscription(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{pendingSub("sub_1")}, nil)
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
		Return(&external.GatewaySubscription{
			ID: "gw_sub_1",
			RecentInvoices: []external.GatewayInvoice{
				{ID: "inv_1", Status: types.GatewayInvoicePaid},
			},
		}, nil)
	f.prof.On("GetByID", mock.Anything, "prof_sub_1").
		Return(&types.BuyerProfile{ID: "prof_sub_1", TaxID: "52998224725", FullName: "Maria Souza"}, nil)
	f.act.On("Activate", mock.Anything, checkout.ActivationInput{
		ProfileID:      "prof_sub_1",
		SubscriptionID: "sub_1",
		PlanID:         "plan_1",
		TaxID:          "52998224725",
		FullName:       "Maria Souza",
	}).Return(&types.ActivationResult{OK: true}, nil)

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Activated)
	assert.Equal(t, 0, report.Errors)
	f.act.AssertExpectations(t)
}

func TestSweep_ActiveFlagAloneConfirmsPayment(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{pendingSub("sub_1")}, nil)
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
		Return(&external.GatewaySubscription{ID: "gw_sub_1", Active: true}, nil)
	f.prof.On("GetByID", mock.Anything, "prof_sub_1").
		Return(&types.BuyerProfile{ID: "prof_sub_1", TaxID: "52998224725", FullName: "Maria Souza"}, nil)
	f.act.On("Activate", mock.Anything, mock.Anything).
		Return(&types.ActivationResult{OK: true}, nil)

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Activated)
}

func TestSweep_CancelsDeadGatewayStatuses(t *testing.T) {
	for _, status := range []string{
		types.GatewaySubExpired,
		types.GatewaySubSuspended,
		types.GatewaySubCanceled,
	} {
		t.Run(status, func(t *testing.T) {
			f := newSweepFixture()
			f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
				Return([]*types.Subscription{pendingSub("sub_1")}, nil)
			f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
				Return(&external.GatewaySubscription{ID: "gw_sub_1", Status: status}, nil)
			f.subs.On("UpdateStatus", mock.Anything, "sub_1", types.SubStatusCanceled).
				Return(nil)

			report, err := f.sweeper.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, report.Canceled)
			f.act.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
		})
	}
}

func TestSweep_UnresolvedStaysPending(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{pendingSub("sub_1")}, nil)
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
		Return(&external.GatewaySubscription{
			ID:     "gw_sub_1",
			Status: types.GatewaySubActive,
			RecentInvoices: []external.GatewayInvoice{
				{ID: "inv_1", Status: types.GatewayInvoicePending},
			},
		}, nil)

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.StillPending)
	f.subs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_PerSubscriptionFailureDoesNotStopTheBatch(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{pendingSub("sub_1"), pendingSub("sub_2")}, nil)
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
		Return(nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "gateway down", nil))
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_2").
		Return(&external.GatewaySubscription{ID: "gw_sub_2", Active: true}, nil)
	f.prof.On("GetByID", mock.Anything, "prof_sub_2").
		Return(&types.BuyerProfile{ID: "prof_sub_2", TaxID: "11144477735", FullName: "Joao Lima"}, nil)
	f.act.On("Activate", mock.Anything, mock.Anything).
		Return(&types.ActivationResult{OK: true}, nil)

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Activated)
}

func TestSweep_MissingProfileCountsAsError(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return([]*types.Subscription{pendingSub("sub_1")}, nil)
	f.gateway.On("GetSubscription", mock.Anything, "gw_sub_1").
		Return(&external.GatewaySubscription{ID: "gw_sub_1", Active: true}, nil)
	f.prof.On("GetByID", mock.Anything, "prof_sub_1").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil))

	report, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	f.act.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestSweep_ListingFailureIsFatalButReported(t *testing.T) {
	f := newSweepFixture()
	f.subs.On("ListPendingSince", mock.Anything, mock.Anything, 100).
		Return(nil, types.NewAppError(types.ErrCodeInternalDB, "query failed", nil))

	report, err := f.sweeper.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Found)
	assert.False(t, report.FinishedAt.IsZero())
}
