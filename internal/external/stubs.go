package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"beneplan/internal/types"
)

// ---------------------------------------------------------------------------
// Stub implementations
//
// Stubs let the application boot in local/test mode without real gateway or
// loyalty credentials. They log every call and return predictable values:
// card subscriptions come back with a paid invoice, everything else pending.
// ---------------------------------------------------------------------------

// StubGatewayService implements GatewayService with deterministic in-memory
// behavior. Used when config.IsTestMode is true or APP_ENV=local.
type StubGatewayService struct {
	logger *slog.Logger
}

// NewStubGatewayService creates a new StubGatewayService.
func NewStubGatewayService(logger *slog.Logger) *StubGatewayService {
	return &StubGatewayService{logger: logger}
}

func (s *StubGatewayService) EnsureCustomer(ctx context.Context, email, name, taxID string) (string, error) {
	s.logger.InfoContext(ctx, "stub: EnsureCustomer called",
		"email", email,
	)
	return fmt.Sprintf("cust_stub_%s", email), nil
}

func (s *StubGatewayService) CreatePaymentMethod(ctx context.Context, customerID, token string) (string, error) {
	s.logger.InfoContext(ctx, "stub: CreatePaymentMethod called",
		"customer_id", customerID,
	)
	return fmt.Sprintf("pm_stub_%s", customerID), nil
}

func (s *StubGatewayService) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*GatewaySubscription, error) {
	s.logger.InfoContext(ctx, "stub: CreateSubscription called",
		"plan_identifier", params.PlanIdentifier,
		"customer_id", params.CustomerID,
		"payable_with", params.PayableWith,
	)

	invoiceStatus := types.GatewayInvoicePending
	secureURL := "https://gateway.stub.local/invoice"
	if params.PayableWith == types.PaymentMethodCard {
		invoiceStatus = types.GatewayInvoicePaid
		secureURL = ""
	}

	return &GatewaySubscription{
		ID:             fmt.Sprintf("sub_stub_%s", params.CustomerID),
		CustomerID:     params.CustomerID,
		PlanIdentifier: params.PlanIdentifier,
		Status:         types.GatewaySubActive,
		Active:         params.PayableWith == types.PaymentMethodCard,
		RecentInvoices: []GatewayInvoice{
			{ID: "inv_stub_1", Status: invoiceStatus, SecureURL: secureURL},
		},
	}, nil
}

func (s *StubGatewayService) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	s.logger.InfoContext(ctx, "stub: GetSubscription called",
		"subscription_id", id,
	)
	return &GatewaySubscription{
		ID:     id,
		Status: types.GatewaySubActive,
		Active: true,
		RecentInvoices: []GatewayInvoice{
			{ID: "inv_stub_1", Status: types.GatewayInvoicePaid},
		},
	}, nil
}

func (s *StubGatewayService) GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error) {
	s.logger.InfoContext(ctx, "stub: GetInvoice called",
		"invoice_id", id,
	)
	return &GatewayInvoice{ID: id, Status: types.GatewayInvoicePaid}, nil
}

func (s *StubGatewayService) ChargeInvoice(ctx context.Context, invoiceID, paymentMethodID string) error {
	s.logger.InfoContext(ctx, "stub: ChargeInvoice called",
		"invoice_id", invoiceID,
	)
	return nil
}

func (s *StubGatewayService) ListPlans(ctx context.Context, limit int) ([]*GatewayPlan, error) {
	s.logger.InfoContext(ctx, "stub: ListPlans called",
		"limit", limit,
	)
	return []*GatewayPlan{
		{Identifier: "plan_stub_monthly", Name: "Stub Mensal", PriceCents: 4990, Interval: types.IntervalMonthly},
		{Identifier: "plan_stub_yearly", Name: "Stub Anual", PriceCents: 49900, Interval: types.IntervalYearly},
	}, nil
}

// StubLoyaltyService implements LoyaltyService by logging calls and always
// reporting a successful sync.
type StubLoyaltyService struct {
	logger *slog.Logger
}

// NewStubLoyaltyService creates a new StubLoyaltyService.
func NewStubLoyaltyService(logger *slog.Logger) *StubLoyaltyService {
	return &StubLoyaltyService{logger: logger}
}

func (s *StubLoyaltyService) SyncUser(ctx context.Context, taxID, name string) (types.LoyaltySyncResult, error) {
	s.logger.InfoContext(ctx, "stub: SyncUser called",
		"name", name,
	)
	return types.LoyaltySyncResult{OK: true, HTTPStatus: http.StatusOK}, nil
}

var (
	_ GatewayService = (*StubGatewayService)(nil)
	_ LoyaltyService = (*StubLoyaltyService)(nil)
)
