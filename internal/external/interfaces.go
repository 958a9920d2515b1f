package external

import (
	"context"

	"beneplan/internal/types"
)

// ---------------------------------------------------------------------------
// Recurring-billing gateway
// ---------------------------------------------------------------------------

// GatewayCustomer is the gateway-side buyer record.
type GatewayCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	TaxID string `json:"cpf_cnpj"`
}

// GatewayInvoice is a gateway invoice, embedded in subscription responses
// and fetchable by id. SecureURL is the hosted payment page used for
// bank-slip and instant-transfer payment.
type GatewayInvoice struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	SecureURL  string `json:"secure_url"`
	TotalCents int64  `json:"total_cents"`
}

// GatewaySubscription is the gateway-side recurring-billing resource. The
// gateway embeds the most recent invoices in creation and fetch responses,
// newest first.
type GatewaySubscription struct {
	ID             string           `json:"id"`
	CustomerID     string           `json:"customer_id"`
	PlanIdentifier string           `json:"plan_identifier"`
	Status         string           `json:"status"`
	Active         bool             `json:"active"`
	RecentInvoices []GatewayInvoice `json:"recent_invoices"`
}

// LatestInvoice returns the most recent embedded invoice, or nil when the
// gateway attached none.
func (s *GatewaySubscription) LatestInvoice() *GatewayInvoice {
	if s == nil || len(s.RecentInvoices) == 0 {
		return nil
	}
	return &s.RecentInvoices[0]
}

// GatewayPlan is an entry of the gateway's plan catalog. The gateway is the
// source of truth for name, price, and existence; the catalog synchronizer
// mirrors these into local plan rows.
type GatewayPlan struct {
	Identifier string
	Name       string
	PriceCents int64
	Interval   types.BillingInterval
}

// CreateSubscriptionParams carries the inputs for creating a gateway
// recurring subscription. PaymentMethodID is set only for card payments,
// after the one-time card token has been exchanged for a durable payment
// method.
type CreateSubscriptionParams struct {
	PlanIdentifier  string
	CustomerID      string
	PaymentMethodID string
	PayableWith     types.PaymentMethod
}

// GatewayService abstracts the recurring-billing gateway. Implementations
// translate between domain types and the gateway's REST resources.
type GatewayService interface {
	// EnsureCustomer returns the gateway customer keyed by email, creating
	// one when absent. Search-first keeps repeat checkouts from producing
	// duplicate customers.
	EnsureCustomer(ctx context.Context, email, name, taxID string) (string, error)

	// CreatePaymentMethod exchanges a one-time card token for a durable
	// payment method attached to the customer. The returned reference is
	// what subscriptions and charges bill against; the raw token is not
	// reusable.
	CreatePaymentMethod(ctx context.Context, customerID, token string) (string, error)

	// CreateSubscription creates the recurring-billing resource. The gateway
	// is configured to keep the subscription alive even when the first
	// charge attempt fails, so later retries have a resource to attach to.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*GatewaySubscription, error)

	// GetSubscription fetches a subscription by id with its most recent
	// invoices embedded.
	GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error)

	// GetInvoice fetches a single invoice by id.
	GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error)

	// ChargeInvoice issues an immediate charge against a pending invoice
	// using a durable payment method.
	ChargeInvoice(ctx context.Context, invoiceID, paymentMethodID string) error

	// ListPlans returns up to limit entries of the gateway plan catalog.
	ListPlans(ctx context.Context, limit int) ([]*GatewayPlan, error)
}

// ---------------------------------------------------------------------------
// Loyalty platform
// ---------------------------------------------------------------------------

// LoyaltyService abstracts the benefits platform that must learn about every
// entitled buyer. SyncUser is an idempotent upsert keyed by tax id.
type LoyaltyService interface {
	// SyncUser registers or refreshes the buyer on the loyalty platform.
	// The result carries the upstream HTTP status so callers can report the
	// sub-outcome without failing the surrounding operation.
	SyncUser(ctx context.Context, taxID, name string) (types.LoyaltySyncResult, error)
}
