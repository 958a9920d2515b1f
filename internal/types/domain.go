// Package types defines the domain model, error taxonomy, and shared
// contracts for the beneplan checkout platform. It has no dependencies on
// other internal packages so that every layer can import it freely.
package types

import "time"

// BuyerProfile is the natural-person identity behind a checkout.
// Uniquely keyed by the 11-digit tax id, stored digits-only. Legacy rows may
// still carry the masked format (000.000.000-00); lookups fall back to it.
type BuyerProfile struct {
	ID        string     `json:"id"`
	TaxID     string     `json:"tax_id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Organization is an employer/partner entity that may negotiate group plans.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a BuyerProfile to an Organization. Only active memberships
// count toward negotiated-plan eligibility; on ties the most recently created
// one wins.
type Membership struct {
	ID             string           `json:"id"`
	ProfileID      string           `json:"profile_id"`
	OrganizationID string           `json:"organization_id"`
	Status         MembershipStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Account is a billing-relevant grouping of a BuyerProfile. A subscription is
// always attached to exactly one account.
type Account struct {
	ID             string      `json:"id"`
	ProfileID      string      `json:"profile_id"`
	Type           AccountType `json:"type"`
	OrganizationID string      `json:"organization_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Contract is an agreement between an Organization and the provider. It owns
// a set of negotiated plans via the contract_plans join table.
type Contract struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Status         ContractStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Plan is a purchasable offering. GatewayPlanID is the join key to the
// external billing catalog; the gateway is the source of truth for name,
// price, and existence. PriceCents is the price in minor currency units.
type Plan struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceCents    int64           `json:"price_cents"`
	Interval      BillingInterval `json:"interval"`
	GatewayPlanID string          `json:"gateway_plan_id"`
	Kind          PlanKind        `json:"kind"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Subscription is the local record of a recurring-billing relationship.
// GatewaySubscriptionID is unique per row. Status transitions are owned by
// the entitlement activator and the reconciliation sweep.
type Subscription struct {
	ID                    string             `json:"id"`
	ProfileID             string             `json:"profile_id"`
	AccountID             string             `json:"account_id"`
	PlanID                string             `json:"plan_id"`
	GatewaySubscriptionID string             `json:"gateway_subscription_id"`
	GatewayCustomerID     string             `json:"gateway_customer_id"`
	PaymentMethod         PaymentMethod      `json:"payment_method"`
	Status                SubscriptionStatus `json:"status"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Entitlement is the durable proof of product access. SourceID points back to
// the subscription that granted it. At most one active entitlement may exist
// per (profile_id, source_id) pair; the store enforces this with a partial
// unique index.
type Entitlement struct {
	ID         string            `json:"id"`
	ProfileID  string            `json:"profile_id"`
	ProductID  string            `json:"product_id"`
	SourceType string            `json:"source_type"`
	SourceID   string            `json:"source_id"`
	Status     EntitlementStatus `json:"status"`
	ExpiresAt  time.Time         `json:"expires_at"`
	CreatedAt  time.Time         `json:"created_at"`
}

// EntitlementSourceSubscription is the SourceType for subscription-granted
// entitlements.
const EntitlementSourceSubscription = "subscription"
