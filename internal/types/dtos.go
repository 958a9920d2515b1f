package types

import "time"

// EligibilityResult is the outcome of classifying a buyer by tax id.
type EligibilityResult struct {
	Found            bool     `json:"found"`
	IsNewBuyer       bool     `json:"is_new_buyer"`
	ProfileID        string   `json:"profile_id,omitempty"`
	OrganizationID   string   `json:"organization_id,omitempty"`
	OrganizationName string   `json:"organization_name,omitempty"`
	PlanKind         PlanKind `json:"plan_kind"`
}

// CheckoutRequest is the full accumulated checkout state posted by the
// client. Checkout is stateless on the server: every call carries everything
// needed, there is no server-side wizard session.
type CheckoutRequest struct {
	TaxID     string `json:"tax_id" validate:"required,taxid"`
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,brphone"`
	BirthDate string `json:"birth_date,omitempty"`

	PlanID        string        `json:"plan_id" validate:"required"`
	GatewayPlanID string        `json:"gateway_plan_id" validate:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required"`

	// CardToken is the opaque single-use token produced by client-side
	// tokenization. Required iff PaymentMethod is card; the server never
	// receives raw card numbers.
	CardToken string `json:"card_token,omitempty"`

	// ProfileID is set on repeat checkout so the existing profile is patched
	// instead of inserted.
	ProfileID string `json:"profile_id,omitempty"`

	// OrganizationID is set when the buyer checked out under a negotiated
	// plan; it selects the organization-linked billing account.
	OrganizationID string `json:"organization_id,omitempty"`
}

// CheckoutResponse reports the outcome of a checkout attempt. Success is
// false only when the payment outcome is failed. PaymentURL is populated for
// bank-slip and instant-transfer payments awaiting confirmation.
type CheckoutResponse struct {
	Success        bool           `json:"success"`
	PaymentOutcome PaymentOutcome `json:"payment_status"`
	Message        string         `json:"message"`
	SubscriptionID string         `json:"subscription_id,omitempty"`
	PaymentURL     string         `json:"payment_url,omitempty"`
}

// LoyaltySyncResult is the sub-result of pushing a buyer to the loyalty
// platform. A failed sync never revokes the entitlement; it is surfaced here
// for observability.
type LoyaltySyncResult struct {
	OK         bool `json:"ok"`
	HTTPStatus int  `json:"http_status,omitempty"`
}

// ActivationResult reports what the entitlement activator did.
// Skipped is true when an active entitlement already existed for the
// (profile, subscription) pair and no writes were performed.
type ActivationResult struct {
	OK          bool              `json:"ok"`
	Skipped     bool              `json:"skipped"`
	Entitlement *Entitlement      `json:"entitlement,omitempty"`
	LoyaltySync LoyaltySyncResult `json:"loyalty_sync"`
	Error       string            `json:"error,omitempty"`
}

// SweepReport aggregates the counters of one reconciliation sweep run.
// It is produced regardless of invocation mode (HTTP trigger or scheduler).
type SweepReport struct {
	Found        int       `json:"found"`
	Processed    int       `json:"processed"`
	Activated    int       `json:"activated"`
	Canceled     int       `json:"canceled"`
	StillPending int       `json:"still_pending"`
	Errors       int       `json:"errors"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// CatalogSyncReport aggregates the counters of one plan catalog sync run.
// Re-running against an unchanged upstream catalog yields zero writes.
type CatalogSyncReport struct {
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Unchanged   int `json:"unchanged"`
	Errors      int `json:"errors"`
}

// PaymentEvent is the canonical form of an inbound gateway payment
// notification, decoded from either the form-encoded or the JSON wire format
// before any business logic runs.
type PaymentEvent struct {
	Event                 string `json:"event"`
	Token                 string `json:"token"`
	InvoiceID             string `json:"invoice_id"`
	InvoiceStatus         string `json:"invoice_status"`
	GatewaySubscriptionID string `json:"subscription_id"`
}

// EventInvoiceStatusChanged is the gateway's payment-status-change event type.
// All other event types are accepted and ignored.
const EventInvoiceStatusChanged = "invoice.status_changed"
